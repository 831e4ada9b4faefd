package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/plydojo/game-server/pkg/gamedto"
)

// Verifier resolves a bearer token to a user id. Token issuance happens in
// the account service; this side only validates.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

const tokenKeyPrefix = "auth:token:"

// RedisVerifier looks opaque session tokens up in the shared Redis written by
// the account service at login.
type RedisVerifier struct {
	rdb *redis.Client
}

func NewRedisVerifier(rdb *redis.Client) *RedisVerifier { return &RedisVerifier{rdb: rdb} }

func (v *RedisVerifier) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", gamedto.ErrUnauthorized
	}
	userID, err := v.rdb.Get(ctx, tokenKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", gamedto.ErrUnauthorized
	}
	if err != nil {
		return "", err
	}
	if userID == "" {
		return "", gamedto.ErrUnauthorized
	}
	return userID, nil
}

// FromBearer strips the Authorization scheme prefix. Returns "" when the
// header is absent or not a bearer credential.
func FromBearer(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// StaticVerifier maps fixed tokens to user ids. Test helper.
type StaticVerifier map[string]string

func (v StaticVerifier) Verify(_ context.Context, token string) (string, error) {
	if userID, ok := v[token]; ok {
		return userID, nil
	}
	return "", gamedto.ErrUnauthorized
}
