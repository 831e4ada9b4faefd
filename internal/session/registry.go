package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/plydojo/game-server/internal/obslog"
)

const (
	keyActiveGames     = "mp:active_games"
	keyRematchRequests = "mp:rematch_requests"
)

// ActiveSession is ephemeral liveness tracking for a live game. The persisted
// game record stays authoritative; this only drives broadcast bookkeeping and
// the inactivity sweep.
type ActiveSession struct {
	GameID       string    `json:"gameId"`
	Players      []string  `json:"players"`
	LastActivity time.Time `json:"lastActivity"`
}

// RematchRequest is one side of a rematch negotiation; it expires unmatched.
type RematchRequest struct {
	ID          string    `json:"id"`
	RequesterID string    `json:"requesterId"`
	GameID      string    `json:"gameId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Registry keeps sessions and rematch requests in shared Redis hashes so a
// future second coordinator instance observes the same live set.
type Registry struct {
	rdb *redis.Client
}

func NewRegistry(rdb *redis.Client) *Registry { return &Registry{rdb: rdb} }

func (r *Registry) Put(ctx context.Context, s ActiveSession) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.rdb.HSet(ctx, keyActiveGames, s.GameID, raw).Err()
}

func (r *Registry) Get(ctx context.Context, gameID string) (*ActiveSession, error) {
	raw, err := r.rdb.HGet(ctx, keyActiveGames, gameID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s ActiveSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Touch refreshes a session's last-activity timestamp. Missing sessions are a
// no-op: a move on a game whose session was already swept must still succeed.
func (r *Registry) Touch(ctx context.Context, gameID string) error {
	s, err := r.Get(ctx, gameID)
	if err != nil || s == nil {
		return err
	}
	s.LastActivity = time.Now().UTC()
	return r.Put(ctx, *s)
}

func (r *Registry) Remove(ctx context.Context, gameID string) error {
	return r.rdb.HDel(ctx, keyActiveGames, gameID).Err()
}

func (r *Registry) Count(ctx context.Context) (int64, error) {
	return r.rdb.HLen(ctx, keyActiveGames).Result()
}

// All returns every parseable session. Corrupt hash fields are logged and
// skipped so one bad entry cannot halt a sweep.
func (r *Registry) All(ctx context.Context) ([]ActiveSession, error) {
	fields, err := r.rdb.HGetAll(ctx, keyActiveGames).Result()
	if err != nil {
		return nil, err
	}
	out := make([]ActiveSession, 0, len(fields))
	for gameID, raw := range fields {
		var s ActiveSession
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			obslog.L().Warn("active_session_unparsable", zap.String("game_id", gameID), zap.Error(err))
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *Registry) PutRematch(ctx context.Context, req RematchRequest) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return r.rdb.HSet(ctx, keyRematchRequests, req.ID, raw).Err()
}

// FindRematchBy returns the outstanding request for gameID made by
// requesterID, or nil.
func (r *Registry) FindRematchBy(ctx context.Context, gameID, requesterID string) (*RematchRequest, error) {
	reqs, err := r.AllRematches(ctx)
	if err != nil {
		return nil, err
	}
	for i := range reqs {
		if reqs[i].GameID == gameID && reqs[i].RequesterID == requesterID {
			return &reqs[i], nil
		}
	}
	return nil, nil
}

// RemoveRematchesForGame clears every pending request bound to a game, both
// sides, after a rematch completes.
func (r *Registry) RemoveRematchesForGame(ctx context.Context, gameID string) error {
	reqs, err := r.AllRematches(ctx)
	if err != nil {
		return err
	}
	for _, req := range reqs {
		if req.GameID == gameID {
			if err := r.rdb.HDel(ctx, keyRematchRequests, req.ID).Err(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Registry) RemoveRematch(ctx context.Context, id string) error {
	return r.rdb.HDel(ctx, keyRematchRequests, id).Err()
}

func (r *Registry) AllRematches(ctx context.Context) ([]RematchRequest, error) {
	fields, err := r.rdb.HGetAll(ctx, keyRematchRequests).Result()
	if err != nil {
		return nil, err
	}
	out := make([]RematchRequest, 0, len(fields))
	for id, raw := range fields {
		var req RematchRequest
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			obslog.L().Warn("rematch_request_unparsable", zap.String("request_id", id), zap.Error(err))
			continue
		}
		out = append(out, req)
	}
	return out, nil
}
