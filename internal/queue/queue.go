package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/plydojo/game-server/internal/obslog"
)

// Status is the lifecycle of a queue entry.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusMatched Status = "matched"
	StatusExpired Status = "expired"
)

// Entry is one waiting player, stored as JSON in the shared per-game-type
// Redis list so any collaborating process can observe the queue.
type Entry struct {
	ID       string    `json:"id"`
	UserID   string    `json:"userId"`
	GameType string    `json:"gameType"`
	Rating   int       `json:"eloRating"`
	JoinedAt time.Time `json:"joinedAt"`
	Status   Status    `json:"status"`
	GameID   string    `json:"gameId,omitempty"`
}

// Item pairs an Entry with the raw list element it was parsed from; the raw
// form is what LREM matches on.
type Item struct {
	Entry Entry
	raw   string
}

type Queue struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Queue { return &Queue{rdb: rdb} }

func key(gameType string) string { return "queue:" + gameType }

func (q *Queue) Push(ctx context.Context, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return q.rdb.RPush(ctx, key(e.GameType), raw).Err()
}

// Items returns every parseable entry of a game type's queue. Malformed
// elements are logged and skipped, never fatal for the batch.
func (q *Queue) Items(ctx context.Context, gameType string) ([]Item, error) {
	raws, err := q.rdb.LRange(ctx, key(gameType), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(raws))
	for _, raw := range raws {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			obslog.L().Warn("queue_entry_unparsable", zap.String("game_type", gameType), zap.Error(err))
			continue
		}
		items = append(items, Item{Entry: e, raw: raw})
	}
	return items, nil
}

// FindWaiting returns the user's waiting entry, or nil.
func (q *Queue) FindWaiting(ctx context.Context, gameType, userID string) (*Item, error) {
	items, err := q.Items(ctx, gameType)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].Entry.UserID == userID && items[i].Entry.Status == StatusWaiting {
			return &items[i], nil
		}
	}
	return nil, nil
}

// Remove deletes one list element by its raw form. Returns false when the
// element was already gone (raced with another pass).
func (q *Queue) Remove(ctx context.Context, gameType string, it Item) (bool, error) {
	n, err := q.rdb.LRem(ctx, key(gameType), 1, it.raw).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Replace swaps one list element for an updated entry and returns the new
// item. If the original element vanished concurrently it returns nil and the
// updated entry is not written (status-based exclusion handles the rest).
func (q *Queue) Replace(ctx context.Context, it Item, updated Entry) (*Item, error) {
	raw, err := json.Marshal(updated)
	if err != nil {
		return nil, err
	}
	removed, err := q.rdb.LRem(ctx, key(it.Entry.GameType), 1, it.raw).Result()
	if err != nil {
		return nil, err
	}
	if removed == 0 {
		return nil, nil
	}
	if err := q.rdb.RPush(ctx, key(updated.GameType), raw).Err(); err != nil {
		return nil, err
	}
	return &Item{Entry: updated, raw: string(raw)}, nil
}
