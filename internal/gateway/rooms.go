package gateway

import (
	"context"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"go.uber.org/zap"

	"github.com/plydojo/game-server/internal/obslog"
)

const writeTimeout = 5 * time.Second

// client is one authenticated websocket connection. A user may hold several
// (multiple tabs); each joins rooms independently.
type client struct {
	userID string
	conn   *websocket.Conn

	mu    sync.Mutex
	rooms map[string]struct{} // game ids this connection joined
}

func (c *client) send(ctx context.Context, ev Event) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, c.conn, ev); err != nil {
		obslog.L().Debug("ws_send_error", zap.String("user_id", c.userID), zap.Error(err))
	}
}

func (c *client) inRoom(gameID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[gameID]
	return ok
}

func (c *client) joinedRooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		out = append(out, id)
	}
	return out
}

// rooms indexes live connections by user and by joined game. Writers hold the
// registry lock only for map bookkeeping, never while writing to a socket.
type rooms struct {
	mu     sync.RWMutex
	byUser map[string]map[*client]struct{}
	byGame map[string]map[*client]struct{}
}

func newRooms() *rooms {
	return &rooms{
		byUser: make(map[string]map[*client]struct{}),
		byGame: make(map[string]map[*client]struct{}),
	}
}

func (r *rooms) register(c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byUser[c.userID] == nil {
		r.byUser[c.userID] = make(map[*client]struct{})
	}
	r.byUser[c.userID][c] = struct{}{}
}

func (r *rooms) unregister(c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set := r.byUser[c.userID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(r.byUser, c.userID)
		}
	}
	c.mu.Lock()
	for gameID := range c.rooms {
		r.leaveLocked(gameID, c)
	}
	c.mu.Unlock()
}

func (r *rooms) join(gameID string, c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byGame[gameID] == nil {
		r.byGame[gameID] = make(map[*client]struct{})
	}
	r.byGame[gameID][c] = struct{}{}
	c.mu.Lock()
	if c.rooms == nil {
		c.rooms = make(map[string]struct{})
	}
	c.rooms[gameID] = struct{}{}
	c.mu.Unlock()
}

func (r *rooms) leaveLocked(gameID string, c *client) {
	if set := r.byGame[gameID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(r.byGame, gameID)
		}
	}
}

// inGame snapshots a game room's members.
func (r *rooms) inGame(gameID string) []*client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*client, 0, len(r.byGame[gameID]))
	for c := range r.byGame[gameID] {
		out = append(out, c)
	}
	return out
}

// forUser snapshots every connection a user currently holds.
func (r *rooms) forUser(userID string) []*client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*client, 0, len(r.byUser[userID]))
	for c := range r.byUser[userID] {
		out = append(out, c)
	}
	return out
}

// broadcast fans an event out to a game room, optionally excluding one
// connection (typing indicators skip the sender).
func (r *rooms) broadcast(ctx context.Context, gameID string, ev Event, except *client) {
	for _, c := range r.inGame(gameID) {
		if c == except {
			continue
		}
		c.send(ctx, ev)
	}
}

func (r *rooms) sendToUser(ctx context.Context, userID string, ev Event) {
	for _, c := range r.forUser(userID) {
		c.send(ctx, ev)
	}
}
