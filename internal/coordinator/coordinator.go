package coordinator

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/plydojo/game-server/internal/engine"
	"github.com/plydojo/game-server/internal/obslog"
	"github.com/plydojo/game-server/internal/queue"
	"github.com/plydojo/game-server/internal/session"
	"github.com/plydojo/game-server/internal/store"
	"github.com/plydojo/game-server/pkg/gamedto"
)

// GameTypes lists every queueable game type.
var GameTypes = []string{engine.GameTypeChess}

// MatchNotifier receives match-found fan-out; the websocket gateway implements
// it. A nil notifier is allowed (HTTP-only callers poll queue status).
type MatchNotifier interface {
	NotifyMatchFound(userIDs []string, gameID string)
}

// Config tunes pass and sweep timing. Zero fields fall back to defaults.
type Config struct {
	MatchInterval  time.Duration
	SweepInterval  time.Duration
	SessionTimeout time.Duration
	RematchTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		MatchInterval:  5 * time.Second,
		SweepInterval:  time.Minute,
		SessionTimeout: 30 * time.Minute,
		RematchTimeout: 2 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MatchInterval <= 0 {
		c.MatchInterval = d.MatchInterval
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = d.SessionTimeout
	}
	if c.RematchTimeout <= 0 {
		c.RematchTimeout = d.RematchTimeout
	}
	return c
}

// Coordinator orchestrates matchmaking, live game sessions, and rematch
// negotiation. Queue entries, active sessions, and rematch requests are owned
// and exclusively mutated here.
type Coordinator struct {
	store    store.Store
	queue    *queue.Queue
	sessions *session.Registry
	notifier MatchNotifier
	cfg      Config

	sweeps *sweeper
}

func New(st store.Store, rdb *redis.Client, cfg Config) *Coordinator {
	c := &Coordinator{
		store:    st,
		queue:    queue.New(rdb),
		sessions: session.NewRegistry(rdb),
		cfg:      cfg.withDefaults(),
	}
	c.sweeps = newSweeper(c)
	return c
}

// SetNotifier wires the gateway after construction (the gateway needs the
// coordinator first).
func (c *Coordinator) SetNotifier(n MatchNotifier) { c.notifier = n }

// Start launches the periodic pairing pass and the cleanup sweeps.
func (c *Coordinator) Start() error { return c.sweeps.start() }

// Stop tears the background tasks down as a unit.
func (c *Coordinator) Stop() error { return c.sweeps.stop() }

// JoinQueue admits a user to matchmaking. A duplicate join while an entry is
// still waiting returns the existing entry's status instead of inserting
// (idempotent join; the read-then-insert check is best effort, duplicates are
// self-healing via pairing and cleanup).
func (c *Coordinator) JoinQueue(ctx context.Context, userID, gameType string, ratingOverride int) (*gamedto.QueueStatus, error) {
	if _, err := engine.ForGameType(gameType); err != nil {
		return nil, gamedto.NewError(gamedto.KindInvalidInput, err.Error())
	}

	existing, err := c.queue.FindWaiting(ctx, gameType, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		obslog.L().Info("queue_join_duplicate", zap.String("user_id", userID), zap.String("queue_id", existing.Entry.ID))
		return c.statusFor(ctx, existing.Entry)
	}

	rating, err := c.store.UserRating(ctx, userID, gameType)
	if err != nil {
		obslog.L().Error("queue_rating_lookup_error", zap.String("user_id", userID), zap.Error(err))
		rating = store.DefaultRating
	}
	if ratingOverride != 0 {
		rating = clampRating(ratingOverride)
	}

	entry := queue.Entry{
		ID:       uuid.NewString(),
		UserID:   userID,
		GameType: gameType,
		Rating:   rating,
		JoinedAt: time.Now().UTC(),
		Status:   queue.StatusWaiting,
	}
	if err := c.queue.Push(ctx, entry); err != nil {
		return nil, err
	}
	obslog.L().Info("queue_join",
		zap.String("user_id", userID),
		zap.String("queue_id", entry.ID),
		zap.String("game_type", gameType),
		zap.Int("rating", rating),
	)

	// pair eagerly so two ready players never wait a full tick
	c.MatchPass(ctx)

	return c.statusFor(ctx, entry)
}

func clampRating(r int) int {
	if r < 100 {
		return 100
	}
	if r > 3000 {
		return 3000
	}
	return r
}

// LeaveQueue removes the caller's waiting entry. Matched entries are not
// removable; no-op when nothing is found.
func (c *Coordinator) LeaveQueue(ctx context.Context, userID string) (*gamedto.LeaveResult, error) {
	for _, gameType := range GameTypes {
		it, err := c.queue.FindWaiting(ctx, gameType, userID)
		if err != nil {
			return nil, err
		}
		if it == nil {
			continue
		}
		removed, err := c.queue.Remove(ctx, gameType, *it)
		if err != nil {
			return nil, err
		}
		if removed {
			obslog.L().Info("queue_leave", zap.String("user_id", userID), zap.String("queue_id", it.Entry.ID))
			return &gamedto.LeaveResult{Success: true, Message: "Successfully removed from queue"}, nil
		}
	}
	return &gamedto.LeaveResult{Success: false, Message: "Not in queue or already matched"}, nil
}

// QueueStatus reports the caller's entry across all game types, or an
// out-of-queue zero status.
func (c *Coordinator) QueueStatus(ctx context.Context, userID string) (*gamedto.QueueStatus, error) {
	for _, gameType := range GameTypes {
		items, err := c.queue.Items(ctx, gameType)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			if it.Entry.UserID == userID {
				return c.statusFor(ctx, it.Entry)
			}
		}
	}
	return &gamedto.QueueStatus{Status: "none"}, nil
}

func (c *Coordinator) statusFor(ctx context.Context, e queue.Entry) (*gamedto.QueueStatus, error) {
	items, err := c.queue.Items(ctx, e.GameType)
	if err != nil {
		return nil, err
	}
	position, total := 1, 0
	for _, it := range items {
		if it.Entry.Status != queue.StatusWaiting {
			continue
		}
		total++
		if it.Entry.ID != e.ID && it.Entry.JoinedAt.Before(e.JoinedAt) {
			position++
		}
	}
	return &gamedto.QueueStatus{
		InQueue:              true,
		Status:               string(e.Status),
		Position:             position,
		EstimatedWaitSeconds: estimatedWait(position),
		GameType:             e.GameType,
		QueueID:              e.ID,
		JoinedAt:             e.JoinedAt.Format(time.RFC3339),
		TotalInQueue:         total,
		GameID:               e.GameID,
	}, nil
}

// estimatedWait is a placeholder linear model, not adaptive.
func estimatedWait(position int) int { return 30 + 15*position }

// ActiveGameCount reports how many multiplayer games are currently live.
func (c *Coordinator) ActiveGameCount(ctx context.Context) (int64, error) {
	return c.sessions.Count(ctx)
}

// MatchPass runs one pairing sweep over every game-type queue.
func (c *Coordinator) MatchPass(ctx context.Context) {
	for _, gameType := range GameTypes {
		items, err := c.queue.Items(ctx, gameType)
		if err != nil {
			obslog.L().Error("match_pass_error", zap.String("game_type", gameType), zap.Error(err))
			continue
		}
		for _, pair := range queue.PairWaiting(items, time.Now().UTC()) {
			c.claimPair(ctx, gameType, pair)
		}
	}
}

// claimPair flips both entries to matched and kicks off asynchronous game
// creation. Losing the claim race on either entry aborts the pair; the other
// entry is reverted so the next pass retries it.
func (c *Coordinator) claimPair(ctx context.Context, gameType string, pair queue.Pair) {
	a, b := pair.A.Entry, pair.B.Entry
	obslog.L().Info("match_found",
		zap.String("game_type", gameType),
		zap.String("user_a", a.UserID), zap.Int("rating_a", a.Rating),
		zap.String("user_b", b.UserID), zap.Int("rating_b", b.Rating),
	)

	matchedA, matchedB := a, b
	matchedA.Status = queue.StatusMatched
	matchedB.Status = queue.StatusMatched
	itA, err := c.queue.Replace(ctx, pair.A, matchedA)
	if err != nil || itA == nil {
		if err != nil {
			obslog.L().Error("match_claim_error", zap.String("user_id", a.UserID), zap.Error(err))
		}
		return
	}
	itB, err := c.queue.Replace(ctx, pair.B, matchedB)
	if err != nil || itB == nil {
		if err != nil {
			obslog.L().Error("match_claim_error", zap.String("user_id", b.UserID), zap.Error(err))
		}
		c.revertToWaiting(ctx, *itA)
		return
	}

	whiteID, blackID := a.UserID, b.UserID
	if coinFlip() {
		whiteID, blackID = blackID, whiteID
	}

	go c.completeMatch(context.WithoutCancel(ctx), gameType, whiteID, blackID, *itA, *itB)
}

// completeMatch creates the game record and session for a claimed pair. On
// failure both entries revert to waiting (retry-by-requeue); the players just
// stay in queue.
func (c *Coordinator) completeMatch(ctx context.Context, gameType, whiteID, blackID string, itA, itB queue.Item) {
	gameID, err := c.CreateMultiplayerGame(ctx, whiteID, blackID, gameType)
	if err != nil {
		obslog.L().Error("match_game_create_error",
			zap.String("game_type", gameType),
			zap.String("white_id", whiteID),
			zap.String("black_id", blackID),
			zap.Error(err),
		)
		c.revertToWaiting(ctx, itA)
		c.revertToWaiting(ctx, itB)
		return
	}

	for _, it := range []queue.Item{itA, itB} {
		done := it.Entry
		done.GameID = gameID
		updated, err := c.queue.Replace(ctx, it, done)
		if err != nil {
			obslog.L().Warn("match_entry_update_error", zap.String("queue_id", it.Entry.ID), zap.Error(err))
		} else if updated == nil {
			// entry vanished under us, likely a concurrent leave or sweep;
			// the game exists either way, status polls just lose the id
			obslog.L().Warn("match_entry_update_lost_race",
				zap.String("queue_id", it.Entry.ID),
				zap.String("game_id", gameID),
			)
		}
	}

	if c.notifier != nil {
		c.notifier.NotifyMatchFound([]string{whiteID, blackID}, gameID)
	}
}

func (c *Coordinator) revertToWaiting(ctx context.Context, it queue.Item) {
	reverted := it.Entry
	reverted.Status = queue.StatusWaiting
	reverted.GameID = ""
	if _, err := c.queue.Replace(ctx, it, reverted); err != nil {
		obslog.L().Error("match_revert_error", zap.String("queue_id", it.Entry.ID), zap.Error(err))
	}
}

// CreateMultiplayerGame persists a fresh two-player game and registers its
// live session.
func (c *Coordinator) CreateMultiplayerGame(ctx context.Context, whiteID, blackID, gameType string) (string, error) {
	rules, err := engine.ForGameType(gameType)
	if err != nil {
		return "", err
	}
	g, err := c.store.CreateGame(ctx, gameType, rules.Serialize(rules.InitialState()), []store.NewPlayer{
		{UserID: whiteID, Role: gamedto.RoleWhite},
		{UserID: blackID, Role: gamedto.RoleBlack},
	})
	if err != nil {
		return "", fmt.Errorf("create multiplayer game: %w", err)
	}
	if err := c.sessions.Put(ctx, session.ActiveSession{
		GameID:       g.ID,
		Players:      []string{whiteID, blackID},
		LastActivity: time.Now().UTC(),
	}); err != nil {
		obslog.L().Error("session_register_error", zap.String("game_id", g.ID), zap.Error(err))
	}
	obslog.L().Info("game_create",
		zap.String("game_id", g.ID),
		zap.String("game_type", gameType),
		zap.String("white_id", whiteID),
		zap.String("black_id", blackID),
	)
	return g.ID, nil
}

func coinFlip() bool {
	n, err := rand.Int(rand.Reader, big.NewInt(2))
	return err == nil && n.Int64() == 0
}
