package coordinator

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/plydojo/game-server/internal/obslog"
	"github.com/plydojo/game-server/internal/queue"
)

// sweeper owns the scheduler for the pairing pass and the cleanup jobs.
type sweeper struct {
	c     *Coordinator
	sched gocron.Scheduler
}

func newSweeper(c *Coordinator) *sweeper { return &sweeper{c: c} }

func (s *sweeper) start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	jobs := []struct {
		name     string
		interval time.Duration
		run      func(context.Context)
	}{
		{"match_pass", s.c.cfg.MatchInterval, s.c.MatchPass},
		{"queue_cleanup", s.c.cfg.SweepInterval, s.c.cleanupQueue},
		{"session_cleanup", s.c.cfg.SweepInterval, s.c.cleanupSessions},
		{"rematch_cleanup", s.c.cfg.SweepInterval, s.c.cleanupRematches},
	}
	for _, j := range jobs {
		if _, err := sched.NewJob(
			gocron.DurationJob(j.interval),
			gocron.NewTask(j.run, context.Background()),
			gocron.WithName(j.name),
		); err != nil {
			return err
		}
	}
	sched.Start()
	s.sched = sched
	obslog.L().Info("sweeper_start",
		zap.Duration("match_interval", s.c.cfg.MatchInterval),
		zap.Duration("sweep_interval", s.c.cfg.SweepInterval),
	)
	return nil
}

func (s *sweeper) stop() error {
	if s.sched == nil {
		return nil
	}
	return s.sched.Shutdown()
}

// cleanupQueue prunes stale queue entries: waiting entries past the max wait,
// and matched entries stuck twice that long (game creation never completed).
func (c *Coordinator) cleanupQueue(ctx context.Context) {
	now := time.Now().UTC()
	for _, gameType := range GameTypes {
		items, err := c.queue.Items(ctx, gameType)
		if err != nil {
			obslog.L().Error("queue_cleanup_error", zap.String("game_type", gameType), zap.Error(err))
			continue
		}
		for _, it := range items {
			wait := now.Sub(it.Entry.JoinedAt)
			expired := (it.Entry.Status == queue.StatusWaiting && wait > queue.MaxWaitTime) ||
				(it.Entry.Status == queue.StatusMatched && wait > queue.StaleMatchedAfter)
			if !expired {
				continue
			}
			removed, err := c.queue.Remove(ctx, gameType, it)
			if err != nil {
				obslog.L().Error("queue_cleanup_remove_error", zap.String("queue_id", it.Entry.ID), zap.Error(err))
				continue
			}
			if removed {
				obslog.L().Info("queue_entry_expired",
					zap.String("queue_id", it.Entry.ID),
					zap.String("user_id", it.Entry.UserID),
					zap.String("status", string(it.Entry.Status)),
					zap.Duration("waited", wait),
				)
			}
		}
	}
}

// cleanupSessions drops sessions idle past the timeout. The game record stays
// as-is; an abandoned game is simply no longer tracked as live.
func (c *Coordinator) cleanupSessions(ctx context.Context) {
	sessions, err := c.sessions.All(ctx)
	if err != nil {
		obslog.L().Error("session_cleanup_error", zap.Error(err))
		return
	}
	now := time.Now().UTC()
	for _, s := range sessions {
		idle := now.Sub(s.LastActivity)
		if idle <= c.cfg.SessionTimeout {
			continue
		}
		if err := c.sessions.Remove(ctx, s.GameID); err != nil {
			obslog.L().Error("session_cleanup_remove_error", zap.String("game_id", s.GameID), zap.Error(err))
			continue
		}
		obslog.L().Info("session_expired", zap.String("game_id", s.GameID), zap.Duration("idle", idle))
	}
}

// cleanupRematches drops rematch requests the opponent never answered.
func (c *Coordinator) cleanupRematches(ctx context.Context) {
	reqs, err := c.sessions.AllRematches(ctx)
	if err != nil {
		obslog.L().Error("rematch_cleanup_error", zap.Error(err))
		return
	}
	now := time.Now().UTC()
	for _, r := range reqs {
		age := now.Sub(r.CreatedAt)
		if age <= c.cfg.RematchTimeout {
			continue
		}
		if err := c.sessions.RemoveRematch(ctx, r.ID); err != nil {
			obslog.L().Error("rematch_cleanup_remove_error", zap.String("rematch_id", r.ID), zap.Error(err))
			continue
		}
		obslog.L().Info("rematch_expired", zap.String("rematch_id", r.ID), zap.String("game_id", r.GameID), zap.Duration("age", age))
	}
}
