package coordinator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plydojo/game-server/internal/engine"
	"github.com/plydojo/game-server/internal/obslog"
	"github.com/plydojo/game-server/internal/session"
	"github.com/plydojo/game-server/internal/store"
	"github.com/plydojo/game-server/pkg/gamedto"
)

// RematchNotifier is implemented by the gateway to tell the opponent a
// rematch was requested; plain HTTP clients learn of it by polling.
type RematchNotifier interface {
	NotifyRematchRequested(userID, gameID, requesterID string)
	NotifyRematchStarted(userIDs []string, gameID string)
}

// RequestRematch starts a follow-up game from a finished one. Against an AI
// opponent the new game is created immediately; against a human the request
// is stored and the game starts when the opponent issues a matching request
// of their own. Colors swap from the previous game.
func (c *Coordinator) RequestRematch(ctx context.Context, gameID, userID string) (*gamedto.RematchResponse, error) {
	g, err := c.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	p := g.PlayerByUser(userID)
	if p == nil {
		return nil, gamedto.ErrNotInGame
	}
	if g.Result == "" {
		return nil, gamedto.NewError(gamedto.KindInvalidState, "game is still in progress")
	}

	opp := g.Opponent(userID)
	if opp == nil {
		return nil, gamedto.NewError(gamedto.KindInvalidState, "no opponent to rematch")
	}

	if opp.IsAI {
		newID, err := c.createRematchGame(ctx, g, userID)
		if err != nil {
			obslog.L().Error("rematch_ai_create_error", zap.String("game_id", gameID), zap.Error(err))
			return &gamedto.RematchResponse{Status: gamedto.RematchError, Message: "Failed to create rematch game"}, nil
		}
		return &gamedto.RematchResponse{Success: true, Status: gamedto.RematchAccepted, GameID: newID}, nil
	}

	// symmetric protocol: the second request for the same finished game,
	// from the other player, completes the pair
	theirs, err := c.sessions.FindRematchBy(ctx, gameID, opp.UserID)
	if err != nil {
		return nil, err
	}
	if theirs != nil {
		if err := c.sessions.RemoveRematchesForGame(ctx, gameID); err != nil {
			obslog.L().Warn("rematch_cleanup_error", zap.String("game_id", gameID), zap.Error(err))
		}
		newID, err := c.createRematchGame(ctx, g, userID)
		if err != nil {
			obslog.L().Error("rematch_create_error", zap.String("game_id", gameID), zap.Error(err))
			return &gamedto.RematchResponse{Status: gamedto.RematchError, Message: "Failed to create rematch game"}, nil
		}
		if n, ok := c.notifier.(RematchNotifier); ok && n != nil {
			n.NotifyRematchStarted([]string{userID, opp.UserID}, newID)
		}
		return &gamedto.RematchResponse{Success: true, Status: gamedto.RematchAccepted, GameID: newID}, nil
	}

	mine, err := c.sessions.FindRematchBy(ctx, gameID, userID)
	if err != nil {
		return nil, err
	}
	if mine == nil {
		if err := c.sessions.PutRematch(ctx, session.RematchRequest{
			ID:          uuid.NewString(),
			RequesterID: userID,
			GameID:      gameID,
			CreatedAt:   time.Now().UTC(),
		}); err != nil {
			return nil, err
		}
		obslog.L().Info("rematch_request", zap.String("game_id", gameID), zap.String("user_id", userID))
		if n, ok := c.notifier.(RematchNotifier); ok && n != nil {
			n.NotifyRematchRequested(opp.UserID, gameID, userID)
		}
	}
	return &gamedto.RematchResponse{Success: true, Status: gamedto.RematchPending, Message: "Waiting for opponent"}, nil
}

// createRematchGame builds the follow-up game with colors swapped from prev.
// requesterID only matters for logging; seating comes from the old roster.
func (c *Coordinator) createRematchGame(ctx context.Context, prev *store.Game, requesterID string) (string, error) {
	roster := make([]store.NewPlayer, 0, len(prev.Players))
	for _, p := range prev.Players {
		roster = append(roster, store.NewPlayer{
			UserID:       p.UserID,
			IsAI:         p.IsAI,
			AIDifficulty: p.AIDifficulty,
			Role:         p.Role.Opposite(),
		})
	}
	rules, err := engine.ForGameType(prev.GameType)
	if err != nil {
		return "", err
	}
	g, err := c.store.CreateGame(ctx, prev.GameType, rules.Serialize(rules.InitialState()), roster)
	if err != nil {
		return "", err
	}
	if humans(roster) > 1 {
		players := make([]string, 0, len(roster))
		for _, p := range roster {
			if !p.IsAI {
				players = append(players, p.UserID)
			}
		}
		if err := c.sessions.Put(ctx, session.ActiveSession{GameID: g.ID, Players: players, LastActivity: time.Now().UTC()}); err != nil {
			obslog.L().Error("session_register_error", zap.String("game_id", g.ID), zap.Error(err))
		}
	}
	obslog.L().Info("rematch_game_create",
		zap.String("prev_game_id", prev.ID),
		zap.String("game_id", g.ID),
		zap.String("requester_id", requesterID),
	)
	return g.ID, nil
}

func humans(roster []store.NewPlayer) int {
	n := 0
	for _, p := range roster {
		if !p.IsAI {
			n++
		}
	}
	return n
}
