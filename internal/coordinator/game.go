package coordinator

import (
	"context"

	"go.uber.org/zap"

	"github.com/plydojo/game-server/internal/engine"
	"github.com/plydojo/game-server/internal/obslog"
	"github.com/plydojo/game-server/internal/store"
	"github.com/plydojo/game-server/pkg/gamedto"
)

// GameState loads a game and maps it to the wire shape.
func (c *Coordinator) GameState(ctx context.Context, gameID string) (*gamedto.GameState, error) {
	g, err := c.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return c.mapState(g)
}

// ValidateGameAccess checks that userID has a seat in gameID.
func (c *Coordinator) ValidateGameAccess(ctx context.Context, gameID, userID string) error {
	g, err := c.store.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	if g.PlayerByUser(userID) == nil {
		return gamedto.ErrNotInGame
	}
	return nil
}

// ProcessMove is the single authoritative move path: participant check, ended
// check, turn check, rule validation, apply, persist, session touch.
func (c *Coordinator) ProcessMove(ctx context.Context, gameID, userID, move string) (*gamedto.GameState, error) {
	g, err := c.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	p := g.PlayerByUser(userID)
	if p == nil {
		return nil, gamedto.ErrNotInGame
	}
	if g.Result != "" {
		return nil, gamedto.ErrGameEnded
	}
	rules, err := engine.ForGameType(g.GameType)
	if err != nil {
		return nil, err
	}
	state, err := rules.Deserialize(g.State)
	if err != nil {
		return nil, err
	}
	if state.Turn() != p.Role {
		return nil, gamedto.ErrNotYourTurn
	}
	next, err := rules.ApplyMove(state, move)
	if err != nil {
		return nil, err
	}

	outcome := rules.CheckGameEnd(next)
	result := ""
	if outcome.Ended {
		result = outcome.Result
	}
	updated, err := c.store.UpdateState(ctx, gameID, rules.Serialize(next), result)
	if err != nil {
		return nil, err
	}

	if outcome.Ended {
		if err := c.sessions.Remove(ctx, gameID); err != nil {
			obslog.L().Warn("session_remove_error", zap.String("game_id", gameID), zap.Error(err))
		}
		obslog.L().Info("game_end", zap.String("game_id", gameID), zap.String("result", outcome.Result))
	} else {
		c.touchSession(ctx, gameID)
	}
	return c.mapState(updated)
}

// ProcessResignation ends the game with the opponent color winning.
func (c *Coordinator) ProcessResignation(ctx context.Context, gameID, userID string) (*gamedto.GameState, error) {
	g, err := c.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	p := g.PlayerByUser(userID)
	if p == nil {
		return nil, gamedto.ErrNotInGame
	}
	if g.Result != "" {
		return nil, gamedto.ErrGameEnded
	}
	result := "1-0"
	if p.Role == gamedto.RoleWhite {
		result = "0-1"
	}
	updated, err := c.store.SetResult(ctx, gameID, result)
	if err != nil {
		return nil, err
	}
	if err := c.sessions.Remove(ctx, gameID); err != nil {
		obslog.L().Warn("session_remove_error", zap.String("game_id", gameID), zap.Error(err))
	}
	obslog.L().Info("game_resign", zap.String("game_id", gameID), zap.String("user_id", userID), zap.String("result", result))
	return c.mapState(updated)
}

// OfferDraw records an open draw offer by the caller's color.
func (c *Coordinator) OfferDraw(ctx context.Context, gameID, userID string) (*gamedto.GameState, error) {
	g, err := c.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	p := g.PlayerByUser(userID)
	if p == nil {
		return nil, gamedto.ErrNotInGame
	}
	if g.Result != "" {
		return nil, gamedto.ErrGameEnded
	}
	if g.CurrentDrawOffer().Offered {
		return nil, gamedto.NewError(gamedto.KindInvalidState, "draw already offered")
	}
	updated, err := c.store.SetDrawOffer(ctx, gameID, store.DrawOffer{Offered: true, ByRole: p.Role})
	if err != nil {
		return nil, err
	}
	c.touchSession(ctx, gameID)
	obslog.L().Info("draw_offer", zap.String("game_id", gameID), zap.String("user_id", userID))
	return c.mapState(updated)
}

// RespondToDraw accepts or declines the open offer. Only the non-offering
// player may respond; acceptance ends the game 1/2-1/2.
func (c *Coordinator) RespondToDraw(ctx context.Context, gameID, userID string, accept bool) (*gamedto.GameState, error) {
	g, err := c.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	p := g.PlayerByUser(userID)
	if p == nil {
		return nil, gamedto.ErrNotInGame
	}
	if g.Result != "" {
		return nil, gamedto.ErrGameEnded
	}
	offer := g.CurrentDrawOffer()
	if !offer.Offered {
		return nil, gamedto.ErrNoDrawOffered
	}
	if offer.ByRole == p.Role {
		return nil, gamedto.NewError(gamedto.KindInvalidState, "cannot respond to own draw offer")
	}

	updated, err := c.store.SetDrawOffer(ctx, gameID, store.DrawOffer{})
	if err != nil {
		return nil, err
	}
	if !accept {
		c.touchSession(ctx, gameID)
		obslog.L().Info("draw_decline", zap.String("game_id", gameID), zap.String("user_id", userID))
		return c.mapState(updated)
	}

	updated, err = c.store.SetResult(ctx, gameID, "1/2-1/2")
	if err != nil {
		return nil, err
	}
	if err := c.sessions.Remove(ctx, gameID); err != nil {
		obslog.L().Warn("session_remove_error", zap.String("game_id", gameID), zap.Error(err))
	}
	obslog.L().Info("draw_accept", zap.String("game_id", gameID), zap.String("user_id", userID))
	return c.mapState(updated)
}

// HandleDisconnect marks activity so the idle sweep grants a grace period
// while the player reconnects. The game keeps running.
func (c *Coordinator) HandleDisconnect(ctx context.Context, gameID, userID string) {
	c.touchSession(ctx, gameID)
	obslog.L().Info("player_disconnect", zap.String("game_id", gameID), zap.String("user_id", userID))
}

// ListGames pages through a user's games, newest first.
func (c *Coordinator) ListGames(ctx context.Context, userID string, f store.ListFilter) (*gamedto.GamePage, error) {
	return c.store.ListGames(ctx, userID, f)
}

func (c *Coordinator) touchSession(ctx context.Context, gameID string) {
	if err := c.sessions.Touch(ctx, gameID); err != nil {
		obslog.L().Warn("session_touch_error", zap.String("game_id", gameID), zap.Error(err))
	}
}

func (c *Coordinator) mapState(g *store.Game) (*gamedto.GameState, error) {
	rules, err := engine.ForGameType(g.GameType)
	if err != nil {
		return nil, err
	}
	state, err := rules.Deserialize(g.State)
	if err != nil {
		return nil, err
	}
	moves := state.Moves()
	lastMove := ""
	if len(moves) > 0 {
		lastMove = moves[len(moves)-1]
	}
	offer := g.CurrentDrawOffer()
	st := &gamedto.GameState{
		ID:          g.ID,
		GameType:    g.GameType,
		FEN:         state.FEN(),
		Turn:        state.Turn(),
		Moves:       moves,
		LastMove:    lastMove,
		Players:     store.ToPlayerDTOs(g.Players),
		Result:      g.Result,
		DrawOffered: offer.Offered,
	}
	if offer.Offered {
		st.DrawOfferedBy = offer.ByRole
	}
	if g.Result != "" {
		st.IsCheckmate = engine.IsCheckmate(rules, state)
	}
	return st, nil
}
