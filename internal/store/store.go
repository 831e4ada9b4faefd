package store

import (
	"context"
	"fmt"
	"time"

	"github.com/plydojo/game-server/pkg/gamedto"
)

// DefaultRating is assumed when a user has no stored rating for a game type.
const DefaultRating = 800

// Player is one roster row. Draw-offer flags are closed columns, not an open
// metadata blob.
type Player struct {
	ID            string
	UserID        string // empty for AI rows
	IsAI          bool
	Role          gamedto.Role
	AIDifficulty  string
	DrawOffered   bool
	DrawOfferedBy gamedto.Role
}

// Game is the authoritative persisted record. State is the engine-serialized
// position; Result is empty while the game is live.
type Game struct {
	ID        string
	GameType  string
	State     string
	Result    string
	CreatedAt time.Time
	UpdatedAt time.Time
	Players   []Player
}

func (g *Game) PlayerByUser(userID string) *Player {
	for i := range g.Players {
		if !g.Players[i].IsAI && g.Players[i].UserID == userID {
			return &g.Players[i]
		}
	}
	return nil
}

func (g *Game) Opponent(userID string) *Player {
	for i := range g.Players {
		p := &g.Players[i]
		if p.IsAI || p.UserID != userID {
			return p
		}
	}
	return nil
}

// DrawOffer replaces the loosely-typed drawOffered/drawOfferedBy metadata of
// the roster rows. A zero value clears any pending offer.
type DrawOffer struct {
	Offered bool
	ByRole  gamedto.Role
}

// CurrentDrawOffer reads the pending offer. The flags are written to every
// roster row, so any row is authoritative.
func (g *Game) CurrentDrawOffer() DrawOffer {
	if len(g.Players) == 0 || !g.Players[0].DrawOffered {
		return DrawOffer{}
	}
	return DrawOffer{Offered: true, ByRole: g.Players[0].DrawOfferedBy}
}

type NewPlayer struct {
	UserID       string
	IsAI         bool
	Role         gamedto.Role
	AIDifficulty string
}

type ListFilter struct {
	GameType string
	Result   string
	Page     int
	Limit    int
}

// Store is the game persistence contract. Implementations: Postgres for
// production, Mem for tests.
type Store interface {
	CreateGame(ctx context.Context, gameType, state string, roster []NewPlayer) (*Game, error)
	GetGame(ctx context.Context, id string) (*Game, error)
	UpdateState(ctx context.Context, id, state, result string) (*Game, error)
	SetResult(ctx context.Context, id, result string) (*Game, error)
	SetDrawOffer(ctx context.Context, gameID string, offer DrawOffer) (*Game, error)
	ListGames(ctx context.Context, userID string, f ListFilter) (*gamedto.GamePage, error)
	UserRating(ctx context.Context, userID, gameType string) (int, error)
}

// validateRoster enforces the roster invariant: at most two human players, at
// most one AI player, disjoint white/black roles.
func validateRoster(roster []NewPlayer) error {
	if len(roster) == 0 {
		return fmt.Errorf("empty roster")
	}
	humans, ais := 0, 0
	seen := map[gamedto.Role]bool{}
	for _, p := range roster {
		if p.Role != gamedto.RoleWhite && p.Role != gamedto.RoleBlack {
			return fmt.Errorf("invalid role %q", p.Role)
		}
		if seen[p.Role] {
			return fmt.Errorf("duplicate role %q", p.Role)
		}
		seen[p.Role] = true
		if p.IsAI {
			ais++
		} else {
			if p.UserID == "" {
				return fmt.Errorf("human player without user id")
			}
			humans++
		}
	}
	if humans > 2 || ais > 1 {
		return fmt.Errorf("invalid roster: %d humans, %d ai", humans, ais)
	}
	return nil
}

func toSummary(g *Game) gamedto.GameSummary {
	return gamedto.GameSummary{
		ID:        g.ID,
		GameType:  g.GameType,
		Result:    g.Result,
		Players:   ToPlayerDTOs(g.Players),
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
}

// ToPlayerDTOs maps roster rows to their wire form.
func ToPlayerDTOs(players []Player) []gamedto.GamePlayer {
	out := make([]gamedto.GamePlayer, 0, len(players))
	for _, p := range players {
		out = append(out, gamedto.GamePlayer{
			ID:           p.ID,
			UserID:       p.UserID,
			IsAI:         p.IsAI,
			Role:         p.Role,
			AIDifficulty: p.AIDifficulty,
		})
	}
	return out
}
