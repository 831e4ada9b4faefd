package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plydojo/game-server/pkg/gamedto"
)

// Mem is an in-memory Store used by tests and local development without a
// database.
type Mem struct {
	mu      sync.RWMutex
	games   map[string]*Game
	ratings map[string]map[string]int // userID -> gameType -> rating

	failCreates bool // test hook: force CreateGame to fail
}

func NewMem() *Mem {
	return &Mem{
		games:   make(map[string]*Game),
		ratings: make(map[string]map[string]int),
	}
}

// SetRating seeds a user's rating for a game type.
func (m *Mem) SetRating(userID, gameType string, rating int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ratings[userID] == nil {
		m.ratings[userID] = make(map[string]int)
	}
	m.ratings[userID][gameType] = rating
}

// FailCreates toggles forced CreateGame failures for requeue tests.
func (m *Mem) FailCreates(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCreates = fail
}

func (m *Mem) CreateGame(_ context.Context, gameType, state string, roster []NewPlayer) (*Game, error) {
	if err := validateRoster(roster); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreates {
		return nil, errCreateDisabled
	}
	now := time.Now().UTC()
	g := &Game{
		ID:        uuid.NewString(),
		GameType:  gameType,
		State:     state,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, p := range roster {
		g.Players = append(g.Players, Player{
			ID:           uuid.NewString(),
			UserID:       p.UserID,
			IsAI:         p.IsAI,
			Role:         p.Role,
			AIDifficulty: p.AIDifficulty,
		})
	}
	m.games[g.ID] = g
	return cloneGame(g), nil
}

func (m *Mem) GetGame(_ context.Context, id string) (*Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	if !ok {
		return nil, gamedto.ErrGameNotFound
	}
	return cloneGame(g), nil
}

func (m *Mem) UpdateState(_ context.Context, id, state, result string) (*Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	if !ok {
		return nil, gamedto.ErrGameNotFound
	}
	g.State = state
	if result != "" {
		g.Result = result
	}
	g.UpdatedAt = time.Now().UTC()
	return cloneGame(g), nil
}

func (m *Mem) SetResult(_ context.Context, id, result string) (*Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	if !ok {
		return nil, gamedto.ErrGameNotFound
	}
	g.Result = result
	g.UpdatedAt = time.Now().UTC()
	return cloneGame(g), nil
}

func (m *Mem) SetDrawOffer(_ context.Context, gameID string, offer DrawOffer) (*Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok {
		return nil, gamedto.ErrGameNotFound
	}
	for i := range g.Players {
		g.Players[i].DrawOffered = offer.Offered
		g.Players[i].DrawOfferedBy = offer.ByRole
	}
	g.UpdatedAt = time.Now().UTC()
	return cloneGame(g), nil
}

func (m *Mem) ListGames(_ context.Context, userID string, f ListFilter) (*gamedto.GamePage, error) {
	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*Game
	for _, g := range m.games {
		if g.PlayerByUser(userID) == nil {
			continue
		}
		if f.GameType != "" && g.GameType != f.GameType {
			continue
		}
		if f.Result != "" && g.Result != f.Result {
			continue
		}
		matched = append(matched, g)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].UpdatedAt.After(matched[j].UpdatedAt) })

	total := len(matched)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	items := make([]gamedto.GameSummary, 0, end-start)
	for _, g := range matched[start:end] {
		items = append(items, toSummary(g))
	}
	return &gamedto.GamePage{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

func (m *Mem) UserRating(_ context.Context, userID, gameType string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if perType, ok := m.ratings[userID]; ok {
		if r, ok := perType[gameType]; ok {
			return r, nil
		}
	}
	return DefaultRating, nil
}

func cloneGame(g *Game) *Game {
	out := *g
	out.Players = append([]Player{}, g.Players...)
	return &out
}

type staticErr string

func (e staticErr) Error() string { return string(e) }

const errCreateDisabled = staticErr("game creation disabled")
