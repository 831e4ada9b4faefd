package engine

import (
	"fmt"

	"github.com/plydojo/game-server/pkg/gamedto"
)

// GameType tags stored on game records select the Rules implementation.
const GameTypeChess = "chess"

// Outcome is the terminal-state report of a rules check.
type Outcome struct {
	Ended  bool
	Result string // "1-0" | "0-1" | "1/2-1/2"
}

// State is an opaque per-game-type position. Implementations are produced and
// consumed only by the matching Rules.
type State interface {
	FEN() string
	Turn() gamedto.Role
	Moves() []string
}

// Rules validates and applies moves for one game type. Implementations must be
// safe for concurrent use; State values are immutable (ApplyMove returns a new
// one).
type Rules interface {
	InitialState() State
	ValidateMove(s State, move string) bool
	ApplyMove(s State, move string) (State, error)
	CheckGameEnd(s State) Outcome
	Serialize(s State) string
	Deserialize(raw string) (State, error)
}

var registry = map[string]Rules{
	GameTypeChess: &chessRules{},
}

// ForGameType returns the Rules for a stored game-type tag.
func ForGameType(gameType string) (Rules, error) {
	r, ok := registry[gameType]
	if !ok {
		return nil, fmt.Errorf("unsupported game type: %s", gameType)
	}
	return r, nil
}
