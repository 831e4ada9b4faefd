package engine

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/plydojo/game-server/pkg/gamedto"
)

type chessRules struct{}

type chessState struct {
	game    *nchess.Game
	history []string // SAN, in play order
}

func (s *chessState) FEN() string { return s.game.FEN() }

func (s *chessState) Turn() gamedto.Role {
	if s.game.Position().Turn() == nchess.White {
		return gamedto.RoleWhite
	}
	return gamedto.RoleBlack
}

func (s *chessState) Moves() []string {
	out := make([]string, len(s.history))
	copy(out, s.history)
	return out
}

func (r *chessRules) InitialState() State {
	return &chessState{game: nchess.NewGame()}
}

// replay rebuilds a position from the start by applying SAN moves. FEN is
// derived, never authoritative (the stored move list is).
func replay(moves []string) (*nchess.Game, error) {
	game := nchess.NewGame()
	for _, mv := range moves {
		if err := game.PushNotationMove(mv, nchess.AlgebraicNotation{}, nil); err != nil {
			return nil, fmt.Errorf("replay %q: %w", mv, err)
		}
	}
	return game, nil
}

func (r *chessRules) ValidateMove(s State, move string) bool {
	cs, ok := s.(*chessState)
	if !ok {
		return false
	}
	game, err := replay(cs.history)
	if err != nil {
		return false
	}
	return game.PushNotationMove(strings.TrimSpace(move), nchess.AlgebraicNotation{}, nil) == nil
}

func (r *chessRules) ApplyMove(s State, move string) (State, error) {
	cs, ok := s.(*chessState)
	if !ok {
		return nil, gamedto.NewError(gamedto.KindInvalidInput, "state is not a chess position")
	}
	move = strings.TrimSpace(move)
	game, err := replay(cs.history)
	if err != nil {
		return nil, err
	}
	if err := game.PushNotationMove(move, nchess.AlgebraicNotation{}, nil); err != nil {
		return nil, gamedto.NewError(gamedto.KindInvalidInput, "invalid move: "+move)
	}
	history := append(append([]string{}, cs.history...), move)
	return &chessState{game: game, history: history}, nil
}

func (r *chessRules) CheckGameEnd(s State) Outcome {
	cs, ok := s.(*chessState)
	if !ok {
		return Outcome{}
	}
	switch cs.game.Outcome() {
	case nchess.WhiteWon:
		return Outcome{Ended: true, Result: "1-0"}
	case nchess.BlackWon:
		return Outcome{Ended: true, Result: "0-1"}
	case nchess.Draw:
		return Outcome{Ended: true, Result: "1/2-1/2"}
	}
	return Outcome{}
}

// Serialize stores the SAN move list as space-separated text. An empty string
// is the start position.
func (r *chessRules) Serialize(s State) string {
	cs, ok := s.(*chessState)
	if !ok {
		return ""
	}
	return strings.Join(cs.history, " ")
}

func (r *chessRules) Deserialize(raw string) (State, error) {
	moves := strings.Fields(raw)
	game, err := replay(moves)
	if err != nil {
		return nil, err
	}
	return &chessState{game: game, history: moves}, nil
}

// IsCheckmate reports whether the position is a decisive terminal state. Draws
// (stalemate, repetition, material) report false.
func IsCheckmate(rules Rules, s State) bool {
	end := rules.CheckGameEnd(s)
	return end.Ended && end.Result != "1/2-1/2"
}
