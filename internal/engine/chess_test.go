package engine

import (
	"strings"
	"testing"

	"github.com/plydojo/game-server/pkg/gamedto"
)

func TestChessInitialState(t *testing.T) {
	rules, err := ForGameType(GameTypeChess)
	if err != nil {
		t.Fatalf("ForGameType: %v", err)
	}
	s := rules.InitialState()
	if s.Turn() != gamedto.RoleWhite {
		t.Fatalf("expected white to move, got %s", s.Turn())
	}
	if len(s.Moves()) != 0 {
		t.Fatalf("expected empty history, got %v", s.Moves())
	}
	if rules.Serialize(s) != "" {
		t.Fatalf("expected empty serialization for start position, got %q", rules.Serialize(s))
	}
}

func TestChessApplyMoveFlipsTurn(t *testing.T) {
	rules, _ := ForGameType(GameTypeChess)
	s := rules.InitialState()

	next, err := rules.ApplyMove(s, "e4")
	if err != nil {
		t.Fatalf("ApplyMove e4: %v", err)
	}
	if next.Turn() != gamedto.RoleBlack {
		t.Fatalf("expected black to move after e4, got %s", next.Turn())
	}
	if got := next.Moves(); len(got) != 1 || got[0] != "e4" {
		t.Fatalf("expected moves [e4], got %v", got)
	}
	// original state is untouched
	if len(s.Moves()) != 0 {
		t.Fatalf("ApplyMove mutated input state: %v", s.Moves())
	}
}

func TestChessIllegalMoveRejected(t *testing.T) {
	rules, _ := ForGameType(GameTypeChess)
	s := rules.InitialState()

	if rules.ValidateMove(s, "e5") {
		t.Fatalf("e5 should be illegal for white on move one")
	}
	if _, err := rules.ApplyMove(s, "e5"); gamedto.ErrorKind(err) != gamedto.KindInvalidInput {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestChessFoolsMate(t *testing.T) {
	rules, _ := ForGameType(GameTypeChess)
	s := rules.InitialState()
	for _, mv := range []string{"f3", "e5", "g4", "Qh4#"} {
		next, err := rules.ApplyMove(s, mv)
		if err != nil {
			t.Fatalf("ApplyMove %s: %v", mv, err)
		}
		s = next
	}
	end := rules.CheckGameEnd(s)
	if !end.Ended || end.Result != "0-1" {
		t.Fatalf("expected black checkmate 0-1, got %+v", end)
	}
	if !IsCheckmate(rules, s) {
		t.Fatalf("expected IsCheckmate true")
	}
}

func TestChessSerializeRoundTrip(t *testing.T) {
	rules, _ := ForGameType(GameTypeChess)
	s := rules.InitialState()
	for _, mv := range []string{"e4", "e5", "Nf3", "Nc6"} {
		next, err := rules.ApplyMove(s, mv)
		if err != nil {
			t.Fatalf("ApplyMove %s: %v", mv, err)
		}
		s = next
	}

	raw := rules.Serialize(s)
	if raw != "e4 e5 Nf3 Nc6" {
		t.Fatalf("unexpected serialization: %q", raw)
	}
	restored, err := rules.Deserialize(raw)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if restored.FEN() != s.FEN() {
		t.Fatalf("FEN mismatch after round trip: %q vs %q", restored.FEN(), s.FEN())
	}
	if restored.Turn() != s.Turn() {
		t.Fatalf("turn mismatch after round trip")
	}
	if strings.Join(restored.Moves(), " ") != raw {
		t.Fatalf("history mismatch after round trip: %v", restored.Moves())
	}
}

func TestUnsupportedGameType(t *testing.T) {
	if _, err := ForGameType("checkers"); err == nil {
		t.Fatalf("expected error for unsupported game type")
	}
}
