package store

import (
	"context"
	"testing"

	"github.com/plydojo/game-server/pkg/gamedto"
)

func twoPlayers(white, black string) []NewPlayer {
	return []NewPlayer{
		{UserID: white, Role: gamedto.RoleWhite},
		{UserID: black, Role: gamedto.RoleBlack},
	}
}

func TestCreateGameValidatesRoster(t *testing.T) {
	m := NewMem()
	ctx := context.Background()

	cases := []struct {
		name   string
		roster []NewPlayer
	}{
		{"empty", nil},
		{"duplicate role", []NewPlayer{
			{UserID: "a", Role: gamedto.RoleWhite},
			{UserID: "b", Role: gamedto.RoleWhite},
		}},
		{"missing user id", []NewPlayer{
			{Role: gamedto.RoleWhite},
			{UserID: "b", Role: gamedto.RoleBlack},
		}},
		{"bad role", []NewPlayer{{UserID: "a", Role: "red"}}},
		{"two ais", []NewPlayer{
			{IsAI: true, Role: gamedto.RoleWhite, AIDifficulty: "easy"},
			{IsAI: true, Role: gamedto.RoleBlack, AIDifficulty: "hard"},
		}},
	}
	for _, c := range cases {
		if _, err := m.CreateGame(ctx, "chess", "", c.roster); err == nil {
			t.Errorf("%s: expected error", c.name)
		}
	}

	g, err := m.CreateGame(ctx, "chess", "", twoPlayers("a", "b"))
	if err != nil {
		t.Fatalf("valid roster: %v", err)
	}
	if g.ID == "" || len(g.Players) != 2 {
		t.Fatalf("unexpected game %+v", g)
	}
}

func TestUpdateStateKeepsResult(t *testing.T) {
	m := NewMem()
	ctx := context.Background()
	g, err := m.CreateGame(ctx, "chess", "", twoPlayers("a", "b"))
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}

	updated, err := m.UpdateState(ctx, g.ID, "e4", "")
	if err != nil {
		t.Fatalf("UpdateState: %v", err)
	}
	if updated.State != "e4" || updated.Result != "" {
		t.Fatalf("unexpected %+v", updated)
	}
	updated, err = m.UpdateState(ctx, g.ID, "e4 e5", "1-0")
	if err != nil {
		t.Fatalf("UpdateState with result: %v", err)
	}
	if updated.Result != "1-0" {
		t.Fatalf("result not persisted: %+v", updated)
	}
}

func TestDrawOfferRoundTrip(t *testing.T) {
	m := NewMem()
	ctx := context.Background()
	g, err := m.CreateGame(ctx, "chess", "", twoPlayers("a", "b"))
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}

	if offer := g.CurrentDrawOffer(); offer.Offered {
		t.Fatalf("fresh game has an offer: %+v", offer)
	}
	g, err = m.SetDrawOffer(ctx, g.ID, DrawOffer{Offered: true, ByRole: gamedto.RoleBlack})
	if err != nil {
		t.Fatalf("SetDrawOffer: %v", err)
	}
	offer := g.CurrentDrawOffer()
	if !offer.Offered || offer.ByRole != gamedto.RoleBlack {
		t.Fatalf("unexpected offer %+v", offer)
	}
	g, err = m.SetDrawOffer(ctx, g.ID, DrawOffer{})
	if err != nil {
		t.Fatalf("clear offer: %v", err)
	}
	if g.CurrentDrawOffer().Offered {
		t.Fatalf("offer should be cleared")
	}
}

func TestListGamesFiltersAndPages(t *testing.T) {
	m := NewMem()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := m.CreateGame(ctx, "chess", "", twoPlayers("a", "b")); err != nil {
			t.Fatalf("CreateGame: %v", err)
		}
	}
	g, err := m.CreateGame(ctx, "chess", "", twoPlayers("a", "c"))
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if _, err := m.SetResult(ctx, g.ID, "1-0"); err != nil {
		t.Fatalf("SetResult: %v", err)
	}

	page, err := m.ListGames(ctx, "a", ListFilter{Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("ListGames: %v", err)
	}
	if page.Total != 4 || len(page.Items) != 2 || page.TotalPages != 2 {
		t.Fatalf("unexpected page %+v", page)
	}

	page, err = m.ListGames(ctx, "a", ListFilter{Result: "1-0", Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("ListGames by result: %v", err)
	}
	if page.Total != 1 || page.Items[0].ID != g.ID {
		t.Fatalf("result filter broken: %+v", page)
	}

	page, err = m.ListGames(ctx, "stranger", ListFilter{})
	if err != nil || page.Total != 0 {
		t.Fatalf("stranger should see nothing: %+v, %v", page, err)
	}
}

func TestGetGameNotFound(t *testing.T) {
	m := NewMem()
	if _, err := m.GetGame(context.Background(), "missing"); gamedto.ErrorKind(err) != gamedto.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
