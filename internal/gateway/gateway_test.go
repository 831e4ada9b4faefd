package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/plydojo/game-server/internal/auth"
	"github.com/plydojo/game-server/internal/coordinator"
	"github.com/plydojo/game-server/internal/engine"
	"github.com/plydojo/game-server/internal/store"
	"github.com/plydojo/game-server/pkg/gamedto"
)

func newTestGateway(t *testing.T) (*Server, *coordinator.Coordinator, *httptest.Server, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	coord := coordinator.New(store.NewMem(), rdb, coordinator.DefaultConfig())
	verifier := auth.StaticVerifier{"tok-white": "u-white", "tok-black": "u-black", "tok-out": "u-out"}
	s := NewServer("127.0.0.1:0", coord, verifier)
	coord.SetNotifier(s)
	srv := httptest.NewServer(http.HandlerFunc(s.handleWS))
	return s, coord, srv, func() {
		srv.Close()
		mr.Close()
	}
}

func dialWS(t *testing.T, srv *httptest.Server, token, gameID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
	if gameID != "" {
		url += "&gameId=" + gameID
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", token, err)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var ev Event
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func sendEvent(t *testing.T, conn *websocket.Conn, name string, data any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", name, err)
	}
	if err := wsjson.Write(ctx, conn, Event{Event: name, Data: raw}); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func decodeAck(t *testing.T, ev Event) ackPayload {
	t.Helper()
	var ack ackPayload
	if err := json.Unmarshal(ev.Data, &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	return ack
}

func TestJoinAckCarriesState(t *testing.T) {
	_, coord, srv, cleanup := newTestGateway(t)
	defer cleanup()

	gameID, err := coord.CreateMultiplayerGame(context.Background(), "u-white", "u-black", engine.GameTypeChess)
	if err != nil {
		t.Fatalf("CreateMultiplayerGame: %v", err)
	}

	white := dialWS(t, srv, "tok-white", gameID)
	defer white.Close(websocket.StatusNormalClosure, "")

	ev := readEvent(t, white)
	if ev.Event != EvJoin {
		t.Fatalf("expected %s ack, got %s", EvJoin, ev.Event)
	}
	ack := decodeAck(t, ev)
	if !ack.Success || ack.State == nil || ack.State.ID != gameID {
		t.Fatalf("join ack = %+v", ack)
	}
}

func TestTypingRequiresSeat(t *testing.T) {
	_, coord, srv, cleanup := newTestGateway(t)
	defer cleanup()

	gameID, err := coord.CreateMultiplayerGame(context.Background(), "u-white", "u-black", engine.GameTypeChess)
	if err != nil {
		t.Fatalf("CreateMultiplayerGame: %v", err)
	}

	white := dialWS(t, srv, "tok-white", gameID)
	defer white.Close(websocket.StatusNormalClosure, "")
	readEvent(t, white) // join ack

	outsider := dialWS(t, srv, "tok-out", "")
	defer outsider.Close(websocket.StatusNormalClosure, "")

	sendEvent(t, outsider, EvTyping, typingPayload{GameID: gameID, Typing: true})
	ack := decodeAck(t, readEvent(t, outsider))
	if ack.Success || ack.Kind != string(gamedto.KindForbidden) {
		t.Fatalf("outsider typing ack = %+v", ack)
	}

	// a participant's typing does go through, and is the next event white
	// sees, so the outsider's was never relayed
	black := dialWS(t, srv, "tok-black", "")
	defer black.Close(websocket.StatusNormalClosure, "")
	sendEvent(t, black, EvTyping, typingPayload{GameID: gameID, Typing: true})

	ev := readEvent(t, white)
	if ev.Event != EvTyping {
		t.Fatalf("expected %s, got %s", EvTyping, ev.Event)
	}
	var tb typingBroadcast
	if err := json.Unmarshal(ev.Data, &tb); err != nil {
		t.Fatalf("decode typing: %v", err)
	}
	if tb.UserID != "u-black" {
		t.Fatalf("typing relayed from %q, expected u-black", tb.UserID)
	}
}

func TestMoveAckAndBroadcast(t *testing.T) {
	_, coord, srv, cleanup := newTestGateway(t)
	defer cleanup()

	gameID, err := coord.CreateMultiplayerGame(context.Background(), "u-white", "u-black", engine.GameTypeChess)
	if err != nil {
		t.Fatalf("CreateMultiplayerGame: %v", err)
	}

	white := dialWS(t, srv, "tok-white", gameID)
	defer white.Close(websocket.StatusNormalClosure, "")
	readEvent(t, white)
	black := dialWS(t, srv, "tok-black", gameID)
	defer black.Close(websocket.StatusNormalClosure, "")
	readEvent(t, black)

	sendEvent(t, white, EvMove, movePayload{GameID: gameID, Move: "e4"})

	ack := decodeAck(t, readEvent(t, white))
	if !ack.Success || ack.State == nil || ack.State.LastMove != "e4" {
		t.Fatalf("move ack = %+v", ack)
	}
	if ev := readEvent(t, black); ev.Event != EvState {
		t.Fatalf("expected %s broadcast, got %s", EvState, ev.Event)
	}
	readEvent(t, white) // the mover receives the room broadcast too

	sendEvent(t, white, EvMove, movePayload{GameID: gameID, Move: "e4"})
	ack = decodeAck(t, readEvent(t, white))
	if ack.Success || ack.Kind != string(gamedto.KindInvalidState) {
		t.Fatalf("out-of-turn move ack = %+v", ack)
	}
}

func TestCheckmateEndBroadcast(t *testing.T) {
	_, coord, srv, cleanup := newTestGateway(t)
	defer cleanup()

	ctx := context.Background()
	gameID, err := coord.CreateMultiplayerGame(ctx, "u-white", "u-black", engine.GameTypeChess)
	if err != nil {
		t.Fatalf("CreateMultiplayerGame: %v", err)
	}

	black := dialWS(t, srv, "tok-black", gameID)
	defer black.Close(websocket.StatusNormalClosure, "")
	readEvent(t, black)

	// setup moves straight through the coordinator, no broadcasts
	for _, m := range []struct{ user, mv string }{
		{"u-white", "f3"}, {"u-black", "e5"}, {"u-white", "g4"},
	} {
		if _, err := coord.ProcessMove(ctx, gameID, m.user, m.mv); err != nil {
			t.Fatalf("move %s: %v", m.mv, err)
		}
	}

	sendEvent(t, black, EvMove, movePayload{GameID: gameID, Move: "Qh4#"})

	ack := decodeAck(t, readEvent(t, black))
	if !ack.Success || ack.State == nil || ack.State.Result != "0-1" {
		t.Fatalf("mating move ack = %+v", ack)
	}
	if ev := readEvent(t, black); ev.Event != EvState {
		t.Fatalf("expected %s, got %s", EvState, ev.Event)
	}

	ev := readEvent(t, black)
	if ev.Event != EvEnd {
		t.Fatalf("expected %s, got %s", EvEnd, ev.Event)
	}
	var end endPayload
	if err := json.Unmarshal(ev.Data, &end); err != nil {
		t.Fatalf("decode end: %v", err)
	}
	if end.Reason != EndReasonCheckmate || end.Result != "0-1" || end.Winner != "u-black" {
		t.Fatalf("end = %+v", end)
	}
}

func TestDrawOfferedBroadcast(t *testing.T) {
	_, coord, srv, cleanup := newTestGateway(t)
	defer cleanup()

	gameID, err := coord.CreateMultiplayerGame(context.Background(), "u-white", "u-black", engine.GameTypeChess)
	if err != nil {
		t.Fatalf("CreateMultiplayerGame: %v", err)
	}

	white := dialWS(t, srv, "tok-white", gameID)
	defer white.Close(websocket.StatusNormalClosure, "")
	readEvent(t, white)
	black := dialWS(t, srv, "tok-black", gameID)
	defer black.Close(websocket.StatusNormalClosure, "")
	readEvent(t, black)

	sendEvent(t, white, EvDrawOffer, gamePayload{GameID: gameID})

	ack := decodeAck(t, readEvent(t, white))
	if !ack.Success {
		t.Fatalf("draw offer ack = %+v", ack)
	}

	ev := readEvent(t, black)
	if ev.Event != EvDrawOffered {
		t.Fatalf("expected %s, got %s", EvDrawOffered, ev.Event)
	}
	var offered drawOfferedPayload
	if err := json.Unmarshal(ev.Data, &offered); err != nil {
		t.Fatalf("decode offered: %v", err)
	}
	if offered.OfferedBy != "u-white" {
		t.Fatalf("offeredBy = %q, expected u-white", offered.OfferedBy)
	}
	if offered.State == nil || !offered.State.DrawOffered {
		t.Fatalf("offered state = %+v", offered.State)
	}

	sendEvent(t, black, EvDrawRespond, drawRespondPayload{GameID: gameID, Accept: true})
	ack = decodeAck(t, readEvent(t, black))
	if !ack.Success || ack.State == nil || ack.State.Result != "1/2-1/2" {
		t.Fatalf("draw accept ack = %+v", ack)
	}
	if ev := readEvent(t, black); ev.Event != EvState {
		t.Fatalf("expected %s, got %s", EvState, ev.Event)
	}
	ev = readEvent(t, black)
	if ev.Event != EvEnd {
		t.Fatalf("expected %s, got %s", EvEnd, ev.Event)
	}
	var end endPayload
	if err := json.Unmarshal(ev.Data, &end); err != nil {
		t.Fatalf("decode end: %v", err)
	}
	if end.Reason != EndReasonDrawAgreement || end.Result != "1/2-1/2" || end.Winner != "" {
		t.Fatalf("end = %+v", end)
	}
}
