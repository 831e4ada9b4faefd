package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"go.uber.org/zap"

	"github.com/plydojo/game-server/internal/auth"
	"github.com/plydojo/game-server/internal/coordinator"
	"github.com/plydojo/game-server/internal/obslog"
	"github.com/plydojo/game-server/pkg/gamedto"
)

// Server accepts websocket connections at /ws, authenticates them, and
// bridges events to the coordinator. It implements the coordinator's match
// and rematch notifier interfaces, so pairing results reach connected clients
// without polling.
type Server struct {
	coord    *coordinator.Coordinator
	verifier auth.Verifier
	rooms    *rooms

	httpSrv *http.Server
}

func NewServer(addr string, coord *coordinator.Coordinator, verifier auth.Verifier) *Server {
	s := &Server{
		coord:    coord,
		verifier: verifier,
		rooms:    newRooms(),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.httpSrv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	return s
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	obslog.L().Info("ws_listen", zap.String("addr", s.httpSrv.Addr))
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error { return s.httpSrv.Shutdown(ctx) }

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	token := auth.FromBearer(r.Header.Get("Authorization"))
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	userID, err := s.verifier.Verify(r.Context(), token)
	if err != nil {
		status := http.StatusInternalServerError
		if gamedto.ErrorKind(err) == gamedto.KindUnauthorized {
			status = http.StatusUnauthorized
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.Error(err))
		return
	}

	c := &client{userID: userID, conn: conn}
	s.rooms.register(c)
	obslog.L().Info("ws_connect", zap.String("user_id", userID))

	ctx := context.WithoutCancel(r.Context())

	// ?gameId= joins the room during the handshake, sparing a round trip
	if gameID := r.URL.Query().Get("gameId"); gameID != "" {
		s.joinGame(ctx, c, gameID)
	}

	s.readLoop(ctx, c)

	s.rooms.unregister(c)
	for _, gameID := range c.joinedRooms() {
		s.coord.HandleDisconnect(ctx, gameID, userID)
	}
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	obslog.L().Info("ws_disconnect", zap.String("user_id", userID))
}

func (s *Server) readLoop(ctx context.Context, c *client) {
	for {
		var ev Event
		if err := wsjson.Read(ctx, c.conn, &ev); err != nil {
			return
		}
		s.dispatch(ctx, c, ev)
	}
}

// dispatch routes one inbound event. Every handler acknowledges to the acting
// connection with a {success, state|message} payload under the request's
// event name, in addition to any room broadcast.
func (s *Server) dispatch(ctx context.Context, c *client, ev Event) {
	switch ev.Event {
	case EvJoin:
		var p joinPayload
		if !s.decode(ctx, c, ev.Event, ev.Data, &p) {
			return
		}
		s.joinGame(ctx, c, p.GameID)
	case EvMove:
		var p movePayload
		if !s.decode(ctx, c, ev.Event, ev.Data, &p) {
			return
		}
		state, err := s.coord.ProcessMove(ctx, p.GameID, c.userID, p.Move)
		if err != nil {
			s.nack(ctx, c, ev.Event, err)
			return
		}
		s.ensureRoom(c, p.GameID)
		s.ackState(ctx, c, ev.Event, state)
		s.broadcastState(ctx, p.GameID, state, moveEndReason(state))
	case EvResign:
		var p gamePayload
		if !s.decode(ctx, c, ev.Event, ev.Data, &p) {
			return
		}
		state, err := s.coord.ProcessResignation(ctx, p.GameID, c.userID)
		if err != nil {
			s.nack(ctx, c, ev.Event, err)
			return
		}
		s.ensureRoom(c, p.GameID)
		s.ackState(ctx, c, ev.Event, state)
		s.broadcastState(ctx, p.GameID, state, EndReasonResignation)
	case EvDrawOffer:
		var p gamePayload
		if !s.decode(ctx, c, ev.Event, ev.Data, &p) {
			return
		}
		state, err := s.coord.OfferDraw(ctx, p.GameID, c.userID)
		if err != nil {
			s.nack(ctx, c, ev.Event, err)
			return
		}
		s.ensureRoom(c, p.GameID)
		s.ackState(ctx, c, ev.Event, state)
		s.rooms.broadcast(ctx, p.GameID, newEvent(EvDrawOffered, drawOfferedPayload{
			GameID:    p.GameID,
			OfferedBy: c.userID,
			State:     state,
		}), nil)
	case EvDrawRespond:
		var p drawRespondPayload
		if !s.decode(ctx, c, ev.Event, ev.Data, &p) {
			return
		}
		state, err := s.coord.RespondToDraw(ctx, p.GameID, c.userID, p.Accept)
		if err != nil {
			s.nack(ctx, c, ev.Event, err)
			return
		}
		s.ensureRoom(c, p.GameID)
		s.ackState(ctx, c, ev.Event, state)
		if p.Accept {
			s.broadcastState(ctx, p.GameID, state, EndReasonDrawAgreement)
		} else {
			s.rooms.broadcast(ctx, p.GameID, newEvent(EvDrawDeclined, drawDeclinedPayload{
				GameID:     p.GameID,
				DeclinedBy: c.userID,
			}), nil)
		}
	case EvTyping:
		var p typingPayload
		if !s.decode(ctx, c, ev.Event, ev.Data, &p) {
			return
		}
		// relay only, but still participants-only
		if !c.inRoom(p.GameID) {
			if err := s.coord.ValidateGameAccess(ctx, p.GameID, c.userID); err != nil {
				s.nack(ctx, c, ev.Event, err)
				return
			}
			s.rooms.join(p.GameID, c)
		}
		c.send(ctx, newEvent(ev.Event, ackPayload{Success: true}))
		s.rooms.broadcast(ctx, p.GameID, newEvent(EvTyping, typingBroadcast{
			GameID: p.GameID,
			UserID: c.userID,
			Typing: p.Typing,
		}), c)
	default:
		c.send(ctx, newEvent(EvError, errorPayload{Message: "unknown event: " + ev.Event}))
	}
}

func (s *Server) decode(ctx context.Context, c *client, event string, raw json.RawMessage, dst any) bool {
	if err := json.Unmarshal(raw, dst); err != nil {
		c.send(ctx, newEvent(event, ackPayload{
			Success: false,
			Message: "malformed payload",
			Kind:    string(gamedto.KindInvalidInput),
		}))
		return false
	}
	return true
}

// ensureRoom adds a connection to a game room after a successful mutation, so
// a client that skipped game:join still receives the resulting broadcasts.
// The coordinator call that preceded it already proved participation.
func (s *Server) ensureRoom(c *client, gameID string) {
	if !c.inRoom(gameID) {
		s.rooms.join(gameID, c)
	}
}

func (s *Server) joinGame(ctx context.Context, c *client, gameID string) {
	if err := s.coord.ValidateGameAccess(ctx, gameID, c.userID); err != nil {
		s.nack(ctx, c, EvJoin, err)
		return
	}
	state, err := s.coord.GameState(ctx, gameID)
	if err != nil {
		s.nack(ctx, c, EvJoin, err)
		return
	}
	s.rooms.join(gameID, c)
	s.ackState(ctx, c, EvJoin, state)
	obslog.L().Debug("ws_room_join", zap.String("user_id", c.userID), zap.String("game_id", gameID))
}

// broadcastState pushes the post-mutation state to the room, followed by the
// end event when the mutation finished the game.
func (s *Server) broadcastState(ctx context.Context, gameID string, state *gamedto.GameState, endReason string) {
	s.rooms.broadcast(ctx, gameID, newEvent(EvState, state), nil)
	if state.Result != "" {
		s.rooms.broadcast(ctx, gameID, newEvent(EvEnd, endPayload{
			GameID: gameID,
			Reason: endReason,
			Result: state.Result,
			Winner: winnerID(state),
		}), nil)
	}
}

func moveEndReason(state *gamedto.GameState) string {
	if state.IsCheckmate {
		return EndReasonCheckmate
	}
	return EndReasonDraw
}

// winnerID resolves the winning player's user id from a decisive result.
// Draws and live games have none.
func winnerID(state *gamedto.GameState) string {
	var role gamedto.Role
	switch state.Result {
	case "1-0":
		role = gamedto.RoleWhite
	case "0-1":
		role = gamedto.RoleBlack
	default:
		return ""
	}
	for _, p := range state.Players {
		if p.Role == role {
			return p.UserID
		}
	}
	return ""
}

func (s *Server) ackState(ctx context.Context, c *client, event string, state *gamedto.GameState) {
	c.send(ctx, newEvent(event, ackPayload{Success: true, State: state}))
}

func (s *Server) nack(ctx context.Context, c *client, event string, err error) {
	c.send(ctx, newEvent(event, ackPayload{
		Success: false,
		Message: err.Error(),
		Kind:    string(gamedto.ErrorKind(err)),
	}))
}

// NotifyMatchFound delivers match:found to every connection of both players.
func (s *Server) NotifyMatchFound(userIDs []string, gameID string) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	ev := newEvent(EvMatchFound, matchFoundPayload{GameID: gameID})
	for _, userID := range userIDs {
		s.rooms.sendToUser(ctx, userID, ev)
	}
}

// NotifyRematchRequested tells the opponent a rematch is on the table.
func (s *Server) NotifyRematchRequested(userID, gameID, requesterID string) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	s.rooms.sendToUser(ctx, userID, newEvent(EvRematchRequested, rematchRequestedPayload{
		GameID:      gameID,
		RequesterID: requesterID,
	}))
}

// NotifyRematchStarted points both players at the fresh game.
func (s *Server) NotifyRematchStarted(userIDs []string, gameID string) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	ev := newEvent(EvRematchStarted, matchFoundPayload{GameID: gameID})
	for _, userID := range userIDs {
		s.rooms.sendToUser(ctx, userID, ev)
	}
}

var (
	_ coordinator.MatchNotifier   = (*Server)(nil)
	_ coordinator.RematchNotifier = (*Server)(nil)
)
