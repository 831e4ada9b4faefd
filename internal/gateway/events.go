package gateway

import (
	"encoding/json"

	"github.com/plydojo/game-server/pkg/gamedto"
)

// Client-to-server events.
const (
	EvJoin        = "game:join"
	EvMove        = "game:move"
	EvResign      = "game:resign"
	EvDrawOffer   = "game:draw:offer"
	EvDrawRespond = "game:draw:respond"
	EvTyping      = "chat:typing"
)

// Server-to-client events.
const (
	EvState            = "game:state"
	EvEnd              = "game:end"
	EvDrawOffered      = "game:draw:offered"
	EvDrawDeclined     = "game:draw:declined"
	EvMatchFound       = "match:found"
	EvRematchRequested = "rematch:requested"
	EvRematchStarted   = "rematch:started"
	EvError            = "error"
)

// Reasons carried by the game:end broadcast.
const (
	EndReasonCheckmate     = "checkmate"
	EndReasonResignation   = "resignation"
	EndReasonDraw          = "draw"
	EndReasonDrawAgreement = "draw_agreement"
)

// Event is the wire envelope in both directions.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func newEvent(name string, data any) Event {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{Event: EvError, Data: json.RawMessage(`{"message":"internal error"}`)}
	}
	return Event{Event: name, Data: raw}
}

type joinPayload struct {
	GameID string `json:"gameId"`
}

type movePayload struct {
	GameID string `json:"gameId"`
	Move   string `json:"move"`
}

type gamePayload struct {
	GameID string `json:"gameId"`
}

type drawRespondPayload struct {
	GameID string `json:"gameId"`
	Accept bool   `json:"accept"`
}

type typingPayload struct {
	GameID string `json:"gameId"`
	Typing bool   `json:"typing"`
}

type typingBroadcast struct {
	GameID string `json:"gameId"`
	UserID string `json:"userId"`
	Typing bool   `json:"typing"`
}

// ackPayload answers the acting connection for every request. Success carries
// the post-mutation state where one exists; failure carries the message and
// error kind instead.
type ackPayload struct {
	Success bool               `json:"success"`
	State   *gamedto.GameState `json:"state,omitempty"`
	Message string             `json:"message,omitempty"`
	Kind    string             `json:"kind,omitempty"`
}

type endPayload struct {
	GameID string `json:"gameId"`
	Reason string `json:"reason"`
	Result string `json:"result"`
	Winner string `json:"winner,omitempty"`
}

type drawOfferedPayload struct {
	GameID    string             `json:"gameId"`
	OfferedBy string             `json:"offeredBy"`
	State     *gamedto.GameState `json:"state"`
}

type drawDeclinedPayload struct {
	GameID     string `json:"gameId"`
	DeclinedBy string `json:"declinedBy"`
}

type matchFoundPayload struct {
	GameID string `json:"gameId"`
}

type rematchRequestedPayload struct {
	GameID      string `json:"gameId"`
	RequesterID string `json:"requesterId"`
}

type errorPayload struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}
