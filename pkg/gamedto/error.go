package gamedto

import "errors"

// Kind classifies a domain error for transport mapping.
type Kind string

const (
	KindNotFound     Kind = "NOT_FOUND"
	KindForbidden    Kind = "FORBIDDEN"
	KindInvalidState Kind = "INVALID_STATE"
	KindInvalidInput Kind = "INVALID_INPUT"
	KindUnauthorized Kind = "UNAUTHORIZED"
)

type DomainError struct {
	Kind    Kind
	Message string
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Kind != "" {
		return string(e.Kind)
	}
	return "game service error"
}

func NewError(kind Kind, message string) *DomainError {
	return &DomainError{Kind: kind, Message: message}
}

// ErrorKind extracts the Kind from err, or "" when err is not a DomainError.
func ErrorKind(err error) Kind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

var (
	ErrGameNotFound  = NewError(KindNotFound, "game not found")
	ErrNotInGame     = NewError(KindForbidden, "you are not a player in this game")
	ErrGameEnded     = NewError(KindInvalidState, "game has already ended")
	ErrNotYourTurn   = NewError(KindInvalidState, "it's not your turn")
	ErrNoDrawOffered = NewError(KindInvalidState, "no draw has been offered")
	ErrUnauthorized  = NewError(KindUnauthorized, "invalid or missing token")
)
