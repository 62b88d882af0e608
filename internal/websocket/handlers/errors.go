package handlers

import (
	"errors"

	"github.com/Pizzaface/PizzaPi-sub003/internal/auth"
	"github.com/Pizzaface/PizzaPi-sub003/internal/directory"
	"github.com/Pizzaface/PizzaPi-sub003/internal/logger"
	"github.com/Pizzaface/PizzaPi-sub003/pkg/wire"
)

var (
	// ErrForbidden is returned when the caller may not use a runner or path.
	ErrForbidden = errors.New("forbidden")
	// ErrBadRequest is returned for structurally invalid requests.
	ErrBadRequest = errors.New("bad request")
)

// ErrorPayloadFor maps an error to its client-visible shape.
func ErrorPayloadFor(err error) wire.ErrorPayload {
	switch {
	case errors.Is(err, directory.ErrNotFound):
		return wire.ErrorPayload{Code: wire.ErrCodeNotFound, Message: err.Error()}
	case errors.Is(err, auth.ErrTokenMismatch):
		return wire.ErrorPayload{Code: wire.ErrCodeTokenMismatch, Message: "invalid session token"}
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, ErrForbidden):
		return wire.ErrorPayload{Code: wire.ErrCodeUnauthorized, Message: err.Error()}
	case errors.Is(err, ErrBadRequest):
		return wire.ErrorPayload{Code: wire.ErrCodeBadRequest, Message: err.Error()}
	default:
		return wire.ErrorPayload{Code: wire.ErrCodeUnavailable, Message: "temporarily unavailable"}
	}
}

// errorResult reports err to the caller as an "error" event.
func errorResult(a AuthContext, err error) EventResult {
	payload := ErrorPayloadFor(err)
	if payload.Code == wire.ErrCodeUnavailable {
		logger.Warnf("%s handler failed (socket %s): %v", a.Channel(), a.SocketID(), err)
	} else {
		logger.Debugf("%s handler rejected (socket %s): %v", a.Channel(), a.SocketID(), err)
	}
	return NewEventResult(nil, []EmitInstruction{toSocket(a.SocketID(), "error", payload)})
}

// fatalResult reports err and drops the connection. Used during a channel's
// connect handshake.
func fatalResult(a AuthContext, err error) EventResult {
	return errorResult(a, err).withDisconnect()
}
