package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Pizzaface/PizzaPi-sub003/internal/directory"
	"github.com/Pizzaface/PizzaPi-sub003/internal/logger"
	"github.com/Pizzaface/PizzaPi-sub003/internal/store"
	wshandlers "github.com/Pizzaface/PizzaPi-sub003/internal/websocket/handlers"
	"github.com/Pizzaface/PizzaPi-sub003/pkg/types"
	"github.com/gin-gonic/gin"
)

// statusClientClosedRequest is nginx's status for a request the client
// abandoned. It is never seen by that client.
const statusClientClosedRequest = 499

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, directory.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, wshandlers.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, wshandlers.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusNotFound:
		msg = "not found"
	case http.StatusServiceUnavailable:
		msg = "temporarily unavailable"
	case http.StatusInternalServerError:
		msg = "internal error"
	case statusClientClosedRequest:
		logger.Debugf("%s %s: client went away", c.Request.Method, c.Request.URL.Path)
		msg = "request canceled"
	}
	if status >= http.StatusInternalServerError {
		logger.Warnf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, types.ErrorResponse{Error: msg})
}
