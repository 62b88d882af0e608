package handlers

import (
	"context"
	"net/http"

	"github.com/Pizzaface/PizzaPi-sub003/internal/api/middleware"
	"github.com/Pizzaface/PizzaPi-sub003/internal/directory"
	"github.com/Pizzaface/PizzaPi-sub003/pkg/types"
	"github.com/Pizzaface/PizzaPi-sub003/pkg/wire"
	"github.com/gin-gonic/gin"
)

// SessionReader is the directory view the session endpoints need.
type SessionReader interface {
	ListSessions(ctx context.Context, userID string) ([]directory.Session, error)
	GetSession(ctx context.Context, id string) (directory.Session, error)
}

// SessionEnder ends a session and notifies its connected parties.
type SessionEnder interface {
	EndSession(ctx context.Context, userID, sessionID string) error
}

type SessionHandler struct {
	sessions SessionReader
	ender    SessionEnder
}

func NewSessionHandler(sessions SessionReader, ender SessionEnder) *SessionHandler {
	return &SessionHandler{sessions: sessions, ender: ender}
}

// ListSessions handles GET /api/sessions
func (h *SessionHandler) ListSessions(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	sessions, err := h.sessions.ListSessions(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	infos := make([]wire.SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	c.JSON(http.StatusOK, wire.SessionsPayload{Sessions: infos})
}

// GetSession handles GET /api/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	s, err := h.sessions.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	// Other users' sessions are indistinguishable from missing ones.
	if s.UserID != userID {
		writeError(c, directory.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, s.Info())
}

// DeleteSession handles DELETE /api/sessions/:id
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	if err := h.ender.EndSession(c.Request.Context(), userID, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.SuccessResponse{Success: true})
}
