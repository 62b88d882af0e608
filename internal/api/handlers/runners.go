package handlers

import (
	"context"
	"net/http"

	"github.com/Pizzaface/PizzaPi-sub003/internal/api/middleware"
	"github.com/Pizzaface/PizzaPi-sub003/internal/directory"
	"github.com/Pizzaface/PizzaPi-sub003/internal/spawnack"
	"github.com/Pizzaface/PizzaPi-sub003/pkg/types"
	"github.com/Pizzaface/PizzaPi-sub003/pkg/wire"
	"github.com/gin-gonic/gin"
)

// RunnerReader is the directory view the runner endpoints need.
type RunnerReader interface {
	ListRunners(ctx context.Context, userID string) ([]directory.RunnerView, error)
	GetRunner(ctx context.Context, id string) (directory.Runner, error)
	ListTerminals(ctx context.Context, runnerID string) ([]directory.Terminal, error)
}

// Spawner sends start commands to connected runners.
type Spawner interface {
	Spawn(ctx context.Context, userID, runnerID string, req wire.SpawnRequest) (directory.Session, spawnack.Outcome, error)
	CreateTerminal(ctx context.Context, userID, runnerID string, req wire.CreateTerminalRequest) (directory.Terminal, error)
}

type RunnerHandler struct {
	runners RunnerReader
	spawner Spawner
}

func NewRunnerHandler(runners RunnerReader, spawner Spawner) *RunnerHandler {
	return &RunnerHandler{runners: runners, spawner: spawner}
}

// ListRunners handles GET /api/runners
func (h *RunnerHandler) ListRunners(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	runners, err := h.runners.ListRunners(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	infos := make([]wire.RunnerInfo, 0, len(runners))
	for _, r := range runners {
		infos = append(infos, r.Info())
	}
	c.JSON(http.StatusOK, gin.H{"runners": infos})
}

// Spawn handles POST /api/runners/:id/spawn. The request blocks until the
// runner acknowledges, fails or the spawn timeout passes.
func (h *RunnerHandler) Spawn(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req wire.SpawnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
		return
	}

	session, outcome, err := h.spawner.Spawn(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}

	switch outcome.Status {
	case spawnack.StatusReady:
		c.JSON(http.StatusOK, wire.SpawnResponse{SessionID: session.ID, ShareURL: session.ShareURL})
	case spawnack.StatusTimedOut:
		c.JSON(http.StatusGatewayTimeout, types.ErrorResponse{Error: "runner did not acknowledge the spawn in time"})
	default:
		msg := outcome.Message
		if msg == "" {
			msg = "spawn " + outcome.Status.String()
		}
		c.JSON(http.StatusBadGateway, types.ErrorResponse{Error: msg})
	}
}

// CreateTerminal handles POST /api/runners/:id/terminals
func (h *RunnerHandler) CreateTerminal(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req wire.CreateTerminalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
		return
	}

	t, err := h.spawner.CreateTerminal(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t.Info())
}

// ListTerminals handles GET /api/runners/:id/terminals and returns the
// caller's terminals on that runner.
func (h *RunnerHandler) ListTerminals(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	ctx := c.Request.Context()

	r, err := h.runners.GetRunner(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !r.VisibleTo(userID) {
		writeError(c, directory.ErrNotFound)
		return
	}

	terminals, err := h.runners.ListTerminals(ctx, r.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	infos := make([]wire.TerminalInfo, 0, len(terminals))
	for _, t := range terminals {
		if t.UserID == userID {
			infos = append(infos, t.Info())
		}
	}
	c.JSON(http.StatusOK, gin.H{"terminals": infos})
}
