package handlers

import (
	"context"
	"fmt"

	"github.com/Pizzaface/PizzaPi-sub003/internal/auth"
	"github.com/Pizzaface/PizzaPi-sub003/pkg/wire"
)

// TerminalConnect attaches a viewer to a terminal's output stream.
func TerminalConnect(ctx context.Context, deps Deps, a AuthContext) EventResult {
	t, err := deps.Runners().GetTerminal(ctx, a.TerminalID())
	if err != nil {
		return fatalResult(a, err)
	}
	if t.UserID != a.UserID() {
		return fatalResult(a, fmt.Errorf("%w: terminal belongs to another user", auth.ErrUnauthorized))
	}
	return NewEventResult(nil, []EmitInstruction{
		toSocket(a.SocketID(), "terminal_connected", wire.TerminalConnectedPayload{TerminalID: t.ID}),
	}).withJoin(TerminalRoom(t.ID)).withBinding(Binding{RunnerID: t.RunnerID})
}

// TerminalInput forwards keystrokes to the hosting runner.
func TerminalInput(_ context.Context, _ Deps, a AuthContext, req wire.TerminalInputPayload) EventResult {
	if a.RunnerID() == "" || req.Data == "" {
		return empty()
	}
	return NewEventResult(nil, []EmitInstruction{
		toRoom(RunnerRoom(a.RunnerID()), "terminal_input", wire.TerminalInputPayload{
			TerminalID: a.TerminalID(),
			Data:       req.Data,
		}),
	})
}

// TerminalResize forwards a viewport change.
func TerminalResize(_ context.Context, _ Deps, a AuthContext, req wire.TerminalResizePayload) EventResult {
	if a.RunnerID() == "" {
		return empty()
	}
	if req.Cols <= 0 || req.Rows <= 0 {
		return errorResult(a, fmt.Errorf("%w: cols and rows must be positive", ErrBadRequest))
	}
	return NewEventResult(nil, []EmitInstruction{
		toRoom(RunnerRoom(a.RunnerID()), "terminal_resize", wire.TerminalResizePayload{
			TerminalID: a.TerminalID(),
			Cols:       req.Cols,
			Rows:       req.Rows,
		}),
	})
}

// TerminalKill asks the runner to terminate the PTY.
func TerminalKill(_ context.Context, _ Deps, a AuthContext, _ wire.KillTerminalPayload) EventResult {
	if a.RunnerID() == "" {
		return empty()
	}
	return NewEventResult(nil, []EmitInstruction{
		toRoom(RunnerRoom(a.RunnerID()), "kill_terminal", wire.KillTerminalPayload{TerminalID: a.TerminalID()}),
	})
}
