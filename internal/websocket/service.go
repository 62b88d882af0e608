package websocket

import (
	"context"

	"github.com/Pizzaface/PizzaPi-sub003/internal/directory"
	"github.com/Pizzaface/PizzaPi-sub003/internal/logger"
	"github.com/Pizzaface/PizzaPi-sub003/internal/spawnack"
	"github.com/Pizzaface/PizzaPi-sub003/internal/websocket/handlers"
	"github.com/Pizzaface/PizzaPi-sub003/pkg/wire"
)

// Spawn asks a runner to start an agent and waits for the runner's ack.
// The placeholder session is removed again unless the outcome is ready.
func (s *SocketIOServer) Spawn(ctx context.Context, userID, runnerID string, req wire.SpawnRequest) (directory.Session, spawnack.Outcome, error) {
	plan, err := handlers.PrepareSpawn(ctx, s.deps, userID, runnerID, req)
	if err != nil {
		return directory.Session{}, spawnack.Outcome{}, err
	}

	// Register before sending so a fast ack cannot be missed.
	pending := s.spawns.WaitForSpawnAck(plan.Session.ID, s.opts.SpawnTimeout)
	if s.rooms.Size(handlers.RunnerRoom(runnerID)) == 0 {
		logger.Warnf("Runner %s has no socket on this server; spawn %s may time out", runnerID, plan.Session.ID)
	}
	s.Deliver([]handlers.EmitInstruction{plan.Command})

	outcome, err := pending.Wait(ctx)
	if err != nil {
		handlers.AbandonSpawn(context.Background(), s.deps, plan.Session.ID)
		return plan.Session, spawnack.Outcome{}, err
	}
	if outcome.Status != spawnack.StatusReady {
		logger.Infof("Spawn %s on runner %s: %s %s", plan.Session.ID, runnerID, outcome.Status, outcome.Message)
		handlers.AbandonSpawn(ctx, s.deps, plan.Session.ID)
	}
	return plan.Session, outcome, nil
}

// CreateTerminal asks a runner to open a PTY.
func (s *SocketIOServer) CreateTerminal(ctx context.Context, userID, runnerID string, req wire.CreateTerminalRequest) (directory.Terminal, error) {
	plan, err := handlers.PrepareTerminal(ctx, s.deps, userID, runnerID, req)
	if err != nil {
		return directory.Terminal{}, err
	}
	s.Deliver([]handlers.EmitInstruction{plan.Command})
	return plan.Terminal, nil
}

// EndSession deletes a session on its owner's request and tells the agent,
// viewers and hub.
func (s *SocketIOServer) EndSession(ctx context.Context, userID, sessionID string) error {
	emits, err := handlers.EndSession(ctx, s.deps, userID, sessionID)
	if err != nil {
		return err
	}
	s.Deliver(emits)
	s.queues.Release(sessionID)
	return nil
}

// SessionExpired announces a session removed by the pruner.
func (s *SocketIOServer) SessionExpired(_ context.Context, sess directory.Session) {
	s.Deliver(handlers.ExpiredNotices(sess))
	s.queues.Release(sess.ID)
}
