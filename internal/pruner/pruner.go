// Package pruner removes ephemeral sessions whose expiry has passed.
package pruner

import (
	"context"
	"errors"
	"time"

	"github.com/Pizzaface/PizzaPi-sub003/internal/directory"
	"github.com/Pizzaface/PizzaPi-sub003/internal/logger"
)

// Directory is the subset of the session directory the pruner needs.
type Directory interface {
	ListSessions(ctx context.Context, userID string) ([]directory.Session, error)
	GetSession(ctx context.Context, id string) (directory.Session, error)
	PurgeSession(ctx context.Context, id string) (bool, error)
}

// Notifier announces a pruned session to hub subscribers and to the
// session's relay owner, if connected to this process.
type Notifier interface {
	SessionExpired(ctx context.Context, s directory.Session)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, s directory.Session)

func (f NotifierFunc) SessionExpired(ctx context.Context, s directory.Session) { f(ctx, s) }

// Pruner sweeps the directory for expired ephemeral sessions.
type Pruner struct {
	dir      Directory
	notifier Notifier
	now      func() time.Time
}

// New creates a Pruner. A nil now defaults to time.Now.
func New(dir Directory, notifier Notifier, now func() time.Time) *Pruner {
	if now == nil {
		now = time.Now
	}
	return &Pruner{dir: dir, notifier: notifier, now: now}
}

// Sweep removes every expired ephemeral session once and returns how many
// this call deleted. Sessions deleted concurrently by another process are
// not counted and not announced twice. Each candidate is re-read just
// before deletion, so a heartbeat that lands after the scan keeps it.
func (p *Pruner) Sweep(ctx context.Context) (int, error) {
	sessions, err := p.dir.ListSessions(ctx, "")
	if err != nil {
		return 0, err
	}
	now := p.now()
	removed := 0
	for _, s := range sessions {
		if !s.Expired(now) {
			continue
		}
		current, err := p.dir.GetSession(ctx, s.ID)
		if errors.Is(err, directory.ErrNotFound) {
			continue
		}
		if err != nil {
			logger.Warnf("Prune session %s: %v", s.ID, err)
			continue
		}
		if !current.Expired(p.now()) {
			logger.Debugf("Session %s refreshed during sweep", s.ID)
			continue
		}
		s = current
		existed, err := p.dir.PurgeSession(ctx, s.ID)
		if err != nil {
			logger.Warnf("Prune session %s: %v", s.ID, err)
			continue
		}
		if !existed {
			continue
		}
		removed++
		logger.Infof("Pruned expired session %s", s.ID)
		if p.notifier != nil {
			p.notifier.SessionExpired(ctx, s)
		}
	}
	return removed, nil
}

// Run sweeps every interval until ctx is done.
func (p *Pruner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Sweep(ctx); err != nil {
				logger.Warnf("Expiry sweep failed: %v", err)
			}
		}
	}
}
