// Package directory is the shared registry of sessions, runners, terminals,
// pending links and sequence counters.
//
// All state lives in a store.Store; the Directory itself holds no records.
// Records reference each other only by id, so any server process can resolve
// any relation on its own.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Pizzaface/PizzaPi-sub003/internal/codec"
	"github.com/Pizzaface/PizzaPi-sub003/internal/store"
)

// ErrNotFound is returned for operations on unknown ids.
var ErrNotFound = errors.New("directory: not found")

const (
	prefixSession  = "session:"
	prefixRunner   = "runner:"
	prefixTerminal = "terminal:"
	prefixSeq      = "seq:"
	prefixLink     = "link:"
	prefixSnapshot = "snapshot:"
	prefixViewers  = "viewers:"
)

// Options tunes record lifetimes.
type Options struct {
	// Now is the time source. Defaults to time.Now.
	Now func() time.Time
	// EphemeralTTL is the lifetime granted to ephemeral sessions on create
	// and on every heartbeat.
	EphemeralTTL time.Duration
	// HeartbeatGrace is extra store-level ttl beyond ExpiresAt so the pruner
	// sees (and announces) an expired session before the backend drops it.
	HeartbeatGrace time.Duration
	// TerminalTTL bounds terminals whose runner never reported an exit.
	TerminalTTL time.Duration
	// LinkTTL bounds pending parent/child links.
	LinkTTL time.Duration
	// SnapshotTTL bounds stored session snapshots.
	SnapshotTTL time.Duration
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.EphemeralTTL <= 0 {
		o.EphemeralTTL = 10 * time.Minute
	}
	if o.HeartbeatGrace <= 0 {
		o.HeartbeatGrace = 2 * time.Minute
	}
	if o.TerminalTTL <= 0 {
		o.TerminalTTL = 12 * time.Hour
	}
	if o.LinkTTL <= 0 {
		o.LinkTTL = 5 * time.Minute
	}
	if o.SnapshotTTL <= 0 {
		o.SnapshotTTL = 24 * time.Hour
	}
	return o
}

// Directory provides typed record access over a Store.
type Directory struct {
	store store.Store
	opts  Options
}

// New creates a Directory over s.
func New(s store.Store, opts Options) *Directory {
	return &Directory{store: s, opts: opts.withDefaults()}
}

// Store exposes the backing store (health checks).
func (d *Directory) Store() store.Store { return d.store }

// EphemeralTTL returns the configured ephemeral lifetime.
func (d *Directory) EphemeralTTL() time.Duration { return d.opts.EphemeralTTL }

func (d *Directory) now() time.Time { return d.opts.Now() }

func (d *Directory) getRecord(ctx context.Context, key string, out any) error {
	raw, err := d.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := codec.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (d *Directory) putRecord(ctx context.Context, key string, rec any, ttl time.Duration) error {
	raw, err := codec.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return d.store.Put(ctx, key, raw, ttl)
}

// idsWithPrefix scans the store and strips the key prefix.
func (d *Directory) idsWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	keys, err := d.store.Scan(ctx, prefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, prefix))
	}
	return ids, nil
}

// Sessions

// normalize re-establishes the ephemeral/expiresAt invariant.
func (d *Directory) normalize(s *Session) {
	if !s.IsEphemeral {
		s.ExpiresAt = nil
		return
	}
	if s.ExpiresAt == nil {
		exp := d.now().Add(d.opts.EphemeralTTL).UnixMilli()
		s.ExpiresAt = &exp
	}
}

// sessionTTL is the store-level ttl for a session record.
func (d *Directory) sessionTTL(s Session) time.Duration {
	if !s.IsEphemeral || s.ExpiresAt == nil {
		return 0
	}
	ttl := time.UnixMilli(*s.ExpiresAt).Sub(d.now()) + d.opts.HeartbeatGrace
	if ttl < d.opts.HeartbeatGrace {
		ttl = d.opts.HeartbeatGrace
	}
	return ttl
}

// PutSession writes a session record, creating or replacing it.
func (d *Directory) PutSession(ctx context.Context, s Session) (Session, error) {
	if s.ID == "" {
		return Session{}, errors.New("directory: session id required")
	}
	d.normalize(&s)
	if s.StartedAt == 0 {
		s.StartedAt = d.now().UnixMilli()
	}
	if err := d.putRecord(ctx, prefixSession+s.ID, s, d.sessionTTL(s)); err != nil {
		return Session{}, err
	}
	return s, nil
}

// GetSession returns the session or ErrNotFound.
func (d *Directory) GetSession(ctx context.Context, id string) (Session, error) {
	var s Session
	if id == "" {
		return s, ErrNotFound
	}
	if err := d.getRecord(ctx, prefixSession+id, &s); err != nil {
		return Session{}, err
	}
	n, err := d.viewerCount(ctx, id)
	if err != nil {
		return Session{}, err
	}
	s.ViewerCount = n
	return s, nil
}

// UpdateSession applies fn to the current record and writes it back.
//
// This is read-modify-write without a lock, so a concurrent write of the
// same record is lost. Callers that write liveness (Touch, relay register
// and disconnect) run on the session's ordered queue; the viewer count lives
// in its own counter and never rewrites the record.
func (d *Directory) UpdateSession(ctx context.Context, id string, fn func(*Session)) (Session, error) {
	s, err := d.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	fn(&s)
	s.ID = id
	return d.PutSession(ctx, s)
}

// RefreshTTL extends an ephemeral session's expiry to now+ttl. Expiry never
// moves backwards, so repeated calls are idempotent. Non-ephemeral sessions
// are returned unchanged.
func (d *Directory) RefreshTTL(ctx context.Context, id string, ttl time.Duration) (Session, error) {
	s, err := d.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if !s.IsEphemeral {
		return s, nil
	}
	next := d.now().Add(ttl).UnixMilli()
	if s.ExpiresAt != nil && *s.ExpiresAt >= next {
		return s, nil
	}
	s.ExpiresAt = &next
	return d.PutSession(ctx, s)
}

// Touch records a heartbeat: marks the session active, stamps
// LastHeartbeatAt and refreshes the ephemeral expiry.
func (d *Directory) Touch(ctx context.Context, id string) (Session, error) {
	now := d.now()
	return d.UpdateSession(ctx, id, func(s *Session) {
		s.IsActive = true
		s.LastHeartbeatAt = now.UnixMilli()
		if s.IsEphemeral {
			next := now.Add(d.opts.EphemeralTTL).UnixMilli()
			if s.ExpiresAt == nil || *s.ExpiresAt < next {
				s.ExpiresAt = &next
			}
		}
	})
}

// DeleteSession removes the session record only. It reports whether the
// record existed; deleting an absent session is not an error.
func (d *Directory) DeleteSession(ctx context.Context, id string) (bool, error) {
	return d.store.Delete(ctx, prefixSession+id)
}

// PurgeSession removes the session record together with its sequence and
// viewer counters, snapshot and any pending link naming it as child. It reports
// whether the session record existed, which lets racing pruners agree on a
// single effective deletion.
func (d *Directory) PurgeSession(ctx context.Context, id string) (bool, error) {
	existed, err := d.DeleteSession(ctx, id)
	if err != nil {
		return false, err
	}
	for _, key := range []string{prefixSeq + id, prefixSnapshot + id, prefixLink + id, prefixViewers + id} {
		if _, err := d.store.Delete(ctx, key); err != nil {
			return existed, err
		}
	}
	return existed, nil
}

// ListSessions returns all sessions, or only those owned by userID when it
// is non-empty, ordered by start time. Records deleted between the scan and
// the read are skipped.
func (d *Directory) ListSessions(ctx context.Context, userID string) ([]Session, error) {
	ids, err := d.idsWithPrefix(ctx, prefixSession)
	if err != nil {
		return nil, err
	}
	sessions := make([]Session, 0, len(ids))
	for _, id := range ids {
		s, err := d.GetSession(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if userID != "" && s.UserID != userID {
			continue
		}
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].StartedAt == sessions[j].StartedAt {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].StartedAt < sessions[j].StartedAt
	})
	return sessions, nil
}

// Viewer counters

// AdjustViewers atomically moves a session's viewer count by delta and
// returns the new count. A decrement that would go below zero is undone.
func (d *Directory) AdjustViewers(ctx context.Context, sessionID string, delta int64) (int64, error) {
	key := prefixViewers + sessionID
	n, err := d.store.IncrBy(ctx, key, delta)
	if err != nil {
		return 0, err
	}
	if n < 0 && delta < 0 {
		if _, err := d.store.IncrBy(ctx, key, -delta); err != nil {
			return 0, err
		}
		n = 0
	}
	return max(n, 0), nil
}

func (d *Directory) viewerCount(ctx context.Context, sessionID string) (int64, error) {
	raw, err := d.store.Get(ctx, prefixViewers+sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode viewer count of %s: %w", sessionID, err)
	}
	return max(n, 0), nil
}

// Sequence counters

// IncrementSeq atomically allocates the next event sequence number for a
// session. Values are strictly increasing per session across processes.
func (d *Directory) IncrementSeq(ctx context.Context, sessionID string) (int64, error) {
	return d.store.Incr(ctx, prefixSeq+sessionID)
}

// CurrentSeq returns the last allocated sequence number, or 0.
func (d *Directory) CurrentSeq(ctx context.Context, sessionID string) (int64, error) {
	raw, err := d.store.Get(ctx, prefixSeq+sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(raw), 10, 64)
}

// Runners

// PutRunner writes a runner record.
func (d *Directory) PutRunner(ctx context.Context, r Runner) (Runner, error) {
	if r.ID == "" {
		return Runner{}, errors.New("directory: runner id required")
	}
	if r.ConnectedAt == 0 {
		r.ConnectedAt = d.now().UnixMilli()
	}
	if err := d.putRecord(ctx, prefixRunner+r.ID, r, 0); err != nil {
		return Runner{}, err
	}
	return r, nil
}

// GetRunner returns the runner or ErrNotFound.
func (d *Directory) GetRunner(ctx context.Context, id string) (Runner, error) {
	var r Runner
	if id == "" {
		return r, ErrNotFound
	}
	if err := d.getRecord(ctx, prefixRunner+id, &r); err != nil {
		return Runner{}, err
	}
	return r, nil
}

// UpdateRunner applies fn to the current record and writes it back.
func (d *Directory) UpdateRunner(ctx context.Context, id string, fn func(*Runner)) (Runner, error) {
	r, err := d.GetRunner(ctx, id)
	if err != nil {
		return Runner{}, err
	}
	fn(&r)
	r.ID = id
	return d.PutRunner(ctx, r)
}

// DeleteRunner removes a runner record and reports whether it existed.
func (d *Directory) DeleteRunner(ctx context.Context, id string) (bool, error) {
	return d.store.Delete(ctx, prefixRunner+id)
}

// ListRunners returns runners joined with their live session count. A
// non-empty userID limits the result to runners owned by that user plus
// shared runners.
func (d *Directory) ListRunners(ctx context.Context, userID string) ([]RunnerView, error) {
	ids, err := d.idsWithPrefix(ctx, prefixRunner)
	if err != nil {
		return nil, err
	}
	sessions, err := d.ListSessions(ctx, "")
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, s := range sessions {
		if s.RunnerID != nil {
			counts[*s.RunnerID]++
		}
	}

	views := make([]RunnerView, 0, len(ids))
	for _, id := range ids {
		r, err := d.GetRunner(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if userID != "" && !r.VisibleTo(userID) {
			continue
		}
		views = append(views, RunnerView{Runner: r, SessionCount: counts[r.ID]})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views, nil
}

// Terminals

// PutTerminal writes a terminal record with the configured terminal ttl.
func (d *Directory) PutTerminal(ctx context.Context, t Terminal) (Terminal, error) {
	if t.ID == "" {
		return Terminal{}, errors.New("directory: terminal id required")
	}
	if t.CreatedAt == 0 {
		t.CreatedAt = d.now().UnixMilli()
	}
	if err := d.putRecord(ctx, prefixTerminal+t.ID, t, d.opts.TerminalTTL); err != nil {
		return Terminal{}, err
	}
	return t, nil
}

// GetTerminal returns the terminal or ErrNotFound.
func (d *Directory) GetTerminal(ctx context.Context, id string) (Terminal, error) {
	var t Terminal
	if id == "" {
		return t, ErrNotFound
	}
	if err := d.getRecord(ctx, prefixTerminal+id, &t); err != nil {
		return Terminal{}, err
	}
	return t, nil
}

// DeleteTerminal removes a terminal record and reports whether it existed.
func (d *Directory) DeleteTerminal(ctx context.Context, id string) (bool, error) {
	return d.store.Delete(ctx, prefixTerminal+id)
}

// ListTerminals returns the terminals hosted by runnerID (all when empty).
func (d *Directory) ListTerminals(ctx context.Context, runnerID string) ([]Terminal, error) {
	ids, err := d.idsWithPrefix(ctx, prefixTerminal)
	if err != nil {
		return nil, err
	}
	out := make([]Terminal, 0, len(ids))
	for _, id := range ids {
		t, err := d.GetTerminal(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if runnerID != "" && t.RunnerID != runnerID {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Pending links

// PutLink records that childSessionID is being spawned on behalf of
// parentSessionID.
func (d *Directory) PutLink(ctx context.Context, childSessionID, parentSessionID string) error {
	return d.putRecord(ctx, prefixLink+childSessionID, link{
		ParentSessionID: parentSessionID,
		CreatedAt:       d.now().UnixMilli(),
	}, d.opts.LinkTTL)
}

// TakeLink consumes the pending link for childSessionID. Only one caller
// across all processes observes ok == true for a given link.
func (d *Directory) TakeLink(ctx context.Context, childSessionID string) (parentSessionID string, ok bool, err error) {
	var l link
	err = d.getRecord(ctx, prefixLink+childSessionID, &l)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	deleted, err := d.store.Delete(ctx, prefixLink+childSessionID)
	if err != nil {
		return "", false, err
	}
	if !deleted {
		return "", false, nil
	}
	return l.ParentSessionID, true, nil
}

// Snapshots

// PutSnapshot stores the latest full state of a session for late-joining
// viewers.
func (d *Directory) PutSnapshot(ctx context.Context, sessionID string, raw []byte) error {
	return d.store.Put(ctx, prefixSnapshot+sessionID, codec.Compress(raw), d.opts.SnapshotTTL)
}

// GetSnapshot returns the stored snapshot, or nil when there is none.
func (d *Directory) GetSnapshot(ctx context.Context, sessionID string) ([]byte, error) {
	frame, err := d.store.Get(ctx, prefixSnapshot+sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return codec.Decompress(frame)
}

// DeleteSnapshot removes a stored snapshot.
func (d *Directory) DeleteSnapshot(ctx context.Context, sessionID string) error {
	_, err := d.store.Delete(ctx, prefixSnapshot+sessionID)
	return err
}
