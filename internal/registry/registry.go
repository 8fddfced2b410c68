// Package registry creates session identifiers, routes commands to session
// instances, and restores persisted sessions at startup.
package registry

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rilhia/the-hallucinated-truth/internal/game"
)

// ErrSessionNotFound is returned when no session exists for an id.
var ErrSessionNotFound = errors.New("session not found")

// SessionFactory builds a fresh session for a new id.
type SessionFactory func(id string) *game.Session

// RestoreFunc rebuilds a session from a persisted snapshot.
type RestoreFunc func(snap game.Snapshot) *game.Session

// Registry is the per-process session table. Sessions are independent;
// the registry lock only guards the map, never a session's own state.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*game.Session

	newSession SessionFactory
	restore    RestoreFunc
	saver      game.SnapshotSaver
	logger     *zap.Logger
}

// Option customizes a Registry.
type Option func(*Registry)

// WithSnapshotSaver persists the initial snapshot of newly created sessions.
func WithSnapshotSaver(s game.SnapshotSaver) Option {
	return func(r *Registry) { r.saver = s }
}

// New creates a registry.
func New(newSession SessionFactory, restore RestoreFunc, logger *zap.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		sessions:   make(map[string]*game.Session),
		newSession: newSession,
		restore:    restore,
		logger:     logger.Named("registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create allocates an id, builds an idle session, and registers it.
func (r *Registry) Create(ctx context.Context) *game.Session {
	id := "game-" + uuid.NewString()
	sess := r.newSession(id)

	r.mu.Lock()
	r.sessions[id] = sess
	r.mu.Unlock()

	if r.saver != nil {
		if err := r.saver.SaveSnapshot(ctx, sess.State()); err != nil {
			r.logger.Warn("failed to persist initial snapshot",
				zap.String("game_id", id), zap.Error(err))
		}
	}

	r.logger.Info("session created", zap.String("game_id", id))
	return sess
}

// Get returns the session for an id.
func (r *Registry) Get(id string) (*game.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// List returns session ids split into active (unfinished) and completed,
// each sorted for stable output.
func (r *Registry) List() (active, completed []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, sess := range r.sessions {
		if sess.State().Finished {
			completed = append(completed, id)
		} else {
			active = append(active, id)
		}
	}
	sort.Strings(active)
	sort.Strings(completed)
	return active, completed
}

// SnapshotLoader lists persisted snapshots.
type SnapshotLoader interface {
	LoadAllSnapshots(ctx context.Context) ([]game.Snapshot, error)
}

// RestoreAll rebuilds sessions from every persisted snapshot. Sessions already
// registered keep their live instance.
func (r *Registry) RestoreAll(ctx context.Context, loader SnapshotLoader) error {
	snaps, err := loader.LoadAllSnapshots(ctx)
	if err != nil {
		return err
	}

	restored := 0
	r.mu.Lock()
	for _, snap := range snaps {
		if snap.ID == "" {
			continue
		}
		if _, exists := r.sessions[snap.ID]; exists {
			continue
		}
		r.sessions[snap.ID] = r.restore(snap)
		restored++
	}
	r.mu.Unlock()

	r.logger.Info("sessions restored", zap.Int("count", restored))
	return nil
}
