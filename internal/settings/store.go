// ABOUTME: Settings store: single source of truth for user-adjustable configuration
// ABOUTME: Apply, notify subscribers, persist; storage failures never reach callers

package settings

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// defaultSaveTimeout bounds a single persister write.
const defaultSaveTimeout = 5 * time.Second

// Updater computes the next snapshot from a copy of the current one.
type Updater func(current Settings) Settings

// Store owns the current settings snapshot. It is safe for concurrent use;
// mutations are serialized and the last writer wins.
type Store struct {
	mu          sync.RWMutex
	current     Settings
	persister   Persister
	observer    Observer
	broadcaster *broadcaster
	saveTimeout time.Duration
	logger      *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithObserver sets the observability hook.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSaveTimeout bounds each persister write.
func WithSaveTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.saveTimeout = d
		}
	}
}

// New builds a store from defaults overlaid with the persisted snapshot, if
// one exists and parses. A nil persister keeps settings in memory only.
func New(ctx context.Context, persister Persister, opts ...Option) *Store {
	if persister == nil {
		persister = NewMemoryPersister(nil)
	}
	s := &Store{
		current:     Defaults(),
		persister:   persister,
		observer:    nopObserver{},
		saveTimeout: defaultSaveTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "settings")
	s.broadcaster = newBroadcaster(s.logger)

	s.current = s.load(ctx)
	s.observer.SettingsChanged(ReasonInit)
	return s
}

// load never fails: missing or unreadable snapshots fall back to defaults.
func (s *Store) load(ctx context.Context) Settings {
	raw, err := s.persister.Load(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		s.logger.Debug("no persisted settings, using defaults")
		return Defaults()
	}
	if err != nil {
		s.observer.PersistFailed(OpLoad, err)
		return Defaults()
	}

	merged, err := MergeOverDefaults(raw)
	if err != nil {
		s.observer.PersistFailed(OpDecode, err)
		return Defaults()
	}
	s.logger.Debug("loaded persisted settings", "size", len(raw))
	return merged
}

// Get returns a copy of the current snapshot.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Defaults returns a fresh copy of the compiled-in defaults.
func (s *Store) Defaults() Settings {
	return Defaults()
}

// Update applies fn to a copy of the current snapshot and commits the result.
// fn owns the whole record it returns: a category rebuilt from scratch loses
// the fields it does not set.
func (s *Store) Update(fn Updater) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitLocked(fn(s.current.Clone()), ReasonUpdate)
}

// Replace commits next as the new snapshot.
func (s *Store) Replace(next Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitLocked(next.Clone(), ReasonReplace)
}

// Apply merges a JSON patch field by field. A malformed patch is rejected
// before any state change; storage errors are never returned.
func (s *Store) Apply(patch []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := Patch(s.current, patch)
	if err != nil {
		return err
	}
	s.commitLocked(next, ReasonPatch)
	return nil
}

// Set is Apply for a single dotted path.
func (s *Store) Set(path, value string) error {
	patch, err := PathPatch(path, value)
	if err != nil {
		return err
	}
	return s.Apply(patch)
}

// ApplyValidated is Apply that also rejects a patch whose result fails
// Validate. The check and the commit happen under one lock.
func (s *Store) ApplyValidated(patch []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := Patch(s.current, patch)
	if err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	s.commitLocked(next, ReasonPatch)
	return nil
}

// SetValidated is ApplyValidated for a single dotted path.
func (s *Store) SetValidated(path, value string) error {
	patch, err := PathPatch(path, value)
	if err != nil {
		return err
	}
	return s.ApplyValidated(patch)
}

// Reset restores the compiled-in defaults.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitLocked(Defaults(), ReasonReset)
}

// Subscribe returns a channel that always yields the latest snapshot after
// each change, and a subscription ID. The channel is closed when ctx is
// cancelled, on Unsubscribe, or on Close.
func (s *Store) Subscribe(ctx context.Context) (<-chan Settings, string) {
	return s.broadcaster.subscribe(ctx)
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Store) Unsubscribe(subID string) {
	s.broadcaster.unsubscribe(subID)
}

// Subscribers returns the number of live subscriptions.
func (s *Store) Subscribers() int {
	return s.broadcaster.count()
}

// Close closes every subscriber channel. The store stays readable.
func (s *Store) Close() {
	s.broadcaster.close()
}

func (s *Store) commitLocked(next Settings, reason string) {
	s.current = next
	s.broadcaster.publish(next)
	s.observer.SettingsChanged(reason)
	s.persistLocked(next)
}

func (s *Store) persistLocked(snap Settings) {
	data, err := json.Marshal(snap)
	if err != nil {
		s.observer.PersistFailed(OpSave, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
	defer cancel()

	if err := s.persister.Save(ctx, data); err != nil {
		s.observer.PersistFailed(OpSave, err)
		return
	}
	s.logger.Debug("persisted settings", "size", len(data))
}
