// ABOUTME: Persistence adapters for the settings store
// ABOUTME: Persister is load/save of one serialized snapshot; KVPersister maps it onto a key

package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/2389/mlra/internal/store"
)

// ErrNoSnapshot is returned by Load when nothing has been persisted yet.
var ErrNoSnapshot = errors.New("no persisted settings")

// Persister loads and saves one serialized snapshot.
type Persister interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// KV is the subset of a key-value store the settings store needs.
type KV interface {
	GetValue(ctx context.Context, key string) ([]byte, error)
	PutValue(ctx context.Context, key string, value []byte) error
}

// KVPersister stores the snapshot under a fixed key of a KV store.
type KVPersister struct {
	kv  KV
	key string
}

// NewKVPersister creates a persister for key. An empty key uses StorageKey.
func NewKVPersister(kv KV, key string) *KVPersister {
	if key == "" {
		key = StorageKey
	}
	return &KVPersister{kv: kv, key: key}
}

// Load returns ErrNoSnapshot when the key is absent.
func (p *KVPersister) Load(ctx context.Context) ([]byte, error) {
	data, err := p.kv.GetValue(ctx, p.key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p.key, err)
	}
	return data, nil
}

// Save overwrites the entry wholesale.
func (p *KVPersister) Save(ctx context.Context, data []byte) error {
	if err := p.kv.PutValue(ctx, p.key, data); err != nil {
		return fmt.Errorf("writing %s: %w", p.key, err)
	}
	return nil
}

// MemoryPersister keeps the snapshot in memory. LoadErr and SaveErr, when set,
// are returned instead of touching the stored bytes.
type MemoryPersister struct {
	mu      sync.Mutex
	data    []byte
	saves   int
	LoadErr error
	SaveErr error
}

// NewMemoryPersister creates a persister optionally seeded with data.
func NewMemoryPersister(seed []byte) *MemoryPersister {
	return &MemoryPersister{data: cloneBytes(seed)}
}

func (m *MemoryPersister) Load(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	if m.data == nil {
		return nil, ErrNoSnapshot
	}
	return cloneBytes(m.data), nil
}

func (m *MemoryPersister) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.data = cloneBytes(data)
	m.saves++
	return nil
}

// Bytes returns the last saved snapshot.
func (m *MemoryPersister) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneBytes(m.data)
}

// Saves returns how many successful saves happened.
func (m *MemoryPersister) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
