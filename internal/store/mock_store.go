// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite and to inject storage failures

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu        sync.RWMutex
	values    map[string][]byte           // keyed by key
	documents map[string]*Document         // keyed by document ID
	results   map[string]*ExperimentResult // keyed by task ID
	seq       map[string]int               // insertion order for stable listing
	next      int

	// Err, when set, is returned by every operation.
	Err error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		values:    make(map[string][]byte),
		documents: make(map[string]*Document),
		results:   make(map[string]*ExperimentResult),
		seq:       make(map[string]int),
	}
}

// SetErr sets the error returned by subsequent operations.
func (m *MockStore) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
}

// PutValue stores a copy of value under key.
func (m *MockStore) PutValue(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	m.values[key] = append([]byte{}, value...)
	return nil
}

// GetValue returns a copy of the value stored under key.
func (m *MockStore) GetValue(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte{}, v...), nil
}

// SaveDocument inserts or replaces a document by ID.
func (m *MockStore) SaveDocument(ctx context.Context, doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	// Make a copy to avoid external modification
	d := *doc
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	m.documents[d.ID] = &d
	m.next++
	m.seq[d.ID] = m.next
	return nil
}

// GetDocument retrieves a document by ID.
func (m *MockStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	d, ok := m.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

// GetDocumentByHash retrieves the newest document with the given content hash.
func (m *MockStore) GetDocumentByHash(ctx context.Context, hash string) (*Document, error) {
	if hash == "" {
		return nil, ErrNotFound
	}
	docs, err := m.ListDocuments(ctx, 0)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if d.ContentHash == hash {
			return d, nil
		}
	}
	return nil, ErrNotFound
}

// ListDocuments returns copies of all documents, newest first.
func (m *MockStore) ListDocuments(ctx context.Context, limit int) ([]*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	docs := make([]*Document, 0, len(m.documents))
	for _, d := range m.documents {
		cp := *d
		docs = append(docs, &cp)
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return m.seq[docs[i].ID] > m.seq[docs[j].ID]
	})

	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// SaveResult inserts or replaces the cached result for a task.
func (m *MockStore) SaveResult(ctx context.Context, result *ExperimentResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	r := *result
	r.Payload = append([]byte{}, result.Payload...)
	if r.FetchedAt.IsZero() {
		r.FetchedAt = time.Now()
	}
	m.results[r.TaskID] = &r
	return nil
}

// GetResult retrieves the cached result for a task.
func (m *MockStore) GetResult(ctx context.Context, taskID string) (*ExperimentResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	r, ok := m.results[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	cp.Payload = append([]byte{}, r.Payload...)
	return &cp, nil
}

// Close is a no-op for the mock.
func (m *MockStore) Close() error {
	return nil
}

// Ensure MockStore implements Store.
var _ Store = (*MockStore)(nil)
