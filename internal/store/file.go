// ABOUTME: Directory-backed Store that keeps one JSON file per record
// ABOUTME: Writes are atomic via temp file and rename so a crash never leaves a torn value

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	fileKVDir       = "kv"
	fileDocumentDir = "documents"
	fileResultDir   = "results"
)

// FileStore implements Store on a plain directory tree.
type FileStore struct {
	root   string
	mu     sync.RWMutex
	logger *slog.Logger
}

// fileDocument is the on-disk form of a Document.
type fileDocument struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Kind        string    `json:"kind"`
	Filename    string    `json:"filename,omitempty"`
	URL         string    `json:"url,omitempty"`
	ContentHash string    `json:"content_hash,omitempty"`
	Status      string    `json:"status"`
	Detail      string    `json:"detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Seq         int64     `json:"seq"`
}

// fileResult is the on-disk form of an ExperimentResult.
type fileResult struct {
	TaskID    string          `json:"task_id"`
	Test      string          `json:"test,omitempty"`
	Status    string          `json:"status"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// NewFileStore creates the directory layout under root if needed.
func NewFileStore(root string) (*FileStore, error) {
	for _, dir := range []string{fileKVDir, fileDocumentDir, fileResultDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	logger := slog.Default().With("component", "store")
	logger.Info("file store initialized", "root", root)

	return &FileStore{root: root, logger: logger}, nil
}

func (f *FileStore) path(dir, name string) string {
	return filepath.Join(f.root, dir, url.PathEscape(name))
}

// writeAtomic writes data next to path and renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// PutValue stores value under key.
func (f *FileStore) PutValue(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := writeAtomic(f.path(fileKVDir, key), value); err != nil {
		return fmt.Errorf("saving value: %w", err)
	}
	f.logger.Debug("saved value", "key", key, "size", len(value))
	return nil
}

// GetValue retrieves the value stored under key.
func (f *FileStore) GetValue(ctx context.Context, key string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := readFile(f.path(fileKVDir, key))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("reading value: %w", err)
	}
	return data, err
}

// SaveDocument inserts or replaces a document by ID.
func (f *FileStore) SaveDocument(ctx context.Context, doc *Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	data, err := json.Marshal(fileDocument{
		ID:          doc.ID,
		Title:       doc.Title,
		Kind:        doc.Kind,
		Filename:    doc.Filename,
		URL:         doc.URL,
		ContentHash: doc.ContentHash,
		Status:      doc.Status,
		Detail:      doc.Detail,
		CreatedAt:   createdAt.UTC(),
		Seq:         time.Now().UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	if err := writeAtomic(f.path(fileDocumentDir, doc.ID), data); err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	f.logger.Debug("saved document", "id", doc.ID, "kind", doc.Kind, "status", doc.Status)
	return nil
}

// GetDocument retrieves a document by ID.
func (f *FileStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	fd, err := f.readDocument(f.path(fileDocumentDir, id))
	if err != nil {
		return nil, err
	}
	return fd.document(), nil
}

// GetDocumentByHash retrieves the newest document with the given content hash.
func (f *FileStore) GetDocumentByHash(ctx context.Context, hash string) (*Document, error) {
	if hash == "" {
		return nil, ErrNotFound
	}
	docs, err := f.ListDocuments(ctx, 0)
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

// ListDocuments returns documents ordered newest first.
func (f *FileStore) ListDocuments(ctx context.Context, limit int) ([]*Document, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	dir := filepath.Join(f.root, fileDocumentDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	var stored []fileDocument
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".tmp-") {
			continue
		}
		fd, err := f.readDocument(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		stored = append(stored, *fd)
	}

	sort.Slice(stored, func(i, j int) bool {
		if !stored[i].CreatedAt.Equal(stored[j].CreatedAt) {
			return stored[i].CreatedAt.After(stored[j].CreatedAt)
		}
		return stored[i].Seq > stored[j].Seq
	})
	if limit > 0 && len(stored) > limit {
		stored = stored[:limit]
	}

	docs := make([]*Document, 0, len(stored))
	for i := range stored {
		docs = append(docs, stored[i].document())
	}
	return docs, nil
}

func (f *FileStore) readDocument(path string) (*fileDocument, error) {
	data, err := readFile(path)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("reading document: %w", err)
	}

	var fd fileDocument
	if err := json.Unmarshal(data, &fd); err != nil {
		return nil, fmt.Errorf("decoding document %s: %w", filepath.Base(path), err)
	}
	return &fd, nil
}

func (fd *fileDocument) document() *Document {
	return &Document{
		ID:          fd.ID,
		Title:       fd.Title,
		Kind:        fd.Kind,
		Filename:    fd.Filename,
		URL:         fd.URL,
		ContentHash: fd.ContentHash,
		Status:      fd.Status,
		Detail:      fd.Detail,
		CreatedAt:   fd.CreatedAt,
	}
}

// SaveResult inserts or replaces the cached result for a task.
func (f *FileStore) SaveResult(ctx context.Context, result *ExperimentResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fetchedAt := result.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}

	fr := fileResult{
		TaskID:    result.TaskID,
		Test:      result.Test,
		Status:    result.Status,
		FetchedAt: fetchedAt.UTC(),
	}
	if len(result.Payload) > 0 {
		if !json.Valid(result.Payload) {
			return fmt.Errorf("saving result: payload is not valid JSON")
		}
		fr.Payload = result.Payload
	}

	data, err := json.Marshal(fr)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	if err := writeAtomic(f.path(fileResultDir, result.TaskID), data); err != nil {
		return fmt.Errorf("saving result: %w", err)
	}
	f.logger.Debug("saved result", "task_id", result.TaskID, "status", result.Status)
	return nil
}

// GetResult retrieves the cached result for a task.
func (f *FileStore) GetResult(ctx context.Context, taskID string) (*ExperimentResult, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := readFile(f.path(fileResultDir, taskID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("reading result: %w", err)
	}

	var fr fileResult
	if err := json.Unmarshal(data, &fr); err != nil {
		return nil, fmt.Errorf("decoding result: %w", err)
	}

	return &ExperimentResult{
		TaskID:    fr.TaskID,
		Test:      fr.Test,
		Status:    fr.Status,
		Payload:   []byte(fr.Payload),
		FetchedAt: fr.FetchedAt,
	}, nil
}

// Close is a no-op; every write is already durable.
func (f *FileStore) Close() error {
	return nil
}

// Ensure FileStore implements Store.
var _ Store = (*FileStore)(nil)
