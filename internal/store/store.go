// ABOUTME: Store interfaces and data types for mlra persistence
// ABOUTME: Defines the KV, document registry and experiment result contracts

package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Document kinds
const (
	DocumentKindPDF = "pdf"
	DocumentKindURL = "url"
)

// Document statuses
const (
	DocumentStatusSubmitted = "submitted"
	DocumentStatusFailed    = "failed"
)

// Document is a paper submitted to the retriever for ingestion.
type Document struct {
	ID          string
	Title       string
	Kind        string // DocumentKindPDF or DocumentKindURL
	Filename    string // set for uploads
	URL         string // set for URL ingests
	ContentHash string // hex SHA-256 of the uploaded bytes, empty for URLs
	Status      string
	Detail      string // backend message, if any
	CreatedAt   time.Time
}

// ExperimentResult is the last fetched result envelope for a task.
type ExperimentResult struct {
	TaskID    string
	Test      string
	Status    string
	Payload   []byte // raw JSON envelope as returned by the backend
	FetchedAt time.Time
}

// KVStore holds opaque values under string keys.
type KVStore interface {
	// GetValue returns ErrNotFound if the key has never been written
	GetValue(ctx context.Context, key string) ([]byte, error)
	PutValue(ctx context.Context, key string, value []byte) error
}

// DocumentStore is the local registry of ingested papers.
type DocumentStore interface {
	SaveDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	GetDocumentByHash(ctx context.Context, hash string) (*Document, error)
	// ListDocuments returns documents newest first; limit <= 0 means no limit
	ListDocuments(ctx context.Context, limit int) ([]*Document, error)
}

// ResultStore caches experiment results so reports survive backend outages.
type ResultStore interface {
	SaveResult(ctx context.Context, result *ExperimentResult) error
	GetResult(ctx context.Context, taskID string) (*ExperimentResult, error)
}

// Store combines every persistence concern behind one handle.
type Store interface {
	KVStore
	DocumentStore
	ResultStore
	Close() error
}

// Storage drivers accepted by Open.
const (
	DriverFile   = "file"
	DriverMemory = "memory"
)

// Open returns the Store for the named driver. path is the database file for
// the SQLite drivers, the root directory for DriverFile, and ignored for
// DriverMemory.
func Open(driver, path string) (Store, error) {
	switch driver {
	case DriverModernc, DriverCgo:
		return NewSQLiteStoreWithDriver(driver, path)
	case DriverFile:
		return NewFileStore(path)
	case DriverMemory:
		return NewMockStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
