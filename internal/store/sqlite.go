// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Persists settings blobs, the document registry and cached results with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Registered database/sql driver names.
const (
	DriverModernc = "sqlite"  // pure Go, modernc.org/sqlite
	DriverCgo     = "sqlite3" // cgo, github.com/mattn/go-sqlite3
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path using the pure Go driver.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithDriver(DriverModernc, path)
}

// NewSQLiteStoreWithDriver is NewSQLiteStore with an explicit driver name,
// DriverModernc or DriverCgo.
func NewSQLiteStoreWithDriver(driver, path string) (*SQLiteStore, error) {
	if driver != DriverModernc && driver != DriverCgo {
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}

	logger := slog.Default().With("component", "store")

	inMemory := path == ":memory:"
	if !inMemory {
		// Ensure parent directory exists
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Each connection to :memory: is its own database.
	if inMemory {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path, "driver", driver)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			kind TEXT NOT NULL,
			filename TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			content_hash TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,

			CHECK (kind IN ('pdf', 'url'))
		);

		CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash);
		CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(created_at);

		CREATE TABLE IF NOT EXISTS experiment_results (
			task_id TEXT PRIMARY KEY,
			test TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			payload BLOB NOT NULL,
			fetched_at TEXT NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// PutValue stores value under key, replacing any previous value.
func (s *SQLiteStore) PutValue(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT OR REPLACE INTO kv (key, value, updated_at)
		VALUES (?, ?, ?)
	`

	if value == nil {
		value = []byte{}
	}

	_, err := s.db.ExecContext(ctx, query,
		key,
		value,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving value: %w", err)
	}

	s.logger.Debug("saved value", "key", key, "size", len(value))
	return nil
}

// GetValue retrieves the value stored under key.
// Returns ErrNotFound if the key has never been written.
func (s *SQLiteStore) GetValue(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT value FROM kv WHERE key = ?`

	var value []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying value: %w", err)
	}

	return value, nil
}

// SaveDocument inserts or replaces a document by ID.
func (s *SQLiteStore) SaveDocument(ctx context.Context, doc *Document) error {
	query := `
		INSERT OR REPLACE INTO documents (id, title, kind, filename, url, content_hash, status, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, query,
		doc.ID,
		doc.Title,
		doc.Kind,
		doc.Filename,
		doc.URL,
		doc.ContentHash,
		doc.Status,
		doc.Detail,
		createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}

	s.logger.Debug("saved document", "id", doc.ID, "kind", doc.Kind, "status", doc.Status)
	return nil
}

const documentColumns = `id, title, kind, filename, url, content_hash, status, detail, created_at`

// GetDocument retrieves a document by ID.
// Returns ErrNotFound if the document doesn't exist.
func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = ?`
	return s.scanDocument(s.db.QueryRowContext(ctx, query, id))
}

// GetDocumentByHash retrieves the most recent document with the given content hash.
// Returns ErrNotFound if no document matches or hash is empty.
func (s *SQLiteStore) GetDocumentByHash(ctx context.Context, hash string) (*Document, error) {
	if hash == "" {
		return nil, ErrNotFound
	}
	query := `SELECT ` + documentColumns + ` FROM documents WHERE content_hash = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`
	return s.scanDocument(s.db.QueryRowContext(ctx, query, hash))
}

// ListDocuments returns documents ordered newest first.
func (s *SQLiteStore) ListDocuments(ctx context.Context, limit int) ([]*Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := s.scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var createdAtStr string

	err := row.Scan(
		&doc.ID,
		&doc.Title,
		&doc.Kind,
		&doc.Filename,
		&doc.URL,
		&doc.ContentHash,
		&doc.Status,
		&doc.Detail,
		&createdAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &doc, nil
}

// SaveResult inserts or replaces the cached result for a task.
func (s *SQLiteStore) SaveResult(ctx context.Context, result *ExperimentResult) error {
	query := `
		INSERT OR REPLACE INTO experiment_results (task_id, test, status, payload, fetched_at)
		VALUES (?, ?, ?, ?, ?)
	`

	fetchedAt := result.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}
	payload := result.Payload
	if payload == nil {
		payload = []byte{}
	}

	_, err := s.db.ExecContext(ctx, query,
		result.TaskID,
		result.Test,
		result.Status,
		payload,
		fetchedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving result: %w", err)
	}

	s.logger.Debug("saved result", "task_id", result.TaskID, "status", result.Status)
	return nil
}

// GetResult retrieves the cached result for a task.
// Returns ErrNotFound if nothing has been cached.
func (s *SQLiteStore) GetResult(ctx context.Context, taskID string) (*ExperimentResult, error) {
	query := `SELECT task_id, test, status, payload, fetched_at FROM experiment_results WHERE task_id = ?`

	var result ExperimentResult
	var fetchedAtStr string

	err := s.db.QueryRowContext(ctx, query, taskID).Scan(
		&result.TaskID,
		&result.Test,
		&result.Status,
		&result.Payload,
		&fetchedAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying result: %w", err)
	}

	result.FetchedAt, err = time.Parse(time.RFC3339, fetchedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing fetched_at: %w", err)
	}

	return &result, nil
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
