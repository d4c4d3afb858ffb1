// Package sqlite stores persistence documents as JSON blobs in SQLite tables,
// one table per collection.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/persistence"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/safejson"
)

var collectionNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func validateCollectionName(name string) error {
	if name == "" {
		return errors.New("invalid collection name: cannot be empty")
	}

	if !collectionNamePattern.MatchString(name) {
		return errors.New("invalid collection name: must contain only alphanumeric characters and underscores, and must start with a letter or underscore")
	}

	return nil
}

type sqliteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

var _ persistence.Store = (*sqliteStore)(nil)

// NewSQLiteStore opens (or creates) the database file at dbPath.
func NewSQLiteStore(dbPath string) (persistence.Store, error) {
	connStr := buildConnectionString(dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &sqliteStore{
		db: db,
	}, nil
}

func buildConnectionString(dbPath string) string {
	baseParams := "?cache=shared&mode=rwc&_journal_mode=WAL&_synchronous=FULL&_busy_timeout=5000&_cache_size=-64000"

	if runtime.GOOS == "darwin" {
		baseParams += "&_fullfsync=1"
	}

	return dbPath + baseParams
}

func (s *sqliteStore) checkOpen(collection string) error {
	if s.closed {
		return persistence.ErrClosed
	}

	return validateCollectionName(collection)
}

func (s *sqliteStore) CreateCollection(ctx context.Context, name string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(name); err != nil {
		return err
	}

	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		data BLOB NOT NULL
	)`, name)

	_, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

func (s *sqliteStore) Insert(ctx context.Context, collection string, doc persistence.Document) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(collection); err != nil {
		return "", err
	}

	stored := doc.Clone()
	if stored == nil {
		stored = persistence.Document{}
	}

	id := stored.ID()
	if id == "" {
		id = uuid.New().String()
		stored["id"] = id
	}

	data, err := safejson.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, data) VALUES (?, ?)`, collection)

	_, err = s.db.ExecContext(ctx, query, id, data)
	if err != nil {
		if isPrimaryKeyViolation(err) {
			return "", persistence.ErrConflict
		}

		return "", fmt.Errorf("failed to insert document: %w", err)
	}

	return id, nil
}

func (s *sqliteStore) Get(ctx context.Context, collection string, id string) (persistence.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(collection); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT data FROM %s WHERE id = ?`, collection)

	var data []byte

	err := s.db.QueryRowContext(ctx, query, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isMissingTable(err) {
			return nil, persistence.ErrNotFound
		}

		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	var doc persistence.Document
	if err := safejson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}

	return doc, nil
}

func (s *sqliteStore) Update(ctx context.Context, collection string, id string, doc persistence.Document) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(collection); err != nil {
		return err
	}

	stored := doc.Clone()
	if stored == nil {
		stored = persistence.Document{}
	}

	stored["id"] = id

	data, err := safejson.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	query := fmt.Sprintf(`UPDATE %s SET data = ? WHERE id = ?`, collection)

	result, err := s.db.ExecContext(ctx, query, data, id)
	if err != nil {
		if isMissingTable(err) {
			return persistence.ErrNotFound
		}

		return fmt.Errorf("failed to update document: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}

	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, collection string, id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(collection); err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, collection)

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		if isMissingTable(err) {
			return persistence.ErrNotFound
		}

		return fmt.Errorf("failed to delete document: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}

	return nil
}

// Find loads the collection and evaluates query in memory. Documents are
// stored as opaque blobs, so filters cannot be pushed down into SQL.
func (s *sqliteStore) Find(ctx context.Context, collection string, query persistence.Query) ([]persistence.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(collection); err != nil {
		return nil, err
	}

	sqlQuery := `SELECT data FROM ` + collection + ` ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		if isMissingTable(err) {
			return nil, persistence.ErrNotFound
		}

		return nil, fmt.Errorf("failed to find documents: %w", err)
	}

	defer func() { _ = rows.Close() }()

	var documents []persistence.Document

	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		var doc persistence.Document
		if err := safejson.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document: %w", err)
		}

		documents = append(documents, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return query.Apply(documents)
}

func (s *sqliteStore) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("store already closed")
	}

	s.closed = true
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

func isPrimaryKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func isMissingTable(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	return sqliteErr.Code == sqlite3.ErrError && strings.Contains(sqliteErr.Error(), "no such table")
}
