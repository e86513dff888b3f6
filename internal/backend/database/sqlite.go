package database

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const createPhotosTable = `CREATE TABLE IF NOT EXISTS photos (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	image BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	title TEXT
)`

type SQLiteStore struct {
	mu               sync.RWMutex
	db               *sql.DB
	connectionString string
}

// NewSQLiteStore returns an unopened store. Call Open before any other operation.
func NewSQLiteStore(connectionString string) *SQLiteStore {
	return &SQLiteStore{
		connectionString: connectionString,
	}
}

func (s *SQLiteStore) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.connectionString)
	if err != nil {
		return newStoreError("open", 0, ErrStoreUnavailable, err)
	}
	// A single connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return newStoreError("open", 0, ErrStoreUnavailable, err)
	}
	if _, err := db.ExecContext(ctx, createPhotosTable); err != nil {
		_ = db.Close()
		return newStoreError("open", 0, ErrStoreUnavailable, err)
	}

	slog.Info("sqlite store opened", "connection", s.connectionString)
	s.db = db
	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) conn() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrNotOpen
	}
	return s.db, nil
}

func (s *SQLiteStore) Add(ctx context.Context, record NewRecord) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, newStoreError("add", 0, err, nil)
	}
	if len(record.Image) == 0 {
		return 0, newStoreError("add", 0, ErrEmptyImage, nil)
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, newStoreError("add", 0, ErrWriteFailed, err)
	}
	defer func() {
		_ = tx.Rollback() // no-op after a successful commit
	}()

	result, err := tx.ExecContext(ctx,
		"INSERT INTO photos (image, created_at, title) VALUES (?, ?, NULL)",
		record.Image, createdAt.UnixNano())
	if err != nil {
		return 0, newStoreError("add", 0, ErrWriteFailed, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, newStoreError("add", 0, ErrWriteFailed, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, newStoreError("add", 0, ErrWriteFailed, err)
	}

	slog.Debug("photo record added", "id", id, "image_size_bytes", len(record.Image))
	return id, nil
}

func (s *SQLiteStore) GetAll(ctx context.Context) ([]*PhotoRecord, error) {
	db, err := s.conn()
	if err != nil {
		return nil, newStoreError("getAll", 0, err, nil)
	}

	rows, err := db.QueryContext(ctx, "SELECT id, image, created_at, title FROM photos ORDER BY id ASC")
	if err != nil {
		return nil, newStoreError("getAll", 0, ErrReadFailed, err)
	}
	defer func() {
		_ = rows.Close() // Explicitly ignore error as we're already returning an error from the function
	}()

	records := make([]*PhotoRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, newStoreError("getAll", 0, ErrReadFailed, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, newStoreError("getAll", 0, ErrReadFailed, err)
	}
	return records, nil
}

func (s *SQLiteStore) GetByID(ctx context.Context, id int64) (*PhotoRecord, error) {
	db, err := s.conn()
	if err != nil {
		return nil, newStoreError("getById", id, err, nil)
	}

	row := db.QueryRowContext(ctx, "SELECT id, image, created_at, title FROM photos WHERE id = ?", id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, newStoreError("getById", id, ErrNotFound, nil)
	}
	if err != nil {
		return nil, newStoreError("getById", id, ErrReadFailed, err)
	}
	return record, nil
}

func (s *SQLiteStore) UpdateTitle(ctx context.Context, id int64, title string) error {
	db, err := s.conn()
	if err != nil {
		return newStoreError("updateTitle", id, err, nil)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return newStoreError("updateTitle", id, ErrWriteFailed, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// read-modify-write inside one transaction so a concurrent delete cannot slip between
	var existing int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM photos WHERE id = ?", id).Scan(&existing)
	if errors.Is(err, sql.ErrNoRows) {
		return newStoreError("updateTitle", id, ErrNotFound, nil)
	}
	if err != nil {
		return newStoreError("updateTitle", id, ErrReadFailed, err)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE photos SET title = ? WHERE id = ?", title, id); err != nil {
		return newStoreError("updateTitle", id, ErrWriteFailed, err)
	}
	if err := tx.Commit(); err != nil {
		return newStoreError("updateTitle", id, ErrWriteFailed, err)
	}

	slog.Debug("photo title updated", "id", id)
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	db, err := s.conn()
	if err != nil {
		return newStoreError("delete", id, err, nil)
	}

	result, err := db.ExecContext(ctx, "DELETE FROM photos WHERE id = ?", id)
	if err != nil {
		return newStoreError("delete", id, ErrWriteFailed, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return newStoreError("delete", id, ErrWriteFailed, err)
	}
	if affected == 0 {
		return newStoreError("delete", id, ErrNotFound, nil)
	}

	slog.Debug("photo record deleted", "id", id)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*PhotoRecord, error) {
	var (
		record    PhotoRecord
		createdAt int64
		title     sql.NullString
	)
	if err := row.Scan(&record.ID, &record.Image, &createdAt, &title); err != nil {
		return nil, err
	}
	record.CreatedAt = time.Unix(0, createdAt)
	record.Title = title.String
	return &record, nil
}
