package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteStore implements Store with one row per cache entry
type SQLiteStore struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// NewSQLiteStore opens (or creates) the database and applies migrations
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context, key Key) (*Entry, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	query := `
		SELECT num_chunks, dim, vectors, created_at
		FROM cache_entries
		WHERE embed_model = ? AND fingerprint = ?
	`
	var (
		numChunks int
		dim       int
		blob      []byte
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, query, key.Model, key.Fingerprint).Scan(&numChunks, &dim, &blob, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cache entry: %w", err)
	}

	vectors, err := decodeMatrix(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	meta := Meta{
		Fingerprint: key.Fingerprint,
		NumChunks:   numChunks,
		Dim:         dim,
		EmbedModel:  key.Model,
		CreatedAt:   time.Unix(0, createdAt).UTC(),
	}
	if err := checkShape(key, meta, vectors); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	return &Entry{Key: key, Meta: meta, Vectors: vectors}, nil
}

func (s *SQLiteStore) Publish(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("%w: nil entry", ErrInvalidEntry)
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO cache_entries (embed_model, fingerprint, num_chunks, dim, vectors, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(embed_model, fingerprint) DO UPDATE SET
			num_chunks = excluded.num_chunks,
			dim = excluded.dim,
			vectors = excluded.vectors,
			created_at = excluded.created_at
	`
	_, err = tx.ExecContext(ctx, query,
		entry.Key.Model, entry.Key.Fingerprint,
		entry.Meta.NumChunks, entry.Meta.Dim,
		encodeMatrix(entry.Vectors), entry.Meta.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to publish cache entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]EntryInfo, error) {
	query := `
		SELECT embed_model, fingerprint, num_chunks, dim, length(vectors), created_at
		FROM cache_entries
		ORDER BY created_at ASC, embed_model, fingerprint
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var infos []EntryInfo
	for rows.Next() {
		var (
			info      EntryInfo
			createdAt int64
		)
		if err := rows.Scan(&info.Key.Model, &info.Key.Fingerprint, &info.NumChunks, &info.Dim, &info.SizeBytes, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		info.CreatedAt = time.Unix(0, createdAt).UTC()
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM cache_entries WHERE embed_model = ? AND fingerprint = ?",
		key.Model, key.Fingerprint)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}
