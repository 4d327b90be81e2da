// Package storage persists embedding matrices for the vector cache.
//
// # Overview
//
// An entry is the embedding matrix of one chunk sequence under one model,
// keyed by (model, fingerprint). Entries are written once and never
// modified in place. Any change to the chunks or the model produces a new
// key.
//
// Two backends implement Store:
//
//	FileStore    chunk_vectors_<hex model>_<fingerprint>.vec + .json in a directory
//	SQLiteStore  one row per entry in cache_entries
//
//	store, err := storage.Open("file", "cache")
//	entry := storage.NewEntry(key, vectors, time.Now())
//	err = store.Publish(ctx, entry)
//	got, err := store.Load(ctx, key)
//
// # Atomic Publish
//
// FileStore writes each file to a temp file in the same directory, syncs
// it and renames it into place. The matrix is renamed before the metadata,
// and Load treats the metadata file as the commit marker, so a reader sees
// either no entry or a complete one.
//
// SQLiteStore publishes inside one transaction with an upsert.
//
// # Corruption
//
// Load returns ErrCorrupt when the matrix cannot be decoded or the
// metadata disagrees with the key (fingerprint, model) or with the matrix
// shape (row count, dimension). Callers rebuild and republish.
//
// # Build Modes
//
// The SQLite driver is selected at compile time:
//
//	go build ./...                          modernc.org/sqlite (pure Go)
//	CGO_ENABLED=1 go build -tags sqlite_cgo github.com/mattn/go-sqlite3
//
// # Schema
//
// Migrations are versioned with semantic versions and applied in order on
// open. The applied set is tracked in schema_version.
package storage
