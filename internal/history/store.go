// Package history stores the commit records of successfully committed
// transactions in a SQLite database. It persists the operation stream, not
// the tree: a stored record is exactly what Undo needs to reverse its
// transaction against a live tree.
package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/arbor/pkg/persister"
)

// Store lifecycle and lookup errors.
var (
	ErrDetached        = errors.New("history store is detached")
	ErrAlreadyAttached = errors.New("history store is already attached")
	ErrNotFound        = errors.New("commit record not found")
)

// dbFileName is the SQLite database file created inside the data directory.
const dbFileName = "history.db"

// schemaSQL is the DDL executed on attach.
const schemaSQL = `CREATE TABLE IF NOT EXISTS commits (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    committed_at TEXT NOT NULL,
    record TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_commits_committed_at ON commits(committed_at);`

// Entry summarizes one stored commit record.
type Entry struct {
	ID          string
	Name        string
	CommittedAt time.Time
	Creations   int
	Properties  int
	Removals    int
}

// Store is a SQLite-backed archive of commit records. It implements
// persister.Recorder.
type Store struct {
	mu       sync.Mutex
	attached bool
	db       *sql.DB
}

// NewStore creates an unattached store; call Attach with a data directory
// before use.
func NewStore() *Store {
	return &Store{}
}

// Attach opens (creating if needed) the history database under dataDir and
// ensures the schema exists.
// Returns ErrAlreadyAttached if called while attached.
func (s *Store) Attach(dataDir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached {
		return ErrAlreadyAttached
	}
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dataDir, dbFileName))
	if err != nil {
		return fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return fmt.Errorf("apply history schema: %w", err)
	}

	s.db = db
	s.attached = true
	return nil
}

// Detach closes the database. Idempotent; after Detach all operations
// return ErrDetached.
func (s *Store) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.attached = false
	return err
}

// RecordCommit stores one commit record. Implements persister.Recorder.
func (s *Store) RecordCommit(rec persister.CommitRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return ErrDetached
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode commit record: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO commits (id, name, committed_at, record) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.CommittedAt.Format(time.RFC3339Nano), string(payload),
	)
	if err != nil {
		return fmt.Errorf("store commit record: %w", err)
	}
	return nil
}

// List returns up to limit entries, most recent first. A non-positive
// limit returns everything.
func (s *Store) List(limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return nil, ErrDetached
	}
	query := `SELECT record FROM commits ORDER BY committed_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list commit records: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan commit record: %w", err)
		}
		rec, err := decodeRecord(payload)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{
			ID:          rec.ID,
			Name:        rec.Name,
			CommittedAt: rec.CommittedAt,
			Creations:   len(rec.Creations),
			Properties:  len(rec.Properties),
			Removals:    len(rec.Removals),
		})
	}
	return entries, rows.Err()
}

// Get returns the commit record with the given id.
// Returns ErrNotFound if no record has that id.
func (s *Store) Get(id string) (persister.CommitRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return persister.CommitRecord{}, ErrDetached
	}
	var payload string
	err := s.db.QueryRow(`SELECT record FROM commits WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return persister.CommitRecord{}, ErrNotFound
	}
	if err != nil {
		return persister.CommitRecord{}, fmt.Errorf("load commit record: %w", err)
	}
	return decodeRecord(payload)
}

// Latest returns the most recently committed record.
// Returns ErrNotFound when the store is empty.
func (s *Store) Latest() (persister.CommitRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return persister.CommitRecord{}, ErrDetached
	}
	var payload string
	err := s.db.QueryRow(
		`SELECT record FROM commits ORDER BY committed_at DESC, id DESC LIMIT 1`,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return persister.CommitRecord{}, ErrNotFound
	}
	if err != nil {
		return persister.CommitRecord{}, fmt.Errorf("load latest commit record: %w", err)
	}
	return decodeRecord(payload)
}

// Delete removes the record with the given id, typically after its
// transaction has been undone.
// Returns ErrNotFound if no record has that id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return ErrDetached
	}
	res, err := s.db.Exec(`DELETE FROM commits WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete commit record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// decodeRecord parses a stored JSON payload.
func decodeRecord(payload string) (persister.CommitRecord, error) {
	var rec persister.CommitRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return persister.CommitRecord{}, fmt.Errorf("decode commit record: %w", err)
	}
	return rec, nil
}
