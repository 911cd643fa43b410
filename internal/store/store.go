package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// SchemaVersion is the journal format, stored in PRAGMA user_version.
// Bump it together with schema.sql when the tables change shape.
const SchemaVersion = 1

var (
	// ErrJournalNotFound is returned by OpenExisting for a missing file.
	ErrJournalNotFound = errors.New("journal not found")

	// ErrNewerJournal is returned for a journal written with a later
	// SchemaVersion than this build understands.
	ErrNewerJournal = errors.New("journal format is newer than this build")
)

// journalPragmas are applied on every open. The runner is the only writer;
// history readers may open the same file while a run is in progress.
var journalPragmas = []struct{ name, value string }{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"busy_timeout", "5000"},
	{"foreign_keys", "ON"},
}

// Store is an open run journal.
type Store struct {
	db *sql.DB
}

// Open opens the journal at path, creating the file and its tables when
// they do not exist yet. Opening an existing journal leaves its rows alone.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	// One connection: iteration writes come from a single driver goroutine
	// and SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := initJournal(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// OpenExisting opens a journal that must already exist. Read-only commands
// use it so a mistyped path is reported instead of creating an empty journal.
func OpenExisting(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrJournalNotFound, path)
		}
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	return Open(path)
}

// Close closes the journal.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initJournal(db *sql.DB) error {
	for _, p := range journalPragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("pragma %s: %w", p.name, err)
		}
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read journal version: %w", err)
	}
	switch {
	case version > SchemaVersion:
		return fmt.Errorf("%w: version %d, supported %d", ErrNewerJournal, version, SchemaVersion)
	case version == SchemaVersion:
		return nil
	}

	// Fresh file: create the tables and stamp the version together, so a
	// crash in between leaves an empty file that the next open initializes.
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		return fmt.Errorf("stamp journal version: %w", err)
	}
	return tx.Commit()
}
