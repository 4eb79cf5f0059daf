// Package journal provides SQLite-based emission accounting for keyscribe.
//
// Entries record what kind of operation ran, how many units and input
// events it produced, which backend carried it and how long it took.
// The text that was typed is never stored.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Schema for the keyscribe emission journal.
const schema = `
CREATE TABLE IF NOT EXISTS emissions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    at_ns       INTEGER NOT NULL,
    op          TEXT NOT NULL,
    units       INTEGER NOT NULL,
    events      INTEGER NOT NULL,
    backend     TEXT NOT NULL,
    duration_us INTEGER NOT NULL,
    error       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_emissions_at ON emissions(at_ns);
CREATE INDEX IF NOT EXISTS idx_emissions_op ON emissions(op, at_ns);
`

// Op identifies the kind of emission an entry records.
type Op string

const (
	// OpString is a text emission; units is the rune count.
	OpString Op = "string"
	// OpBackspaces is a backspace emission; units is the key count.
	OpBackspaces Op = "backspaces"
	// OpCombo is a key combination emission; units is always 1.
	OpCombo Op = "combo"
)

// Entry is one journaled emission.
type Entry struct {
	ID         int64
	At         time.Time
	Op         Op
	Units      int
	Events     int
	Backend    string
	DurationUs int64
	Error      string
}

// Stats summarizes the journal contents.
type Stats struct {
	Total  int64
	Failed int64
	Events int64
	ByOp   map[Op]int64
}

// Journal represents the SQLite emission journal.
type Journal struct {
	db   *sql.DB
	path string
}

// Open opens or creates the journal database at the given path.
// busyTimeoutMs bounds how long writes wait on a locked database.
func Open(path string, busyTimeoutMs int) (*Journal, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d", path, busyTimeoutMs)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Journal{db: db, path: path}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Record inserts an emission entry and returns its ID.
// A zero At timestamp is filled with the current time.
func (j *Journal) Record(e *Entry) (int64, error) {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}

	result, err := j.db.Exec(`
		INSERT INTO emissions (at_ns, op, units, events, backend, duration_us, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		at.UnixNano(), string(e.Op), e.Units, e.Events, e.Backend, e.DurationUs, e.Error,
	)
	if err != nil {
		return 0, fmt.Errorf("insert emission: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}

	return id, nil
}

// Recent returns the most recent entries, newest first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	rows, err := j.db.Query(`
		SELECT id, at_ns, op, units, events, backend, duration_us, error
		FROM emissions
		ORDER BY at_ns DESC, id DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent emissions: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Since returns entries recorded at or after the given time, oldest first.
func (j *Journal) Since(t time.Time) ([]Entry, error) {
	rows, err := j.db.Query(`
		SELECT id, at_ns, op, units, events, backend, duration_us, error
		FROM emissions
		WHERE at_ns >= ?
		ORDER BY at_ns ASC, id ASC`, t.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("query emissions since: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Get retrieves an entry by ID. Returns nil when no entry exists.
func (j *Journal) Get(id int64) (*Entry, error) {
	var e Entry
	var atNs int64
	var op string

	err := j.db.QueryRow(`
		SELECT id, at_ns, op, units, events, backend, duration_us, error
		FROM emissions WHERE id = ?`, id,
	).Scan(&e.ID, &atNs, &op, &e.Units, &e.Events, &e.Backend, &e.DurationUs, &e.Error)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get emission: %w", err)
	}

	e.At = time.Unix(0, atNs)
	e.Op = Op(op)
	return &e, nil
}

// Stats summarizes all journaled emissions.
func (j *Journal) Stats() (*Stats, error) {
	stats := &Stats{ByOp: make(map[Op]int64)}

	err := j.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN error != '' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(events), 0)
		FROM emissions`,
	).Scan(&stats.Total, &stats.Failed, &stats.Events)
	if err != nil {
		return nil, fmt.Errorf("query emission totals: %w", err)
	}

	rows, err := j.db.Query(`SELECT op, COUNT(*) FROM emissions GROUP BY op`)
	if err != nil {
		return nil, fmt.Errorf("query emissions by op: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var op string
		var count int64
		if err := rows.Scan(&op, &count); err != nil {
			return nil, fmt.Errorf("scan op count: %w", err)
		}
		stats.ByOp[Op(op)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate op counts: %w", err)
	}

	return stats, nil
}

// Prune deletes entries older than the given time and returns how many
// were removed.
func (j *Journal) Prune(olderThan time.Time) (int64, error) {
	result, err := j.db.Exec(`DELETE FROM emissions WHERE at_ns < ?`, olderThan.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune emissions: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	return removed, nil
}

// Size returns the on-disk size of the journal database in bytes.
func (j *Journal) Size() (int64, error) {
	info, err := os.Stat(j.path)
	if err != nil {
		return 0, fmt.Errorf("stat journal: %w", err)
	}
	return info.Size(), nil
}

// scanEntries is a helper to scan emission rows into a slice.
func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry

	for rows.Next() {
		var e Entry
		var atNs int64
		var op string

		if err := rows.Scan(&e.ID, &atNs, &op, &e.Units, &e.Events, &e.Backend, &e.DurationUs, &e.Error); err != nil {
			return nil, fmt.Errorf("scan emission: %w", err)
		}

		e.At = time.Unix(0, atNs)
		e.Op = Op(op)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate emissions: %w", err)
	}

	return entries, nil
}
