package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS scans (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	captured_ns   INTEGER NOT NULL,
	code          TEXT NOT NULL,
	length        INTEGER NOT NULL,
	mean_delay_us INTEGER NOT NULL,
	source        TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_scans_captured ON scans(captured_ns);

CREATE TABLE IF NOT EXISTS rejects (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	captured_ns INTEGER NOT NULL,
	reason      TEXT NOT NULL,
	length      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rejects_captured ON rejects(captured_ns);
`

// SQLiteStore is a SQLite-backed scan journal.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if necessary) the scan journal at path.
func Open(path string, busyTimeout time.Duration) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d", path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertScan records an accepted scan.
func (s *SQLiteStore) InsertScan(scan Scan) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO scans (captured_ns, code, length, mean_delay_us, source) VALUES (?, ?, ?, ?, ?)`,
		scan.CapturedAt.UnixNano(), scan.Code, scan.Length, scan.MeanDelay.Microseconds(), scan.Source,
	)
	if err != nil {
		return 0, fmt.Errorf("insert scan: %w", err)
	}
	return res.LastInsertId()
}

// InsertReject records a rejected burst.
func (s *SQLiteStore) InsertReject(r Reject) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO rejects (captured_ns, reason, length) VALUES (?, ?, ?)`,
		r.CapturedAt.UnixNano(), r.Reason, r.Length,
	)
	if err != nil {
		return 0, fmt.Errorf("insert reject: %w", err)
	}
	return res.LastInsertId()
}

// RecentScans returns the newest n scans, most recent first.
func (s *SQLiteStore) RecentScans(n int) ([]Scan, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := s.db.Query(
		`SELECT id, captured_ns, code, length, mean_delay_us, source
		 FROM scans ORDER BY captured_ns DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent scans: %w", err)
	}
	defer rows.Close()

	var scans []Scan
	for rows.Next() {
		var sc Scan
		var capturedNS, meanUS int64
		if err := rows.Scan(&sc.ID, &capturedNS, &sc.Code, &sc.Length, &meanUS, &sc.Source); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		sc.CapturedAt = time.Unix(0, capturedNS)
		sc.MeanDelay = time.Duration(meanUS) * time.Microsecond
		scans = append(scans, sc)
	}
	return scans, rows.Err()
}

// CountScans returns the total number of recorded scans.
func (s *SQLiteStore) CountScans() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM scans`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count scans: %w", err)
	}
	return n, nil
}

// CountRejects returns the total number of recorded rejects.
func (s *SQLiteStore) CountRejects() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM rejects`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rejects: %w", err)
	}
	return n, nil
}

// PruneBefore deletes scans and rejects captured before the cutoff.
// It returns the number of rows removed.
func (s *SQLiteStore) PruneBefore(cutoff time.Time) (int64, error) {
	ns := cutoff.UnixNano()
	var total int64

	res, err := s.db.Exec(`DELETE FROM scans WHERE captured_ns < ?`, ns)
	if err != nil {
		return 0, fmt.Errorf("prune scans: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}

	res, err = s.db.Exec(`DELETE FROM rejects WHERE captured_ns < ?`, ns)
	if err != nil {
		return total, fmt.Errorf("prune rejects: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}
	return total, nil
}
