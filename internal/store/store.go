// Package store persists companies, postings and scan state in SQL. SQLite
// (modernc, pure Go) is the default; Postgres is supported through pgx for
// deployments where several processes share one database.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS companies (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		careers_url   TEXT NOT NULL,
		tier          INTEGER NOT NULL DEFAULT 3,
		enabled       BOOLEAN NOT NULL DEFAULT TRUE,
		last_scraped  TIMESTAMP NULL,
		scrape_status TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS postings (
		id                TEXT PRIMARY KEY,
		company_id        TEXT NOT NULL REFERENCES companies(id),
		title             TEXT NOT NULL,
		primary_function  TEXT NOT NULL DEFAULT '',
		url               TEXT NOT NULL UNIQUE,
		yoe_min           INTEGER NULL,
		yoe_max           INTEGER NULL,
		yoe_source        TEXT NOT NULL DEFAULT '',
		salary_min        INTEGER NULL,
		salary_max        INTEGER NULL,
		salary_source     TEXT NOT NULL DEFAULT '',
		salary_confidence DOUBLE PRECISION NULL,
		work_mode         TEXT NOT NULL DEFAULT 'unclear',
		location          TEXT NOT NULL DEFAULT '',
		match_score       DOUBLE PRECISION NOT NULL DEFAULT 0,
		raw_description   TEXT NOT NULL DEFAULT '',
		status            TEXT NOT NULL DEFAULT 'new',
		first_seen        TIMESTAMP NOT NULL,
		last_seen         TIMESTAMP NOT NULL,
		notified          BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_postings_company ON postings(company_id)`,
	`CREATE INDEX IF NOT EXISTS idx_postings_score ON postings(match_score)`,
	`CREATE TABLE IF NOT EXISTS scan_state (
		id                TEXT PRIMARY KEY,
		scan_id           TEXT NOT NULL DEFAULT '',
		status            TEXT NOT NULL DEFAULT 'idle',
		version           BIGINT NOT NULL DEFAULT 0,
		started_at        TIMESTAMP NULL,
		completed_at      TIMESTAMP NULL,
		companies_total   INTEGER NOT NULL DEFAULT 0,
		companies_started INTEGER NOT NULL DEFAULT 0,
		companies_scanned INTEGER NOT NULL DEFAULT 0,
		jobs_found        INTEGER NOT NULL DEFAULT 0,
		jobs_new          INTEGER NOT NULL DEFAULT 0,
		errors            TEXT NOT NULL DEFAULT '[]',
		cancel_requested  BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS scan_logs (
		scan_id           TEXT PRIMARY KEY,
		started_at        TIMESTAMP NOT NULL,
		completed_at      TIMESTAMP NOT NULL,
		companies_scanned INTEGER NOT NULL DEFAULT 0,
		companies_skipped INTEGER NOT NULL DEFAULT 0,
		jobs_found        INTEGER NOT NULL DEFAULT 0,
		jobs_new          INTEGER NOT NULL DEFAULT 0,
		errors            TEXT NOT NULL DEFAULT '[]',
		cancelled         BOOLEAN NOT NULL DEFAULT FALSE
	)`,
}

// Store is the SQL-backed persistence layer.
type Store struct {
	db              *sqlx.DB
	maxScanDuration time.Duration
	now             func() time.Time
}

// Open connects to the database, creates missing tables and the singleton
// scan state row. driver is "sqlite" or "postgres". A running scan older than
// maxScanDuration is treated as abandoned.
func Open(driver, dsn string, maxScanDuration time.Duration) (*Store, error) {
	var sqlDriver string
	switch driver {
	case "sqlite":
		sqlDriver = "sqlite"
		if !strings.Contains(dsn, "_pragma=") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + sqlitePragmas
		}
	case "postgres":
		sqlDriver = "pgx"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s db: %w", driver, err)
	}
	if driver == "sqlite" {
		// One writer at a time; keeps SQLITE_BUSY out of concurrent scans.
		db.SetMaxOpenConns(1)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging %s db: %w", driver, err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}
	if _, err := db.Exec(db.Rebind(
		`INSERT INTO scan_state (id, status, errors) VALUES (?, ?, '[]') ON CONFLICT (id) DO NOTHING`),
		scanStateID, "idle",
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing scan state: %w", err)
	}

	return &Store{db: db, maxScanDuration: maxScanDuration, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) rebind(q string) string {
	return s.db.Rebind(q)
}

func (s *Store) nowUTC() time.Time {
	return s.now().UTC()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
