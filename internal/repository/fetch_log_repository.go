// Package repository provides data access implementations
package repository

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/abelzeko/kenai-ingest/internal/entities"
	_ "github.com/mattn/go-sqlite3"
)

// FetchLogRepository defines the persistence operations of the fetch ledger,
// which records the outcome of every fetch unit of every run
type FetchLogRepository interface {
	RecordFetch(entry entities.FetchLogEntry) error
	GetRunEntries(runID string) ([]entities.FetchLogEntry, error)
	GetFailedUnits(runID string) ([]entities.FetchLogEntry, error)
	GetLatestRunID() (string, error)
	Close() error
}

// SQLiteFetchLogRepository implements FetchLogRepository using SQLite
type SQLiteFetchLogRepository struct {
	db     *sql.DB
	DBPath string
}

// NewSQLiteFetchLogRepository creates and initializes a new SQLite ledger
func NewSQLiteFetchLogRepository(dbPath string) (*SQLiteFetchLogRepository, error) {
	if dbPath == "" {
		// Set default path if not specified
		dbPath = filepath.Join("data", "ingest.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	log.Printf("Opening fetch ledger at %s", dbPath)
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS fetch_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		dataset TEXT NOT NULL,
		unit TEXT NOT NULL,
		status TEXT NOT NULL,
		rows INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		fetched_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_fetch_log_run ON fetch_log(run_id);`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteFetchLogRepository{
		db:     db,
		DBPath: dbPath,
	}, nil
}

// NewFetchLogRepositoryWithDB wraps an already prepared database handle
func NewFetchLogRepositoryWithDB(db *sql.DB) *SQLiteFetchLogRepository {
	return &SQLiteFetchLogRepository{db: db}
}

// Close closes the database connection
func (r *SQLiteFetchLogRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// RecordFetch stores the outcome of one fetch unit
func (r *SQLiteFetchLogRepository) RecordFetch(entry entities.FetchLogEntry) error {
	if entry.FetchedAt.IsZero() {
		entry.FetchedAt = time.Now()
	}
	_, err := r.db.Exec(`
		INSERT INTO fetch_log(run_id, dataset, unit, status, rows, error, fetched_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.Dataset,
		entry.Unit,
		string(entry.Status),
		entry.Rows,
		entry.Error,
		entry.FetchedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to record fetch of %s/%s: %w", entry.Dataset, entry.Unit, err)
	}
	return nil
}

// GetRunEntries returns every entry of a run in the order they were recorded
func (r *SQLiteFetchLogRepository) GetRunEntries(runID string) ([]entities.FetchLogEntry, error) {
	return r.query(`
		SELECT id, run_id, dataset, unit, status, rows, error, fetched_at
		FROM fetch_log
		WHERE run_id = ?
		ORDER BY id`, runID)
}

// GetFailedUnits returns the failed entries of a run
func (r *SQLiteFetchLogRepository) GetFailedUnits(runID string) ([]entities.FetchLogEntry, error) {
	return r.query(`
		SELECT id, run_id, dataset, unit, status, rows, error, fetched_at
		FROM fetch_log
		WHERE run_id = ? AND status = ?
		ORDER BY id`, runID, string(entities.FetchFailed))
}

// GetLatestRunID returns the run that recorded the most recent entry, or ""
// when the ledger is empty
func (r *SQLiteFetchLogRepository) GetLatestRunID() (string, error) {
	var runID string
	err := r.db.QueryRow("SELECT run_id FROM fetch_log ORDER BY id DESC LIMIT 1").Scan(&runID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get latest run: %w", err)
	}
	return runID, nil
}

func (r *SQLiteFetchLogRepository) query(query string, args ...interface{}) ([]entities.FetchLogEntry, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query fetch log: %w", err)
	}
	defer rows.Close()

	var result []entities.FetchLogEntry
	for rows.Next() {
		var (
			e         entities.FetchLogEntry
			status    string
			errText   sql.NullString
			fetchedAt string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Dataset, &e.Unit, &status, &e.Rows, &errText, &fetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		e.Status = entities.FetchStatus(status)
		e.Error = errText.String
		if e.FetchedAt, err = time.Parse(time.RFC3339Nano, fetchedAt); err != nil {
			return nil, fmt.Errorf("failed to parse timestamp '%s': %w", fetchedAt, err)
		}
		result = append(result, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return result, nil
}
