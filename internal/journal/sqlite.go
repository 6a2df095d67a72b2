package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db      *sql.DB
	closed  bool
	writeMu sync.Mutex
}

// NewSQLiteStore creates a new SQLite journal store
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=60000", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)

	store := &SQLiteStore{db: db}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		timestamp TEXT,
		timestamp_key TEXT,
		labels TEXT,
		types TEXT,
		fingerprint TEXT NOT NULL,
		nodes_created INTEGER DEFAULT 0,
		relationships_created INTEGER DEFAULT 0,
		status TEXT NOT NULL,
		last_error TEXT,
		PRIMARY KEY (id)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`

	_, err := s.db.Exec(query)
	return err
}

// SaveRun saves or updates a run record with retry mechanism
func (s *SQLiteStore) SaveRun(record *RunRecord) error {
	if s.closed {
		return fmt.Errorf("journal store is closed")
	}

	// Serialize writes to avoid SQLITE_BUSY from multiple concurrent writers
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.retryOnBusy(func() error {
		return s.saveRunWithTransaction(record)
	})
}

func (s *SQLiteStore) saveRunWithTransaction(record *RunRecord) error {
	labels, err := json.Marshal(record.Labels)
	if err != nil {
		return fmt.Errorf("failed to encode labels: %w", err)
	}
	types, err := json.Marshal(record.Types)
	if err != nil {
		return fmt.Errorf("failed to encode types: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
    INSERT INTO runs
    (id, started_at, finished_at, timestamp, timestamp_key, labels, types,
     fingerprint, nodes_created, relationships_created, status, last_error)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT(id) DO UPDATE SET
        finished_at = excluded.finished_at,
        timestamp = excluded.timestamp,
        timestamp_key = excluded.timestamp_key,
        labels = excluded.labels,
        types = excluded.types,
        fingerprint = excluded.fingerprint,
        nodes_created = excluded.nodes_created,
        relationships_created = excluded.relationships_created,
        status = excluded.status,
        last_error = excluded.last_error
    `

	_, err = tx.Exec(query,
		record.ID,
		record.StartedAt,
		record.FinishedAt,
		record.Timestamp,
		record.TimestampKey,
		string(labels),
		string(types),
		record.Fingerprint,
		record.NodesCreated,
		record.RelationshipsCreated,
		record.Status,
		record.LastError,
	)
	if err != nil {
		return fmt.Errorf("failed to execute insert: %w", err)
	}

	return tx.Commit()
}

// GetRun retrieves a run record by id, or nil when it does not exist.
func (s *SQLiteStore) GetRun(id string) (*RunRecord, error) {
	if s.closed {
		return nil, fmt.Errorf("journal store is closed")
	}

	var result *RunRecord
	err := s.retryOnBusy(func() error {
		var err error
		result, err = s.queryOne("SELECT "+runColumns+" FROM runs WHERE id = ?", id)
		return err
	})
	return result, err
}

// LastTaggedRun returns the most recently started tagged run, or nil.
func (s *SQLiteStore) LastTaggedRun() (*RunRecord, error) {
	if s.closed {
		return nil, fmt.Errorf("journal store is closed")
	}

	var result *RunRecord
	err := s.retryOnBusy(func() error {
		var err error
		result, err = s.queryOne(
			"SELECT " + runColumns + " FROM runs " +
				"WHERE timestamp != '' ORDER BY started_at DESC LIMIT 1",
		)
		return err
	})
	return result, err
}

// ListRuns returns up to limit runs, most recent first.
func (s *SQLiteStore) ListRuns(limit int) ([]*RunRecord, error) {
	if s.closed {
		return nil, fmt.Errorf("journal store is closed")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		"SELECT "+runColumns+" FROM runs ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*RunRecord
	for rows.Next() {
		record, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

const runColumns = "id, started_at, finished_at, timestamp, timestamp_key, " +
	"labels, types, fingerprint, nodes_created, relationships_created, status, last_error"

func (s *SQLiteStore) queryOne(query string, args ...any) (*RunRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanRun(rows)
}

func scanRun(rows *sql.Rows) (*RunRecord, error) {
	var record RunRecord
	var finishedAt sql.NullTime
	var timestamp, timestampKey, labels, types, lastError sql.NullString

	err := rows.Scan(
		&record.ID,
		&record.StartedAt,
		&finishedAt,
		&timestamp,
		&timestampKey,
		&labels,
		&types,
		&record.Fingerprint,
		&record.NodesCreated,
		&record.RelationshipsCreated,
		&record.Status,
		&lastError,
	)
	if err != nil {
		return nil, err
	}

	if finishedAt.Valid {
		record.FinishedAt = finishedAt.Time
	}
	record.Timestamp = timestamp.String
	record.TimestampKey = timestampKey.String
	record.LastError = lastError.String
	if labels.Valid && labels.String != "" {
		if err := json.Unmarshal([]byte(labels.String), &record.Labels); err != nil {
			return nil, fmt.Errorf("failed to decode labels: %w", err)
		}
	}
	if types.Valid && types.String != "" {
		if err := json.Unmarshal([]byte(types.String), &record.Types); err != nil {
			return nil, fmt.Errorf("failed to decode types: %w", err)
		}
	}

	return &record, nil
}

// retryOnBusy retries the operation if SQLite is busy
func (s *SQLiteStore) retryOnBusy(operation func() error) error {
	maxRetries := 5
	baseDelay := 50 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if isSQLiteBusyError(err) && attempt < maxRetries-1 {
			time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
			continue
		}
		return err
	}

	return nil
}

func isSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	errorStr := err.Error()
	return strings.Contains(errorStr, "database is locked") ||
		strings.Contains(errorStr, "SQLITE_BUSY")
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.closed = true
	return s.db.Close()
}
