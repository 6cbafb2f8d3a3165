package kvstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"myswing/internal/kvstore/migrations"
	"myswing/internal/swing"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore keeps the cache entries and the local run log in one SQLite file.
type SQLiteStore struct {
	db    *sql.DB
	clock swing.Clock
	path  string
}

// NewSQLiteStore opens path and migrates it to the latest schema.
// path can be a file path or ":memory:".
func NewSQLiteStore(path string, clock swing.Clock) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating store %s: %w", path, err)
	}
	if clock == nil {
		clock = swing.RealClock{}
	}
	return &SQLiteStore{db: db, clock: clock, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	// One connection: every ":memory:" connection would be its own database,
	// and a single writer avoids SQLITE_BUSY between cache goroutines.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return db, nil
}

// Get implements swing.KVStore.
func (s *SQLiteStore) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("getting %s: %w", key, err)
	}
	return value, true, nil
}

// Set implements swing.KVStore.
func (s *SQLiteStore) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.clock.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

// Delete implements swing.KVStore.
func (s *SQLiteStore) Delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// Keys implements swing.KVStore.
func (s *SQLiteStore) Keys(prefix string) ([]string, error) {
	rows, err := s.db.Query("SELECT key FROM kv WHERE substr(key, 1, ?) = ? ORDER BY key", len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("listing keys %q: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// StartRun implements swing.RunLog.
func (s *SQLiteStore) StartRun(run *swing.Run) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (id, idempotency_key, video_path, source, stage, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.IdempotencyKey, run.VideoPath, string(run.Source), string(run.Stage),
		string(run.Status), run.StartedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun implements swing.RunLog.
func (s *SQLiteStore) FinishRun(run *swing.Run) error {
	var finished sql.NullInt64
	if run.FinishedAt != nil {
		finished = sql.NullInt64{Int64: run.FinishedAt.UnixMilli(), Valid: true}
	}
	res, err := s.db.Exec(
		`UPDATE runs SET source = ?, stage = ?, status = ?, job_id = ?, analysis_id = ?,
		 error_kind = ?, finished_at = ? WHERE id = ?`,
		string(run.Source), string(run.Stage), string(run.Status), run.JobID, run.AnalysisID,
		string(run.ErrorKind), finished, run.ID,
	)
	if err != nil {
		return fmt.Errorf("updating run %s: %w", run.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("updating run %s: run not found", run.ID)
	}
	return nil
}

// ListRuns implements swing.RunLog.
func (s *SQLiteStore) ListRuns(limit int) ([]*swing.Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT id, idempotency_key, video_path, source, stage, status, job_id, analysis_id,
		 error_kind, started_at, finished_at
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*swing.Run
	for rows.Next() {
		var (
			r                           swing.Run
			source, stage, status, kind string
			started                     int64
			finished                    sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.IdempotencyKey, &r.VideoPath, &source, &stage, &status,
			&r.JobID, &r.AnalysisID, &kind, &started, &finished); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Source = swing.VideoSource(source)
		r.Stage = swing.Stage(stage)
		r.Status = swing.RunStatus(status)
		r.ErrorKind = swing.ErrorKind(kind)
		r.StartedAt = time.UnixMilli(started).UTC()
		if finished.Valid {
			t := time.UnixMilli(finished.Int64).UTC()
			r.FinishedAt = &t
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// Close closes the underlying connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

var (
	_ swing.KVStore = (*SQLiteStore)(nil)
	_ swing.RunLog  = (*SQLiteStore)(nil)
)
