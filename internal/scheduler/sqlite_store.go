package scheduler

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS scheduled_tasks (
  id TEXT PRIMARY KEY,
  group_folder TEXT NOT NULL,
  prompt TEXT NOT NULL,
  schedule_type TEXT NOT NULL,
  schedule_value TEXT NOT NULL,
  next_run INTEGER,
  last_run INTEGER,
  last_result TEXT,
  status TEXT NOT NULL DEFAULT 'active',
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_next_run ON scheduled_tasks(next_run);
CREATE INDEX IF NOT EXISTS idx_status ON scheduled_tasks(status);

CREATE TABLE IF NOT EXISTS task_run_logs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  task_id TEXT NOT NULL,
  run_at INTEGER NOT NULL,
  duration_ms INTEGER NOT NULL,
  status TEXT NOT NULL,
  result TEXT,
  error TEXT,
  FOREIGN KEY (task_id) REFERENCES scheduled_tasks(id)
);
CREATE INDEX IF NOT EXISTS idx_task_run_logs ON task_run_logs(task_id, run_at);
`

// SQLiteStore is a durable Store backed by a sqlite database, grounded
// on the original store's scheduled_tasks/task_run_logs schema
// (spec.md §6).
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the sqlite file at path and
// ensures the schema exists.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("scheduler: open sqlite: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("scheduler: create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) DueTasks(nowMS uint64) ([]ScheduledTask, error) {
	rows, err := s.db.Query(
		`SELECT id, group_folder, prompt, schedule_type, schedule_value, next_run, last_run, last_result, status, created_at
		 FROM scheduled_tasks WHERE status = 'active' AND next_run IS NOT NULL AND next_run <= ?`,
		int64(nowMS),
	)
	if err != nil {
		return nil, fmt.Errorf("scheduler: query due tasks: %w", err)
	}
	defer rows.Close()

	var out []ScheduledTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateTaskAfterRun(id string, nextRunMS *uint64, lastResult string, nowMS uint64) error {
	status := "active"
	if nextRunMS == nil {
		status = "inactive"
	}
	_, err := s.db.Exec(
		`UPDATE scheduled_tasks SET next_run = ?, last_run = ?, last_result = ?, status = ? WHERE id = ?`,
		nullableInt64(nextRunMS), int64(nowMS), lastResult, status, id,
	)
	if err != nil {
		return fmt.Errorf("scheduler: update task %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) Get(id string) (ScheduledTask, bool, error) {
	row := s.db.QueryRow(
		`SELECT id, group_folder, prompt, schedule_type, schedule_value, next_run, last_run, last_result, status, created_at
		 FROM scheduled_tasks WHERE id = ?`, id,
	)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return ScheduledTask{}, false, nil
	}
	if err != nil {
		return ScheduledTask{}, false, fmt.Errorf("scheduler: get task %s: %w", id, err)
	}
	return t, true, nil
}

func (s *SQLiteStore) Put(task ScheduledTask) error {
	status := "active"
	if !task.Active {
		status = "inactive"
	}
	_, err := s.db.Exec(
		`INSERT INTO scheduled_tasks (id, group_folder, prompt, schedule_type, schedule_value, next_run, last_run, last_result, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   group_folder = excluded.group_folder, prompt = excluded.prompt,
		   schedule_type = excluded.schedule_type, schedule_value = excluded.schedule_value,
		   next_run = excluded.next_run, last_run = excluded.last_run,
		   last_result = excluded.last_result, status = excluded.status`,
		task.ID, task.Group, task.Prompt, string(task.ScheduleType), task.ScheduleValue,
		nullableInt64(task.NextRunMS), nullableInt64(task.LastRunMS), task.LastResult, status, int64(task.CreatedAtMS),
	)
	if err != nil {
		return fmt.Errorf("scheduler: put task %s: %w", task.ID, err)
	}
	return nil
}

func (s *SQLiteStore) LogRun(taskID string, runAtMS, durationMS uint64, status, result, errMsg string) error {
	_, err := s.db.Exec(
		`INSERT INTO task_run_logs (task_id, run_at, duration_ms, status, result, error) VALUES (?, ?, ?, ?, ?, ?)`,
		taskID, int64(runAtMS), int64(durationMS), status, result, errMsg,
	)
	if err != nil {
		return fmt.Errorf("scheduler: log run for %s: %w", taskID, err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTask(row scannable) (ScheduledTask, error) {
	var t ScheduledTask
	var scheduleType, status string
	var nextRun, lastRun sql.NullInt64
	var lastResult sql.NullString
	var createdAt int64

	if err := row.Scan(&t.ID, &t.Group, &t.Prompt, &scheduleType, &t.ScheduleValue, &nextRun, &lastRun, &lastResult, &status, &createdAt); err != nil {
		return ScheduledTask{}, err
	}
	t.ScheduleType = ScheduleType(scheduleType)
	t.Active = status == "active"
	t.CreatedAtMS = uint64(createdAt)
	if nextRun.Valid {
		v := uint64(nextRun.Int64)
		t.NextRunMS = &v
	}
	if lastRun.Valid {
		v := uint64(lastRun.Int64)
		t.LastRunMS = &v
	}
	if lastResult.Valid {
		t.LastResult = lastResult.String
	}
	return t, nil
}

func nullableInt64(v *uint64) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}
