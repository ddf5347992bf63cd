package storage

import (
	"database/sql"
	"fmt"
)

const groupsSchemaSQL = `
CREATE TABLE IF NOT EXISTS registered_groups (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  folder TEXT NOT NULL UNIQUE,
  trigger_pattern TEXT NOT NULL,
  added_at_ms INTEGER NOT NULL,
  container_config TEXT,
  requires_trigger INTEGER NOT NULL DEFAULT 1
);
`

// RegisteredGroup is a sandbox execution group, ported from the original
// store's `registered_groups` table: a folder of agent-visible state
// paired with the trigger pattern and an optional per-group container
// override (ContainerConfig). ContainerConfig is stored and returned only;
// the sandbox dispatcher and host runtime do not read it.
type RegisteredGroup struct {
	ID              string
	Name            string
	Folder          string
	TriggerPattern  string
	AddedAtMS       uint64
	ContainerConfig string // opaque JSON override of image/mounts/env, empty for default
	RequiresTrigger bool
}

// GroupStore manages registered groups.
type GroupStore interface {
	PutGroup(group RegisteredGroup) error
	ListGroups() ([]RegisteredGroup, error)
	GetGroup(id string) (RegisteredGroup, bool, error)
	RemoveGroup(id string) error
}

// EnsureGroupSchema creates the registered_groups table on db if absent.
func EnsureGroupSchema(db *sql.DB) error {
	_, err := db.Exec(groupsSchemaSQL)
	return err
}

// SQLiteGroupStore is a GroupStore backed by the same sqlite database as
// SQLite's kv_store table.
type SQLiteGroupStore struct {
	db *sql.DB
}

// NewSQLiteGroupStore wraps db, creating the registered_groups table if
// it does not already exist.
func NewSQLiteGroupStore(db *sql.DB) (*SQLiteGroupStore, error) {
	if err := EnsureGroupSchema(db); err != nil {
		return nil, fmt.Errorf("storage: create registered_groups schema: %w", err)
	}
	return &SQLiteGroupStore{db: db}, nil
}

func (s *SQLiteGroupStore) PutGroup(group RegisteredGroup) error {
	_, err := s.db.Exec(`
		INSERT INTO registered_groups (id, name, folder, trigger_pattern, added_at_ms, container_config, requires_trigger)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			folder = excluded.folder,
			trigger_pattern = excluded.trigger_pattern,
			added_at_ms = excluded.added_at_ms,
			container_config = excluded.container_config,
			requires_trigger = excluded.requires_trigger
	`, group.ID, group.Name, group.Folder, group.TriggerPattern, group.AddedAtMS,
		group.ContainerConfig, boolToInt(group.RequiresTrigger))
	return err
}

func (s *SQLiteGroupStore) ListGroups() ([]RegisteredGroup, error) {
	rows, err := s.db.Query(`
		SELECT id, name, folder, trigger_pattern, added_at_ms, container_config, requires_trigger
		FROM registered_groups ORDER BY added_at_ms ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []RegisteredGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *SQLiteGroupStore) GetGroup(id string) (RegisteredGroup, bool, error) {
	row := s.db.QueryRow(`
		SELECT id, name, folder, trigger_pattern, added_at_ms, container_config, requires_trigger
		FROM registered_groups WHERE id = ?
	`, id)
	g, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return RegisteredGroup{}, false, nil
	}
	if err != nil {
		return RegisteredGroup{}, false, err
	}
	return g, true, nil
}

func (s *SQLiteGroupStore) RemoveGroup(id string) error {
	_, err := s.db.Exec(`DELETE FROM registered_groups WHERE id = ?`, id)
	return err
}

type scannable interface {
	Scan(dest ...any) error
}

func scanGroup(row scannable) (RegisteredGroup, error) {
	var g RegisteredGroup
	var containerConfig sql.NullString
	var requiresTrigger int64
	err := row.Scan(&g.ID, &g.Name, &g.Folder, &g.TriggerPattern, &g.AddedAtMS, &containerConfig, &requiresTrigger)
	if err != nil {
		return RegisteredGroup{}, err
	}
	g.ContainerConfig = containerConfig.String
	g.RequiresTrigger = requiresTrigger != 0
	return g, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
