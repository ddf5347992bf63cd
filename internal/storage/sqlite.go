package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const kvSchemaSQL = `
CREATE TABLE IF NOT EXISTS kv_store (
  key TEXT NOT NULL,
  kind TEXT NOT NULL,
  value BLOB NOT NULL,
  PRIMARY KEY (key, kind)
);
`

const (
	kindU32    = "u32"
	kindString = "string"
	kindBytes  = "bytes"
)

// SQLite is a durable KV backed by a single key/kind/value table, the
// typed generalization of the original store's single-string
// `router_state(key, value)` table.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if absent) a sqlite-backed KV at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	if _, err := db.Exec(kvSchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) get(key, kind string) ([]byte, bool) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv_store WHERE key = ? AND kind = ?`, key, kind).Scan(&value)
	if err != nil {
		return nil, false
	}
	return value, true
}

func (s *SQLite) set(key, kind string, value []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO kv_store (key, kind, value) VALUES (?, ?, ?)
		ON CONFLICT(key, kind) DO UPDATE SET value = excluded.value
	`, key, kind, value)
	return err
}

func (s *SQLite) GetU32(key string) (uint32, bool) {
	raw, ok := s.get(key, kindU32)
	if !ok || len(raw) != 4 {
		return 0, false
	}
	v := uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16 | uint32(raw[3])<<24
	return v, true
}

func (s *SQLite) SetU32(key string, value uint32) error {
	raw := []byte{byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24)}
	return s.set(key, kindU32, raw)
}

func (s *SQLite) GetString(key string) (string, bool) {
	raw, ok := s.get(key, kindString)
	if !ok {
		return "", false
	}
	return string(raw), true
}

func (s *SQLite) SetString(key string, value string) error {
	return s.set(key, kindString, []byte(value))
}

func (s *SQLite) GetBytes(key string) ([]byte, bool) {
	return s.get(key, kindBytes)
}

func (s *SQLite) SetBytes(key string, value []byte) error {
	return s.set(key, kindBytes, value)
}

func (s *SQLite) Remove(key string) error {
	_, err := s.db.Exec(`DELETE FROM kv_store WHERE key = ?`, key)
	return err
}

var _ KV = (*SQLite)(nil)
