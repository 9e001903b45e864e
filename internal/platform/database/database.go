package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"nefrit/internal/platform/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS keys (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	token TEXT UNIQUE NOT NULL,
	days INTEGER NOT NULL DEFAULT 0,
	is_used INTEGER NOT NULL DEFAULT 0,
	used_by INTEGER,
	used_by_label TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	activated_at INTEGER,
	expires_at INTEGER,
	is_revoked INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS accounts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER UNIQUE NOT NULL,
	label TEXT NOT NULL DEFAULT '',
	client_uuid TEXT UNIQUE NOT NULL,
	path TEXT UNIQUE NOT NULL,
	key_id INTEGER NOT NULL REFERENCES keys(id),
	created_at INTEGER NOT NULL,
	expires_at INTEGER,
	is_active INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_accounts_key_id ON accounts(key_id);
CREATE INDEX IF NOT EXISTS idx_accounts_expires ON accounts(expires_at) WHERE expires_at IS NOT NULL;
`

// Open connects to the sqlite database at cfg.Path, creating the parent
// directory and the schema if needed. WAL plus a busy timeout keeps the
// activation transaction from failing under concurrent admin traffic.
// Transactions take the write lock up front (_txlock=immediate): the
// activation path is read-then-write, and a deferred transaction that
// upgrades mid-flight would fail with SQLITE_BUSY instead of waiting,
// surfacing a storage error where the loser of a race should observe the
// committed key state.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_foreign_keys=on&_txlock=immediate", cfg.Path, cfg.BusyTimeout)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err := EnsureSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
