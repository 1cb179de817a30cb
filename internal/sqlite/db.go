package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New creates a new SQLite database connection
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The engine is the single writer; one connection also keeps :memory: databases coherent.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &DB{db}, nil
}

// RunMigrations creates the schema if it does not exist yet.
func (db *DB) RunMigrations() error {
	migration := `
-- Unified timeline
CREATE TABLE IF NOT EXISTS timeline (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    native_id TEXT NOT NULL,
    source TEXT NOT NULL CHECK(source IN ('remote_status', 'call', 'sms', 'mms')),
    direction TEXT NOT NULL DEFAULT '',
    timestamp_ms INTEGER NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    local_contact_id INTEGER,
    remote_contact_id INTEGER,
    remote_user_id INTEGER,
    contact_name TEXT NOT NULL DEFAULT '',
    contact_network TEXT NOT NULL DEFAULT '',
    activity_id TEXT,
    parent_activity_id TEXT,
    has_children BOOLEAN NOT NULL DEFAULT FALSE,
    flags INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_timeline_ts ON timeline(timestamp_ms);
CREATE INDEX IF NOT EXISTS idx_timeline_source_native ON timeline(source, native_id);
CREATE INDEX IF NOT EXISTS idx_timeline_activity ON timeline(activity_id, timestamp_ms);

-- Watermarks per event class
CREATE TABLE IF NOT EXISTS watermarks (
    kind TEXT PRIMARY KEY CHECK(kind IN ('remote_status', 'call', 'sms', 'mms')),
    oldest_ms INTEGER NOT NULL DEFAULT 0,
    newest_ms INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Contacts used for address resolution
CREATE TABLE IF NOT EXISTS contacts (
    id INTEGER PRIMARY KEY,
    local_id INTEGER,
    user_id INTEGER,
    display_name TEXT NOT NULL,
    network_tag TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS contact_addresses (
    contact_id INTEGER NOT NULL,
    address TEXT NOT NULL,
    PRIMARY KEY (contact_id, address),
    FOREIGN KEY (contact_id) REFERENCES contacts(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_contact_address ON contact_addresses(address);
`

	if _, err := db.Exec(migration); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
