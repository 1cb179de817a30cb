package devicedb

import (
	"database/sql"
	"fmt"
)

// Schema is the subset of the device content provider tables that is read.
const Schema = `
CREATE TABLE IF NOT EXISTS calls (
    _id INTEGER PRIMARY KEY,
    number TEXT,
    date INTEGER NOT NULL,
    type INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS sms (
    _id INTEGER PRIMARY KEY,
    thread_id INTEGER,
    address TEXT,
    date INTEGER NOT NULL,
    subject TEXT,
    body TEXT,
    type INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS pdu (
    _id INTEGER PRIMARY KEY,
    thread_id INTEGER,
    date INTEGER NOT NULL,
    msg_box INTEGER,
    sub TEXT,
    sub_cs INTEGER
);
CREATE TABLE IF NOT EXISTS addr (
    _id INTEGER PRIMARY KEY,
    msg_id INTEGER NOT NULL,
    address TEXT,
    type INTEGER NOT NULL,
    charset INTEGER
);
CREATE TABLE IF NOT EXISTS part (
    _id INTEGER PRIMARY KEY,
    mid INTEGER NOT NULL,
    seq INTEGER DEFAULT 0,
    ct TEXT,
    chset INTEGER,
    text TEXT,
    _data TEXT
);
`

// CreateFixture creates (or opens) a writable device database at path with
// the device schema. It is used to seed device logs in tests.
func CreateFixture(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to create device fixture: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create device schema: %w", err)
	}
	return db, nil
}
