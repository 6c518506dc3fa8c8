package sqlite

import (
	"database/sql"
	"fmt"
)

// createSchema creates all tables needed by the engine. Safe to call
// multiple times.
func createSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const schema = `
-- Polls
CREATE TABLE IF NOT EXISTS polls (
    id TEXT PRIMARY KEY,
    question TEXT NOT NULL,
    options TEXT NOT NULL, -- JSON array of labels
    duration INTEGER NOT NULL, -- seconds
    started_at INTEGER NOT NULL, -- unix milliseconds
    status TEXT NOT NULL CHECK (status IN ('ACTIVE', 'COMPLETED'))
);

CREATE INDEX IF NOT EXISTS idx_polls_status ON polls(status);

-- Votes. No foreign key on student_id: votes of kicked students still
-- count historically.
CREATE TABLE IF NOT EXISTS votes (
    id TEXT PRIMARY KEY,
    poll_id TEXT NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
    student_id TEXT NOT NULL,
    option_index INTEGER NOT NULL,
    UNIQUE (poll_id, student_id)
);

CREATE INDEX IF NOT EXISTS idx_votes_poll_id ON votes(poll_id);

-- Students. conn_id is NULL while temporarily disconnected.
CREATE TABLE IF NOT EXISTS students (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    conn_id TEXT
);

CREATE INDEX IF NOT EXISTS idx_students_conn_id ON students(conn_id);
`
