package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS session (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	payload TEXT NOT NULL,
	saved_at INTEGER NOT NULL
);
`

// SQLiteStore keeps a single session row in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (and creates if needed) the database at path.
// ":memory:" is accepted.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// every connection to ":memory:" is a separate database
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create session schema")
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context) (Credentials, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM session WHERE id = 1").Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Credentials{}, ErrNoSession
	}
	if err != nil {
		return Credentials{}, errors.Wrap(err, "query session")
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(payload), &creds); err != nil {
		return Credentials{}, errors.Wrap(err, "decode session")
	}
	creds.Source = SourceSQLite
	return creds, nil
}

func (s *SQLiteStore) Save(ctx context.Context, creds Credentials) error {
	if creds.SavedAt.IsZero() {
		creds.SavedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(creds)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session (id, payload, saved_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		string(payload), creds.SavedAt.Unix(),
	)
	return errors.Wrap(err, "save session")
}

func (s *SQLiteStore) Invalidate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM session")
	return errors.Wrap(err, "delete session")
}
