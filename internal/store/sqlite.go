package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"inboxsweep/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the unsubscribe history and a durable key-value table in
// a local SQLite database. It satisfies kv.Store and the executor's history
// sink.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at the given path and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS history (
	id          TEXT PRIMARY KEY,
	sender_name TEXT NOT NULL DEFAULT '',
	email       TEXT NOT NULL DEFAULT '',
	method      TEXT NOT NULL DEFAULT '',
	outcome     TEXT NOT NULL,
	link        TEXT NOT NULL DEFAULT '',
	at_rfc3339  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS history_at ON history (at_rfc3339);

CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL DEFAULT ''
);
`
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record appends one history entry. Re-recording the same id replaces it.
func (s *SQLiteStore) Record(ctx context.Context, h model.HistoryRecord) error {
	if h.ID == "" {
		return errors.New("history record has no id")
	}
	if h.At.IsZero() {
		h.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history (id, sender_name, email, method, outcome, link, at_rfc3339)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sender_name = excluded.sender_name,
			email       = excluded.email,
			method      = excluded.method,
			outcome     = excluded.outcome,
			link        = excluded.link,
			at_rfc3339  = excluded.at_rfc3339
	`, h.ID, h.SenderName, h.Email, h.Method, string(h.Outcome), h.Link, h.At.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// ListHistory returns the most recent entries first. limit <= 0 returns all.
func (s *SQLiteStore) ListHistory(ctx context.Context, limit int) ([]model.HistoryRecord, error) {
	query := "SELECT id, sender_name, email, method, outcome, link, at_rfc3339 FROM history ORDER BY at_rfc3339 DESC, id"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []model.HistoryRecord
	for rows.Next() {
		var (
			h       model.HistoryRecord
			outcome string
			at      string
		)
		if err := rows.Scan(&h.ID, &h.SenderName, &h.Email, &h.Method, &outcome, &h.Link, &at); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		h.Outcome = model.OutcomeKind(outcome)
		if t, err := time.Parse(time.RFC3339Nano, at); err == nil {
			h.At = t
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// HistoryFor returns entries recorded for the given sender emails.
func (s *SQLiteStore) HistoryFor(ctx context.Context, emails []string) ([]model.HistoryRecord, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(emails))
	args := make([]any, len(emails))
	for i, e := range emails {
		placeholders[i] = "?"
		args[i] = strings.ToLower(strings.TrimSpace(e))
	}
	query := "SELECT id, sender_name, email, method, outcome, link, at_rfc3339 FROM history WHERE email IN (" +
		strings.Join(placeholders, ",") + ") ORDER BY at_rfc3339 DESC, id"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []model.HistoryRecord
	for rows.Next() {
		var h model.HistoryRecord
		var outcome, at string
		if err := rows.Scan(&h.ID, &h.SenderName, &h.Email, &h.Method, &outcome, &h.Link, &at); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		h.Outcome = model.OutcomeKind(outcome)
		h.At, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CountHistory(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM history").Scan(&count)
	return count, err
}

// Get implements kv.Store.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv get %s: %w", key, err)
	}
	return val, true, nil
}

// Set implements kv.Store.
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}

// Delete implements kv.Store.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}
