// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package session implements the session and workspace manager: a
// per-session isolated filesystem workspace paired with SQLite-backed
// metadata (tokens, cost, timestamps).
package session

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tombee/conductor-synth/internal/errs"
)

var tagSanitizer = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// SanitizeTag reduces an arbitrary caller-supplied tag to the
// filesystem-safe session_id alphabet.
func SanitizeTag(tag string) string {
	return tagSanitizer.ReplaceAllString(tag, "")
}

// Record is the persisted row backing one session; its JSON form is what
// the session tools return to the agent.
type Record struct {
	SessionID    string    `json:"session_id"`
	SessionName  string    `json:"session_name"`
	ModelName    string    `json:"model_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	TokensInput  int64     `json:"tokens_input"`
	TokensOutput int64     `json:"tokens_output"`
	TokensCached int64     `json:"tokens_cached"`
	TokensTotal  int64     `json:"tokens_total"`
	CostUSD      float64   `json:"cost_usd"`
}

// Store owns the session_metadata table and the workspace root directory
// under which each session's workspace directory lives.
type Store struct {
	db            *sql.DB
	workspaceRoot string
}

// Open opens (creating if absent) the SQLite database at dbPath and ensures
// workspaceRoot exists, then runs idempotent schema migrations.
func Open(dbPath, workspaceRoot string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && filepath.Dir(dbPath) != "." {
		return nil, errs.Wrap(err, "creating session db directory")
	}
	if err := os.MkdirAll(workspaceRoot, 0o755); err != nil {
		return nil, errs.Wrap(err, "creating workspace root")
	}

	connStr := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, errs.Wrap(err, "opening session db")
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errs.Wrap(err, "connecting to session db")
	}

	s := &Store{db: db, workspaceRoot: workspaceRoot}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, errs.Wrap(err, "migrating session db")
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// migrate creates session_metadata if absent and adds any missing columns
// idempotently, so older databases pick up newer columns on open.
func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS session_metadata (
			session_id    TEXT PRIMARY KEY,
			model_name    TEXT NOT NULL DEFAULT '',
			created_at    TEXT NOT NULL,
			tokens_input  INTEGER NOT NULL DEFAULT 0,
			tokens_output INTEGER NOT NULL DEFAULT 0,
			tokens_cached INTEGER NOT NULL DEFAULT 0,
			tokens_total  INTEGER NOT NULL DEFAULT 0,
			cost_usd      REAL NOT NULL DEFAULT 0
		)`)
	if err != nil {
		return err
	}

	for _, col := range []struct{ name, ddl string }{
		{"session_name", "ALTER TABLE session_metadata ADD COLUMN session_name TEXT NOT NULL DEFAULT ''"},
		{"updated_at", "ALTER TABLE session_metadata ADD COLUMN updated_at TEXT NOT NULL DEFAULT ''"},
	} {
		if !s.hasColumn(ctx, col.name) {
			if _, err := s.db.ExecContext(ctx, col.ddl); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) hasColumn(ctx context.Context, name string) bool {
	rows, err := s.db.QueryContext(ctx, `PRAGMA table_info(session_metadata)`)
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var colName, colType string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return false
		}
		if colName == name {
			return true
		}
	}
	return false
}

// WorkspaceDir returns the workspace directory path for a session_id,
// without creating it.
func (s *Store) WorkspaceDir(sessionID string) string {
	return filepath.Join(s.workspaceRoot, sessionID)
}

// Create sanitizes tag, creates the workspace directory, and inserts a
// zeroed metadata row.
func (s *Store) Create(ctx context.Context, tag, modelName string) (*Record, error) {
	sessionID := SanitizeTag(tag)
	if sessionID == "" {
		return nil, &errs.ValidationError{Field: "tag", Message: "sanitized session tag is empty"}
	}

	dir := s.WorkspaceDir(sessionID)
	if _, err := os.Stat(dir); err == nil {
		return nil, &errs.AlreadyExistsError{Resource: "session workspace", ID: sessionID}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(err, "creating workspace directory")
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_metadata
			(session_id, session_name, model_name, created_at, updated_at,
			 tokens_input, tokens_output, tokens_cached, tokens_total, cost_usd)
		VALUES (?, ?, ?, ?, ?, 0, 0, 0, 0, 0)`,
		sessionID, tag, modelName, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		os.RemoveAll(dir)
		return nil, errs.Wrap(err, "inserting session metadata")
	}

	return &Record{
		SessionID:   sessionID,
		SessionName: tag,
		ModelName:   modelName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// List enumerates sessions whose workspace directories still exist,
// ordered by updated_at then created_at descending.
func (s *Store) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, session_name, model_name, created_at, updated_at,
		       tokens_input, tokens_output, tokens_cached, tokens_total, cost_usd
		FROM session_metadata`)
	if err != nil {
		return nil, errs.Wrap(err, "listing session metadata")
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		if _, statErr := os.Stat(s.WorkspaceDir(r.SessionID)); statErr != nil {
			continue
		}
		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// scanner abstracts *sql.Row / *sql.Rows, both of which implement Scan.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var r Record
	var createdAt, updatedAt string
	if err := row.Scan(&r.SessionID, &r.SessionName, &r.ModelName, &createdAt, &updatedAt,
		&r.TokensInput, &r.TokensOutput, &r.TokensCached, &r.TokensTotal, &r.CostUSD); err != nil {
		return nil, err
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &r, nil
}

// Metadata returns the row for session_id, or (nil, nil) if absent.
func (s *Store) Metadata(ctx context.Context, sessionID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, session_name, model_name, created_at, updated_at,
		       tokens_input, tokens_output, tokens_cached, tokens_total, cost_usd
		FROM session_metadata WHERE session_id = ?`, sessionID)

	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(err, "reading session metadata")
	}
	return r, nil
}

// UpdateStats replaces the absolute token/cost counters for sessionID and
// bumps updated_at. Counters are absolute, not deltas.
func (s *Store) UpdateStats(ctx context.Context, sessionID string, tokensIn, tokensOut, tokensCached int64, costUSD float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE session_metadata
		SET tokens_input = ?, tokens_output = ?, tokens_cached = ?,
		    tokens_total = ?, cost_usd = ?, updated_at = ?
		WHERE session_id = ?`,
		tokensIn, tokensOut, tokensCached, tokensIn+tokensOut+tokensCached, costUSD,
		time.Now().UTC().Format(time.RFC3339), sessionID)
	if err != nil {
		return errs.Wrap(err, "updating session stats")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Wrap(err, "checking update result")
	}
	if n == 0 {
		return &errs.NotFoundError{Resource: "session", ID: sessionID}
	}
	return nil
}

// Delete removes sessionID's workspace directory and metadata row, and
// best-effort removes any checkpoint tables keyed by thread_id = session_id.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	dir := s.WorkspaceDir(sessionID)
	if err := os.RemoveAll(dir); err != nil {
		return errs.Wrap(err, "removing workspace directory")
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_metadata WHERE session_id = ?`, sessionID); err != nil {
		return errs.Wrap(err, "deleting session metadata")
	}

	// Best-effort: checkpoint tables are an optional collaborator concern;
	// absence of the table is not an error.
	_, _ = s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, sessionID)
	return nil
}
