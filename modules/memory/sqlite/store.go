package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/cinechat/internal/memory"
)

// sessionStore implements memory.Store on top of database/sql.
type sessionStore struct {
	db    *sql.DB
	clock *memory.Clock
}

func newSessionStore(db *sql.DB) *sessionStore {
	return &sessionStore{db: db, clock: memory.NewClock()}
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

// EnsureSession implements memory.Store. The primary key arbitrates
// concurrent creators; the loser's insert is a silent no-op.
func (s *sessionStore) EnsureSession(ctx context.Context, sess memory.Session) (memory.Session, bool, error) {
	if sess.ID == "" {
		return memory.Session{}, false, memory.ErrEmptySessionID
	}
	meta, err := encodeMetadata(sess.Metadata)
	if err != nil {
		return memory.Session{}, false, err
	}
	now := s.clock.Now().UnixNano()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, title, created_at, updated_at, metadata)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		sess.ID, sess.Title, now, now, meta,
	)
	if err != nil {
		return memory.Session{}, false, fmt.Errorf("sqlite: ensure session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return memory.Session{}, false, fmt.Errorf("sqlite: ensure session: %w", err)
	}

	stored, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		return memory.Session{}, false, err
	}
	return stored, n == 1, nil
}

// GetSession implements memory.Store.
func (s *sessionStore) GetSession(ctx context.Context, id string) (memory.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, created_at, updated_at, metadata
		FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return memory.Session{}, memory.ErrSessionNotFound
	}
	if err != nil {
		return memory.Session{}, fmt.Errorf("sqlite: get session: %w", err)
	}
	return sess, nil
}

// ListSessions implements memory.Store.
func (s *sessionStore) ListSessions(ctx context.Context) ([]memory.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.title, s.created_at, s.updated_at, s.metadata, COUNT(m.id)
		FROM sessions s
		LEFT JOIN messages m ON m.session_id = s.id
		GROUP BY s.id
		ORDER BY s.created_at DESC, s.rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []memory.SessionSummary
	for rows.Next() {
		var (
			sum              memory.SessionSummary
			created, updated int64
			meta             string
		)
		if err := rows.Scan(&sum.ID, &sum.Title, &created, &updated, &meta, &sum.MessageCount); err != nil {
			return nil, fmt.Errorf("sqlite: scan session: %w", err)
		}
		sum.CreatedAt = fromNanos(created)
		sum.UpdatedAt = fromNanos(updated)
		if sum.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list sessions rows: %w", err)
	}
	return out, nil
}

// UpdateSession implements memory.Store.
func (s *sessionStore) UpdateSession(ctx context.Context, id string, upd memory.SessionUpdate) error {
	var meta *string
	if upd.Metadata != nil {
		encoded, err := encodeMetadata(upd.Metadata)
		if err != nil {
			return err
		}
		meta = &encoded
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET title = COALESCE(?, title),
		    metadata = COALESCE(?, metadata),
		    updated_at = ?
		WHERE id = ?`,
		upd.Title, meta, s.clock.Now().UnixNano(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: update session: %w", err)
	}
	return requireRow(res)
}

// DeleteSession implements memory.Store. Messages go first in the same
// transaction so the cascade does not depend on the foreign_keys pragma.
func (s *sessionStore) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", id); err != nil {
		return fmt.Errorf("sqlite: delete messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("sqlite: delete session: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit delete: %w", err)
	}
	return nil
}

// AppendMessage implements memory.Store. The insert only happens while the
// session row exists, in a single statement.
func (s *sessionStore) AppendMessage(ctx context.Context, msg memory.Message) (memory.Message, error) {
	msg, err := memory.PrepareMessage(msg, memory.NewID, s.clock.Now)
	if err != nil {
		return memory.Message{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, role, content, created_at)
		SELECT ?, ?, ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM sessions WHERE id = ?)`,
		msg.ID, msg.SessionID, string(msg.Role), msg.Content, msg.CreatedAt.UnixNano(), msg.SessionID,
	)
	if err != nil {
		return memory.Message{}, fmt.Errorf("sqlite: append message: %w", err)
	}
	if err := requireRow(res); err != nil {
		return memory.Message{}, err
	}

	if _, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET updated_at = ? WHERE id = ?",
		s.clock.Now().UnixNano(), msg.SessionID,
	); err != nil {
		return memory.Message{}, fmt.Errorf("sqlite: touch session: %w", err)
	}
	return msg, nil
}

// ListMessages implements memory.Store.
func (s *sessionStore) ListMessages(ctx context.Context, sessionID string) ([]memory.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, created_at
		FROM messages
		WHERE session_id = ?
		ORDER BY created_at ASC, rowid ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []memory.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list messages rows: %w", err)
	}
	return out, nil
}

// ClearMessages implements memory.Store.
func (s *sessionStore) ClearMessages(ctx context.Context, sessionID string) (int, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", sessionID)
	if err != nil {
		return 0, fmt.Errorf("sqlite: clear messages: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: clear messages: %w", err)
	}
	return int(n), nil
}

// Ping implements memory.Store.
func (s *sessionStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

func scanSession(row scanner) (memory.Session, error) {
	var (
		sess             memory.Session
		created, updated int64
		meta             string
	)
	if err := row.Scan(&sess.ID, &sess.Title, &created, &updated, &meta); err != nil {
		return memory.Session{}, err
	}
	sess.CreatedAt = fromNanos(created)
	sess.UpdatedAt = fromNanos(updated)
	m, err := decodeMetadata(meta)
	if err != nil {
		return memory.Session{}, err
	}
	sess.Metadata = m
	return sess, nil
}

func scanMessage(row scanner) (memory.Message, error) {
	var (
		msg     memory.Message
		role    string
		created int64
	)
	if err := row.Scan(&msg.ID, &msg.SessionID, &role, &msg.Content, &created); err != nil {
		return memory.Message{}, fmt.Errorf("sqlite: scan message: %w", err)
	}
	msg.Role = memory.Role(role)
	msg.CreatedAt = fromNanos(created)
	return msg, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return memory.ErrSessionNotFound
	}
	return nil
}

func encodeMetadata(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("sqlite: marshal metadata: %w", err)
	}
	return string(b), nil
}

func decodeMetadata(s string) (map[string]any, error) {
	m := map[string]any{}
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal metadata: %w", err)
	}
	return m, nil
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
