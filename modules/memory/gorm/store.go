package gorm

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/flemzord/cinechat/internal/memory"
)

// Store implements memory.Store with gorm.
type Store struct {
	db    *gorm.DB
	clock *memory.Clock
}

var _ memory.Store = (*Store)(nil)

// NewStore wraps an open gorm connection and migrates the schema.
func NewStore(db *gorm.DB) (*Store, error) {
	s := &Store{db: db, clock: memory.NewClock()}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	if err := s.db.AutoMigrate(&sessionRow{}, &messageRow{}); err != nil {
		return fmt.Errorf("gorm: migrate: %w", err)
	}
	return nil
}

// EnsureSession implements memory.Store.
func (s *Store) EnsureSession(ctx context.Context, sess memory.Session) (memory.Session, bool, error) {
	if sess.ID == "" {
		return memory.Session{}, false, memory.ErrEmptySessionID
	}
	meta, err := encodeMetadata(sess.Metadata)
	if err != nil {
		return memory.Session{}, false, err
	}
	now := s.clock.Now().UnixNano()
	row := sessionRow{ID: sess.ID, Title: sess.Title, CreatedAt: now, UpdatedAt: now, Metadata: meta}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return memory.Session{}, false, fmt.Errorf("gorm: ensure session: %w", res.Error)
	}

	stored, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		return memory.Session{}, false, err
	}
	return stored, res.RowsAffected == 1, nil
}

// GetSession implements memory.Store.
func (s *Store) GetSession(ctx context.Context, id string) (memory.Session, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return memory.Session{}, memory.ErrSessionNotFound
		}
		return memory.Session{}, fmt.Errorf("gorm: get session: %w", err)
	}
	return row.toSession()
}

// ListSessions implements memory.Store.
func (s *Store) ListSessions(ctx context.Context) ([]memory.SessionSummary, error) {
	var rows []sessionCountRow
	err := s.db.WithContext(ctx).
		Table("sessions AS s").
		Select("s.id, s.title, s.created_at, s.updated_at, s.metadata, COUNT(m.id) AS message_count").
		Joins("LEFT JOIN messages m ON m.session_id = s.id").
		Group("s.id, s.title, s.created_at, s.updated_at, s.metadata").
		Order("s.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list sessions: %w", err)
	}

	out := make([]memory.SessionSummary, 0, len(rows))
	for _, r := range rows {
		sess, err := r.toSession()
		if err != nil {
			return nil, err
		}
		out = append(out, memory.SessionSummary{Session: sess, MessageCount: r.MessageCount})
	}
	return out, nil
}

// UpdateSession implements memory.Store.
func (s *Store) UpdateSession(ctx context.Context, id string, upd memory.SessionUpdate) error {
	fields := map[string]any{"updated_at": s.clock.Now().UnixNano()}
	if upd.Title != nil {
		fields["title"] = *upd.Title
	}
	if upd.Metadata != nil {
		meta, err := encodeMetadata(upd.Metadata)
		if err != nil {
			return err
		}
		fields["metadata"] = meta
	}

	res := s.db.WithContext(ctx).Model(&sessionRow{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("gorm: update session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return memory.ErrSessionNotFound
	}
	return nil
}

// DeleteSession implements memory.Store.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&messageRow{}).Error; err != nil {
			return fmt.Errorf("gorm: delete messages: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&sessionRow{})
		if res.Error != nil {
			return fmt.Errorf("gorm: delete session: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return memory.ErrSessionNotFound
		}
		return nil
	})
}

// AppendMessage implements memory.Store. The row is only inserted while
// the session exists, in a single statement.
func (s *Store) AppendMessage(ctx context.Context, msg memory.Message) (memory.Message, error) {
	msg, err := memory.PrepareMessage(msg, memory.NewID, s.clock.Now)
	if err != nil {
		return memory.Message{}, err
	}

	res := s.db.WithContext(ctx).Exec(`
		INSERT INTO messages (id, session_id, role, content, created_at)
		SELECT ?, ?, ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM sessions WHERE id = ?)`,
		msg.ID, msg.SessionID, string(msg.Role), msg.Content, msg.CreatedAt.UnixNano(), msg.SessionID,
	)
	if res.Error != nil {
		return memory.Message{}, fmt.Errorf("gorm: append message: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return memory.Message{}, memory.ErrSessionNotFound
	}

	err = s.db.WithContext(ctx).Model(&sessionRow{}).
		Where("id = ?", msg.SessionID).
		Update("updated_at", s.clock.Now().UnixNano()).Error
	if err != nil {
		return memory.Message{}, fmt.Errorf("gorm: touch session: %w", err)
	}
	return msg, nil
}

// ListMessages implements memory.Store.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]memory.Message, error) {
	var rows []messageRow
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list messages: %w", err)
	}
	out := make([]memory.Message, len(rows))
	for i, r := range rows {
		out[i] = r.toMessage()
	}
	return out, nil
}

// ClearMessages implements memory.Store.
func (s *Store) ClearMessages(ctx context.Context, sessionID string) (int, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return 0, err
	}
	res := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&messageRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("gorm: clear messages: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// Ping implements memory.Store.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("gorm: underlying db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("gorm: ping: %w", err)
	}
	return nil
}
