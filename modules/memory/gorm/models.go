package gorm

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/flemzord/cinechat/internal/memory"
)

// Timestamps are stored as unix nanoseconds so ordering never depends on
// the column precision of the target database.

type sessionRow struct {
	ID        string `gorm:"primaryKey;size:191"`
	Title     string `gorm:"size:255;not null;default:''"`
	CreatedAt int64  `gorm:"not null;index;autoCreateTime:false"`
	UpdatedAt int64  `gorm:"not null;autoUpdateTime:false"`
	Metadata  string `gorm:"type:text;not null;default:'{}'"`
}

func (sessionRow) TableName() string {
	return "sessions"
}

type messageRow struct {
	ID        string `gorm:"primaryKey;size:191"`
	SessionID string `gorm:"size:191;not null;index:idx_messages_session,priority:1"`
	Role      string `gorm:"size:16;not null"`
	Content   string `gorm:"type:text;not null"`
	CreatedAt int64  `gorm:"not null;index;index:idx_messages_session,priority:2;autoCreateTime:false"`
	// Seq breaks ties between equal timestamps in insertion order.
	Seq int64 `gorm:"autoIncrement;not null"`
}

func (messageRow) TableName() string {
	return "messages"
}

// sessionCountRow is the projection used by ListSessions.
type sessionCountRow struct {
	sessionRow
	MessageCount int
}

func (r sessionRow) toSession() (memory.Session, error) {
	meta := map[string]any{}
	if r.Metadata != "" {
		if err := json.Unmarshal([]byte(r.Metadata), &meta); err != nil {
			return memory.Session{}, fmt.Errorf("gorm: unmarshal metadata: %w", err)
		}
	}
	return memory.Session{
		ID:        r.ID,
		Title:     r.Title,
		CreatedAt: fromNanos(r.CreatedAt),
		UpdatedAt: fromNanos(r.UpdatedAt),
		Metadata:  meta,
	}, nil
}

func (r messageRow) toMessage() memory.Message {
	return memory.Message{
		ID:        r.ID,
		SessionID: r.SessionID,
		Role:      memory.Role(r.Role),
		Content:   r.Content,
		CreatedAt: fromNanos(r.CreatedAt),
	}
}

func encodeMetadata(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("gorm: marshal metadata: %w", err)
	}
	return string(b), nil
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
