// Package memorytest provides a behavioural test suite shared by every
// memory.Store implementation.
package memorytest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/cinechat/internal/memory"
)

// RunStoreTests exercises the memory.Store contract against stores built
// by newStore. Each subtest gets a fresh store.
func RunStoreTests(t *testing.T, newStore func(t *testing.T) memory.Store) {
	t.Helper()

	t.Run("EnsureSessionIdempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first, created, err := s.EnsureSession(ctx, memory.Session{ID: "s1", Title: "First", Metadata: map[string]any{"k": "v"}})
		if err != nil {
			t.Fatalf("EnsureSession: %v", err)
		}
		if !created {
			t.Error("first EnsureSession should create")
		}
		second, created, err := s.EnsureSession(ctx, memory.Session{ID: "s1", Title: "Second"})
		if err != nil {
			t.Fatalf("EnsureSession again: %v", err)
		}
		if created {
			t.Error("second EnsureSession should not create")
		}
		if second.Title != "First" {
			t.Errorf("title = %q, want %q", second.Title, "First")
		}
		if !second.CreatedAt.Equal(first.CreatedAt) {
			t.Errorf("created_at changed: %v -> %v", first.CreatedAt, second.CreatedAt)
		}
		if second.Metadata["k"] != "v" {
			t.Errorf("metadata = %v", second.Metadata)
		}
	})

	t.Run("EnsureSessionConcurrent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		const n = 16
		var wg sync.WaitGroup
		var mu sync.Mutex
		creates := 0
		errs := make(chan error, n)
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, created, err := s.EnsureSession(ctx, memory.Session{ID: "race", Title: "t"})
				if err != nil {
					errs <- err
					return
				}
				if created {
					mu.Lock()
					creates++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("EnsureSession: %v", err)
		}
		if creates != 1 {
			t.Errorf("creates = %d, want 1", creates)
		}
		list, err := s.ListSessions(ctx)
		if err != nil {
			t.Fatalf("ListSessions: %v", err)
		}
		if len(list) != 1 {
			t.Errorf("sessions = %d, want 1", len(list))
		}
	})

	t.Run("GetSessionNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetSession(context.Background(), "missing")
		if !errors.Is(err, memory.ErrSessionNotFound) {
			t.Errorf("err = %v, want ErrSessionNotFound", err)
		}
	})

	t.Run("MessagesOrderedAndStable", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustSession(t, s, "s1")

		// Identical timestamps must still come back in insertion order.
		at := time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)
		for i := range 6 {
			role := memory.RoleUser
			if i%2 == 1 {
				role = memory.RoleAssistant
			}
			msg := memory.Message{SessionID: "s1", Role: role, Content: fmt.Sprintf("m%d", i)}
			if i >= 4 {
				msg.CreatedAt = at
			}
			if _, err := s.AppendMessage(ctx, msg); err != nil {
				t.Fatalf("AppendMessage: %v", err)
			}
		}

		first, err := s.ListMessages(ctx, "s1")
		if err != nil {
			t.Fatalf("ListMessages: %v", err)
		}
		second, err := s.ListMessages(ctx, "s1")
		if err != nil {
			t.Fatalf("ListMessages again: %v", err)
		}
		if len(first) != 6 || len(second) != 6 {
			t.Fatalf("len = %d/%d, want 6", len(first), len(second))
		}
		for i := range first {
			if first[i].ID != second[i].ID {
				t.Errorf("read %d differs: %s vs %s", i, first[i].ID, second[i].ID)
			}
			if first[i].ID == "" {
				t.Errorf("message %d has no id", i)
			}
		}
		if first[4].Content != "m4" || first[5].Content != "m5" {
			t.Errorf("tie order = %q,%q, want m4,m5", first[4].Content, first[5].Content)
		}
		for i := 1; i < 4; i++ {
			if !first[i].CreatedAt.After(first[i-1].CreatedAt) {
				t.Errorf("created_at not increasing at %d", i)
			}
		}
	})

	t.Run("AppendRequiresSession", func(t *testing.T) {
		s := newStore(t)
		_, err := s.AppendMessage(context.Background(), memory.Message{SessionID: "ghost", Role: memory.RoleUser, Content: "x"})
		if !errors.Is(err, memory.ErrSessionNotFound) {
			t.Errorf("err = %v, want ErrSessionNotFound", err)
		}
	})

	t.Run("AppendRejectsUnknownRole", func(t *testing.T) {
		s := newStore(t)
		mustSession(t, s, "s1")
		_, err := s.AppendMessage(context.Background(), memory.Message{SessionID: "s1", Role: "tool", Content: "x"})
		if !errors.Is(err, memory.ErrInvalidRole) {
			t.Errorf("err = %v, want ErrInvalidRole", err)
		}
	})

	t.Run("DeleteCascades", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustSession(t, s, "s1")
		mustSession(t, s, "s2")
		mustAppend(t, s, "s1", memory.RoleUser, "hello")
		mustAppend(t, s, "s2", memory.RoleUser, "other")

		if err := s.DeleteSession(ctx, "s1"); err != nil {
			t.Fatalf("DeleteSession: %v", err)
		}
		if _, err := s.GetSession(ctx, "s1"); !errors.Is(err, memory.ErrSessionNotFound) {
			t.Errorf("GetSession after delete = %v", err)
		}
		msgs, err := s.ListMessages(ctx, "s1")
		if err != nil {
			t.Fatalf("ListMessages: %v", err)
		}
		if len(msgs) != 0 {
			t.Errorf("messages after delete = %d, want 0", len(msgs))
		}
		if _, err := s.AppendMessage(ctx, memory.Message{SessionID: "s1", Role: memory.RoleAssistant, Content: "late"}); !errors.Is(err, memory.ErrSessionNotFound) {
			t.Errorf("append after delete = %v, want ErrSessionNotFound", err)
		}
		if other, _ := s.ListMessages(ctx, "s2"); len(other) != 1 {
			t.Errorf("other session messages = %d, want 1", len(other))
		}
		if err := s.DeleteSession(ctx, "s1"); !errors.Is(err, memory.ErrSessionNotFound) {
			t.Errorf("second delete = %v, want ErrSessionNotFound", err)
		}
	})

	t.Run("ClearMessagesKeepsSession", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustSession(t, s, "s1")
		mustAppend(t, s, "s1", memory.RoleUser, "a")
		mustAppend(t, s, "s1", memory.RoleAssistant, "b")

		n, err := s.ClearMessages(ctx, "s1")
		if err != nil {
			t.Fatalf("ClearMessages: %v", err)
		}
		if n != 2 {
			t.Errorf("deleted = %d, want 2", n)
		}
		if _, err := s.GetSession(ctx, "s1"); err != nil {
			t.Errorf("session should remain: %v", err)
		}
		if _, err := s.ClearMessages(ctx, "missing"); !errors.Is(err, memory.ErrSessionNotFound) {
			t.Errorf("clear missing = %v, want ErrSessionNotFound", err)
		}
	})

	t.Run("ListSessionsNewestFirst", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustSession(t, s, "old")
		mustSession(t, s, "new")
		mustAppend(t, s, "old", memory.RoleUser, "x")

		list, err := s.ListSessions(ctx)
		if err != nil {
			t.Fatalf("ListSessions: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("len = %d, want 2", len(list))
		}
		if list[0].ID != "new" || list[1].ID != "old" {
			t.Errorf("order = %s,%s, want new,old", list[0].ID, list[1].ID)
		}
		if list[1].MessageCount != 1 {
			t.Errorf("message_count = %d, want 1", list[1].MessageCount)
		}
	})

	t.Run("UpdateSession", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		before := mustSession(t, s, "s1")

		title := "Noir night"
		if err := s.UpdateSession(ctx, "s1", memory.SessionUpdate{Title: &title, Metadata: map[string]any{"pinned": true}}); err != nil {
			t.Fatalf("UpdateSession: %v", err)
		}
		got, err := s.GetSession(ctx, "s1")
		if err != nil {
			t.Fatalf("GetSession: %v", err)
		}
		if got.Title != title {
			t.Errorf("title = %q, want %q", got.Title, title)
		}
		if got.Metadata["pinned"] != true {
			t.Errorf("metadata = %v", got.Metadata)
		}
		if !got.UpdatedAt.After(before.UpdatedAt) {
			t.Errorf("updated_at not bumped: %v -> %v", before.UpdatedAt, got.UpdatedAt)
		}
		if err := s.UpdateSession(ctx, "missing", memory.SessionUpdate{Title: &title}); !errors.Is(err, memory.ErrSessionNotFound) {
			t.Errorf("update missing = %v, want ErrSessionNotFound", err)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := newStore(t).Ping(context.Background()); err != nil {
			t.Errorf("Ping: %v", err)
		}
	})
}

func mustSession(t *testing.T, s memory.Store, id string) memory.Session {
	t.Helper()
	sess, _, err := s.EnsureSession(context.Background(), memory.Session{ID: id, Title: memory.DefaultTitle(id)})
	if err != nil {
		t.Fatalf("EnsureSession(%s): %v", id, err)
	}
	return sess
}

func mustAppend(t *testing.T, s memory.Store, sessionID string, role memory.Role, content string) memory.Message {
	t.Helper()
	msg, err := s.AppendMessage(context.Background(), memory.Message{SessionID: sessionID, Role: role, Content: content})
	if err != nil {
		t.Fatalf("AppendMessage(%s): %v", sessionID, err)
	}
	return msg
}
