package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/skillswap/swap-app/internal/models"
	"github.com/skillswap/swap-app/internal/store"
	"github.com/skillswap/swap-app/internal/store/memory"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []*models.MessageRecord
}

func (n *recordingNotifier) MessageAppended(_ context.Context, _ *models.MatchRecord, msg *models.MessageRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return nil
}

// projectionFailStore fails every projection update.
type projectionFailStore struct {
	store.Store
}

func (projectionFailStore) UpdateMatchProjection(context.Context, string, time.Time, string) error {
	return errors.New("write timeout")
}

// setupChannel returns a channel over a memory store holding one alice/bob match.
func setupChannel(t *testing.T, st store.Store) (*Channel, *recordingNotifier) {
	t.Helper()
	m := &models.MatchRecord{
		ID:        "m1",
		Users:     [2]string{"alice", "bob"},
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := st.PutMatch(context.Background(), m); err != nil {
		t.Fatalf("put match: %v", err)
	}

	n := &recordingNotifier{}
	c := NewChannel(st, n)
	clock := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return c, n
}

func TestAppendMessage_UpdatesProjection(t *testing.T) {
	st := memory.New()
	c, n := setupChannel(t, st)
	ctx := context.Background()

	msg, err := c.AppendMessage(ctx, "m1", "alice", "hola")
	if err != nil {
		t.Fatalf("AppendMessage() error: %v", err)
	}
	if msg.ID == "" || msg.MatchID != "m1" || msg.FromUID != "alice" {
		t.Errorf("unexpected message: %+v", msg)
	}

	m, err := st.GetMatch(ctx, "m1")
	if err != nil {
		t.Fatalf("GetMatch() error: %v", err)
	}
	if m.LastMessageText != "hola" {
		t.Errorf("expected projection text 'hola', got %q", m.LastMessageText)
	}
	if !m.LastMessageAt.Equal(msg.CreatedAt) {
		t.Errorf("expected projection time %v, got %v", msg.CreatedAt, m.LastMessageAt)
	}
	if len(n.msgs) != 1 {
		t.Errorf("expected 1 notification, got %d", len(n.msgs))
	}
}

func TestAppendMessage_Ordering(t *testing.T) {
	c, _ := setupChannel(t, memory.New())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		from := "alice"
		if i%2 == 1 {
			from = "bob"
		}
		if _, err := c.AppendMessage(ctx, "m1", from, fmt.Sprintf("msg-%d", i)); err != nil {
			t.Fatalf("AppendMessage(%d) error: %v", i, err)
		}
	}

	msgs, err := c.ListMessages(ctx, "m1")
	if err != nil {
		t.Fatalf("ListMessages() error: %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(msgs))
	}
	for i, msg := range msgs {
		if want := fmt.Sprintf("msg-%d", i); msg.Text != want {
			t.Errorf("message %d: expected %q, got %q", i, want, msg.Text)
		}
		if i > 0 && msg.CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Errorf("message %d is older than message %d", i, i-1)
		}
	}
}

func TestAppendMessage_Rejections(t *testing.T) {
	c, n := setupChannel(t, memory.New())
	ctx := context.Background()

	tests := []struct {
		name    string
		matchID string
		from    string
		text    string
		want    error
	}{
		{"whitespace text", "m1", "alice", "   ", models.ErrInvalidInput},
		{"non participant", "m1", "mallory", "hi", models.ErrInvalidInput},
		{"missing match", "nope", "alice", "hi", models.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := c.AppendMessage(ctx, tt.matchID, tt.from, tt.text)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if msg != nil {
				t.Errorf("expected no message, got %+v", msg)
			}
		})
	}

	msgs, err := c.ListMessages(ctx, "m1")
	if err != nil {
		t.Fatalf("ListMessages() error: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected no stored messages, got %d", len(msgs))
	}
	if len(n.msgs) != 0 {
		t.Errorf("expected no notifications, got %d", len(n.msgs))
	}
}

func TestAppendMessage_ProjectionFailure(t *testing.T) {
	st := projectionFailStore{Store: memory.New()}
	c, n := setupChannel(t, st)
	ctx := context.Background()

	msg, err := c.AppendMessage(ctx, "m1", "bob", "are you free tuesday?")
	if !errors.Is(err, models.ErrCollaborator) {
		t.Fatalf("expected ErrCollaborator, got %v", err)
	}
	if msg == nil {
		t.Fatal("expected the stored message to be returned")
	}

	msgs, _ := c.ListMessages(ctx, "m1")
	if len(msgs) != 1 || msgs[0].ID != msg.ID {
		t.Errorf("expected the message to be persisted, got %+v", msgs)
	}
	if len(n.msgs) != 0 {
		t.Errorf("expected no notification on projection failure, got %d", len(n.msgs))
	}
}

func TestListMessages_MissingMatch(t *testing.T) {
	c, _ := setupChannel(t, memory.New())
	_, err := c.ListMessages(context.Background(), "ghost")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListMessages_Empty(t *testing.T) {
	c, _ := setupChannel(t, memory.New())
	msgs, err := c.ListMessages(context.Background(), "m1")
	if err != nil {
		t.Fatalf("ListMessages() error: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected empty conversation, got %d messages", len(msgs))
	}
}
