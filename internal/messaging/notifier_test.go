package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillswap/swap-app/internal/models"
)

type fakePublisher struct {
	mu   sync.Mutex
	sent map[string][]UserEvent
	fail string
}

func (p *fakePublisher) PublishUser(uid string, data []byte) error {
	if uid == p.fail {
		return errors.New("publish failed")
	}
	var ev UserEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sent == nil {
		p.sent = make(map[string][]UserEvent)
	}
	p.sent[uid] = append(p.sent[uid], ev)
	return nil
}

func testMatch() *models.MatchRecord {
	return &models.MatchRecord{
		ID:        "m1",
		Users:     [2]string{"alice", "bob"},
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestNotifier_MatchCreated(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNotifier(pub)

	require.NoError(t, n.MatchCreated(context.Background(), testMatch()))

	require.Len(t, pub.sent["alice"], 1)
	require.Len(t, pub.sent["bob"], 1)
	assert.Equal(t, EventMatchCreated, pub.sent["alice"][0].Type)
	assert.Equal(t, "bob", pub.sent["alice"][0].PartnerUID)
	assert.Equal(t, "alice", pub.sent["bob"][0].PartnerUID)
	assert.Equal(t, "m1", pub.sent["bob"][0].Match.ID)
}

func TestNotifier_MessageAppended(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNotifier(pub)
	msg := &models.MessageRecord{ID: "x", MatchID: "m1", FromUID: "alice", Text: "hola"}

	require.NoError(t, n.MessageAppended(context.Background(), testMatch(), msg))

	for _, uid := range []string{"alice", "bob"} {
		require.Len(t, pub.sent[uid], 1)
		assert.Equal(t, EventMessage, pub.sent[uid][0].Type)
		assert.Equal(t, "hola", pub.sent[uid][0].Message.Text)
	}
}

func TestNotifier_PartialFailure(t *testing.T) {
	pub := &fakePublisher{fail: "alice"}
	n := NewNotifier(pub)

	err := n.MatchCreated(context.Background(), testMatch())
	assert.Error(t, err)
	assert.Len(t, pub.sent["bob"], 1)
}

func TestUserSubject(t *testing.T) {
	assert.Equal(t, "user.abc123", UserSubject("abc123"))
	assert.Equal(t, "user.x612e62", UserSubject("a.b"))
	assert.Equal(t, "user.x2a", UserSubject("*"))
}
