package messaging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient connects to a local NATS server or skips the test.
func newTestClient(t *testing.T) *NATSClient {
	t.Helper()
	cfg := DefaultNATSConfig()
	cfg.MaxReconnects = 0
	c, err := NewNATSClient(cfg)
	if err != nil {
		t.Skipf("nats not available: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestNATSClient_UserRoundTrip(t *testing.T) {
	c := newTestClient(t)

	got := make(chan []byte, 1)
	require.NoError(t, c.SubscribeUser("test_alice", "conn-1", func(data []byte) {
		got <- data
	}))
	require.NoError(t, c.conn.Flush())

	require.NoError(t, c.PublishUser("test_alice", []byte(`{"type":"message"}`)))

	select {
	case data := <-got:
		assert.JSONEq(t, `{"type":"message"}`, string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for user event")
	}

	require.NoError(t, c.UnsubscribeUser("conn-1"))
	assert.Error(t, c.UnsubscribeUser("conn-1"))
}
