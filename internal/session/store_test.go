package session

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// newTestStore connects to a local Redis and removes test keys on cleanup.
// Tests are skipped when Redis is unavailable.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() {
		for _, pattern := range []string{SessionPrefix + "test_*", UserSessionsPrefix + "test_*"} {
			iter := client.Scan(ctx, 0, pattern, 100).Iterator()
			for iter.Next(ctx) {
				client.Del(ctx, iter.Val())
			}
		}
		client.Close()
	})
	return NewStore(client, "swap-test")
}

func testID(prefix string) string {
	return "test_" + prefix + "_" + uuid.NewString()[:8]
}

func TestCreateGetDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sid := testID("sess")

	if err := s.Create(ctx, sid); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	sess, err := s.Get(ctx, sid)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if sess == nil || sess.ID != sid || sess.Server != "swap-test" || sess.UID != "" {
		t.Fatalf("unexpected session: %+v", sess)
	}

	if err := s.Delete(ctx, sid); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	sess, err = s.Get(ctx, sid)
	if err != nil {
		t.Fatalf("Get() after delete error: %v", err)
	}
	if sess != nil {
		t.Errorf("expected nil after delete, got %+v", sess)
	}
}

func TestBindAndOnline(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sid := testID("sess")
	uid := testID("user")

	if err := s.Create(ctx, sid); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := s.Bind(ctx, sid, uid); err != nil {
		t.Fatalf("Bind() error: %v", err)
	}

	online, err := s.Online(ctx, uid)
	if err != nil {
		t.Fatalf("Online() error: %v", err)
	}
	if !online {
		t.Error("expected user to be online after bind")
	}

	if err := s.Delete(ctx, sid); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	online, err = s.Online(ctx, uid)
	if err != nil {
		t.Fatalf("Online() error: %v", err)
	}
	if online {
		t.Error("expected user to be offline after delete")
	}
}

func TestRebindMovesSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sid := testID("sess")
	first, second := testID("user"), testID("user")

	if err := s.Create(ctx, sid); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := s.Bind(ctx, sid, first); err != nil {
		t.Fatalf("Bind(first) error: %v", err)
	}
	if err := s.Bind(ctx, sid, second); err != nil {
		t.Fatalf("Bind(second) error: %v", err)
	}

	if online, _ := s.Online(ctx, first); online {
		t.Error("expected first user to be offline after rebind")
	}
	if online, _ := s.Online(ctx, second); !online {
		t.Error("expected second user to be online")
	}
}
