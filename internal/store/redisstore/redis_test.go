package redisstore

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/skillswap/swap-app/internal/store"
	"github.com/skillswap/swap-app/internal/store/storetest"
)

// newTestStore returns a Store on a throwaway namespace of a local Redis.
// Tests skip when Redis is not reachable.
func newTestStore(t *testing.T) store.Store {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("redis not available: %v", err)
	}

	ns := "test_" + uuid.NewString()[:8] + ":"
	t.Cleanup(func() {
		iter := client.Scan(ctx, 0, ns+"*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
		client.Close()
	})
	return New(client, ns)
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, newTestStore)
}
