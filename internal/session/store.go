package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// SessionPrefix is the Redis key prefix for all session hashes.
	SessionPrefix = "session:"

	// UserSessionsPrefix prefixes the set of session IDs bound to a user.
	UserSessionsPrefix = "user_sessions:"

	// SessionTTL is the time-to-live for session keys in Redis.
	SessionTTL = 1 * time.Hour
)

// Session represents a connection's state stored in Redis.
type Session struct {
	ID         string `redis:"id"`
	UID        string `redis:"uid"`         // empty until identify
	Server     string `redis:"server"`      // which gateway instance
	CreatedAt  int64  `redis:"created_at"`  // unix timestamp
	LastActive int64  `redis:"last_active"` // unix timestamp
}

// Store manages session state in Redis.
type Store struct {
	client     *redis.Client
	serverName string // identifier for this gateway instance
}

// NewStore wraps an existing client; the caller owns its lifecycle.
func NewStore(client *redis.Client, serverName string) *Store {
	return &Store{client: client, serverName: serverName}
}

// Create stores a new anonymous session with a 1h TTL.
func (s *Store) Create(ctx context.Context, sessionID string) error {
	key := SessionPrefix + sessionID
	now := time.Now().Unix()

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"id":          sessionID,
		"uid":         "",
		"server":      s.serverName,
		"created_at":  now,
		"last_active": now,
	})
	pipe.Expire(ctx, key, SessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session: create %s: %w", sessionID, err)
	}
	return nil
}

// Get retrieves a session from Redis. Returns nil if not found.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	key := SessionPrefix + sessionID
	var session Session
	if err := s.client.HGetAll(ctx, key).Scan(&session); err != nil {
		return nil, fmt.Errorf("session: get %s: %w", sessionID, err)
	}
	if session.ID == "" {
		return nil, nil // not found
	}
	return &session, nil
}

// Bind records that uid identified on sessionID. A previous binding of the
// same session to another user is removed.
func (s *Store) Bind(ctx context.Context, sessionID, uid string) error {
	key := SessionPrefix + sessionID
	prev, err := s.client.HGet(ctx, key, "uid").Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("session: bind %s: %w", sessionID, err)
	}

	pipe := s.client.TxPipeline()
	if prev != "" && prev != uid {
		pipe.SRem(ctx, UserSessionsPrefix+prev, sessionID)
	}
	pipe.HSet(ctx, key, "uid", uid, "last_active", time.Now().Unix())
	pipe.Expire(ctx, key, SessionTTL)
	pipe.SAdd(ctx, UserSessionsPrefix+uid, sessionID)
	pipe.Expire(ctx, UserSessionsPrefix+uid, SessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session: bind %s: %w", sessionID, err)
	}
	return nil
}

// Online reports whether uid has at least one live session on any server.
// Session IDs whose hash has expired are pruned from the user's set.
func (s *Store) Online(ctx context.Context, uid string) (bool, error) {
	ids, err := s.client.SMembers(ctx, UserSessionsPrefix+uid).Result()
	if err != nil {
		return false, fmt.Errorf("session: online %s: %w", uid, err)
	}
	online := false
	for _, id := range ids {
		n, err := s.client.Exists(ctx, SessionPrefix+id).Result()
		if err != nil {
			return false, fmt.Errorf("session: online %s: %w", uid, err)
		}
		if n == 0 {
			s.client.SRem(ctx, UserSessionsPrefix+uid, id)
			continue
		}
		online = true
	}
	return online, nil
}

// Touch refreshes the session's last activity time and TTL.
func (s *Store) Touch(ctx context.Context, sessionID string) error {
	key := SessionPrefix + sessionID
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, "last_active", time.Now().Unix())
	pipe.Expire(ctx, key, SessionTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Delete removes a session and its user binding from Redis.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	key := SessionPrefix + sessionID
	uid, err := s.client.HGet(ctx, key, "uid").Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("session: delete %s: %w", sessionID, err)
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, key)
	if uid != "" {
		pipe.SRem(ctx, UserSessionsPrefix+uid, sessionID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client for use by other packages.
func (s *Store) Client() *redis.Client {
	return s.client
}
