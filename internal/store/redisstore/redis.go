// Package redisstore implements store.Store on Redis. Profiles are JSON
// strings, swipes live in one hash per swiper, matches are hashes indexed by
// a per-user sorted set and messages are append-only lists.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skillswap/swap-app/internal/models"
	"github.com/skillswap/swap-app/internal/store"
)

const (
	profilePrefix     = "profile:"
	profilesKey       = "profiles"
	swipesPrefix      = "swipes:"
	matchPrefix       = "match:"
	userMatchesPrefix = "user_matches:"
	messagesPrefix    = "messages:"
)

// Store is a store.Store backed by a Redis client. Every key is prefixed with
// namespace so several deployments (or tests) can share one Redis.
type Store struct {
	rdb        *redis.Client
	ns         string
	putMatch   *redis.Script
	projection *redis.Script
}

var _ store.Store = (*Store)(nil)

// New wraps an existing client.
func New(rdb *redis.Client, namespace string) *Store {
	return &Store{
		rdb:        rdb,
		ns:         namespace,
		putMatch:   redis.NewScript(putMatchLua),
		projection: redis.NewScript(projectionLua),
	}
}

// Dial connects to addr and verifies the connection with a PING.
func Dial(ctx context.Context, addr, namespace string) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redisstore: connect: %w", err)
	}
	return New(rdb, namespace), nil
}

// Client returns the underlying client so other components can share it.
func (s *Store) Client() *redis.Client {
	return s.rdb
}

func (s *Store) key(parts ...string) string {
	k := s.ns
	for _, p := range parts {
		k += p
	}
	return k
}

func (s *Store) GetProfile(ctx context.Context, uid string) (*models.UserProfile, error) {
	raw, err := s.rdb.Get(ctx, s.key(profilePrefix, uid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get profile: %w", err)
	}
	var p models.UserProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("redisstore: decode profile %s: %w", uid, err)
	}
	return &p, nil
}

func (s *Store) PutProfile(ctx context.Context, p *models.UserProfile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("redisstore: encode profile: %w", err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.key(profilePrefix, p.UID), raw, 0)
	pipe.SAdd(ctx, s.key(profilesKey), p.UID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisstore: put profile: %w", err)
	}
	return nil
}

func (s *Store) ListCandidates(ctx context.Context, excludeUID string) ([]*models.UserProfile, error) {
	uids, err := s.rdb.SMembers(ctx, s.key(profilesKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: list profiles: %w", err)
	}
	sort.Strings(uids)

	keys := make([]string, 0, len(uids))
	for _, uid := range uids {
		if uid != excludeUID {
			keys = append(keys, s.key(profilePrefix, uid))
		}
	}
	if len(keys) == 0 {
		return nil, nil
	}

	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: load profiles: %w", err)
	}
	out := make([]*models.UserProfile, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue // removed between SMEMBERS and MGET
		}
		var p models.UserProfile
		if err := json.Unmarshal([]byte(str), &p); err != nil {
			return nil, fmt.Errorf("redisstore: decode %s: %w", keys[i], err)
		}
		out = append(out, &p)
	}
	return out, nil
}

func (s *Store) PutSwipe(ctx context.Context, sw *models.SwipeRecord) error {
	raw, err := json.Marshal(sw)
	if err != nil {
		return fmt.Errorf("redisstore: encode swipe: %w", err)
	}
	if err := s.rdb.HSet(ctx, s.key(swipesPrefix, sw.FromUID), sw.ToUID, raw).Err(); err != nil {
		return fmt.Errorf("redisstore: put swipe: %w", err)
	}
	return nil
}

func (s *Store) GetSwipe(ctx context.Context, from, to string) (*models.SwipeRecord, error) {
	raw, err := s.rdb.HGet(ctx, s.key(swipesPrefix, from), to).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get swipe: %w", err)
	}
	var sw models.SwipeRecord
	if err := json.Unmarshal(raw, &sw); err != nil {
		return nil, fmt.Errorf("redisstore: decode swipe: %w", err)
	}
	return &sw, nil
}

func (s *Store) SwipedTargets(ctx context.Context, from string) (map[string]struct{}, error) {
	targets, err := s.rdb.HKeys(ctx, s.key(swipesPrefix, from)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: swiped targets: %w", err)
	}
	out := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		out[t] = struct{}{}
	}
	return out, nil
}

func (s *Store) GetMatch(ctx context.Context, id string) (*models.MatchRecord, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key(matchPrefix, id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: get match: %w", err)
	}
	if len(fields) == 0 {
		return nil, store.ErrNotFound
	}
	return decodeMatch(id, fields), nil
}

func (s *Store) PutMatch(ctx context.Context, m *models.MatchRecord) error {
	keys := []string{
		s.key(matchPrefix, m.ID),
		s.key(userMatchesPrefix, m.Users[0]),
		s.key(userMatchesPrefix, m.Users[1]),
	}
	created, err := s.putMatch.Run(ctx, s.rdb, keys,
		m.ID, m.Users[0], m.Users[1],
		m.CreatedAt.UnixMicro(), m.ActivityAt().UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("redisstore: put match: %w", err)
	}
	if created == 0 {
		return store.ErrAlreadyExists
	}
	return nil
}

func (s *Store) ListMatches(ctx context.Context, uid string) ([]*models.MatchRecord, error) {
	ids, err := s.rdb.ZRevRange(ctx, s.key(userMatchesPrefix, uid), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: list matches: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.key(matchPrefix, id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redisstore: load matches: %w", err)
	}

	out := make([]*models.MatchRecord, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		out = append(out, decodeMatch(ids[i], fields))
	}
	store.SortMatches(out)
	return out, nil
}

func (s *Store) AppendMessage(ctx context.Context, matchID string, m *models.MessageRecord) error {
	exists, err := s.rdb.Exists(ctx, s.key(matchPrefix, matchID)).Result()
	if err != nil {
		return fmt.Errorf("redisstore: append message: %w", err)
	}
	if exists == 0 {
		return store.ErrNotFound
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("redisstore: encode message: %w", err)
	}
	if err := s.rdb.RPush(ctx, s.key(messagesPrefix, matchID), raw).Err(); err != nil {
		return fmt.Errorf("redisstore: append message: %w", err)
	}
	return nil
}

func (s *Store) UpdateMatchProjection(ctx context.Context, matchID string, at time.Time, text string) error {
	users, err := s.rdb.HMGet(ctx, s.key(matchPrefix, matchID), "user_a", "user_b").Result()
	if err != nil {
		return fmt.Errorf("redisstore: update projection: %w", err)
	}
	a, _ := users[0].(string)
	b, _ := users[1].(string)
	if a == "" || b == "" {
		return store.ErrNotFound
	}

	keys := []string{
		s.key(matchPrefix, matchID),
		s.key(userMatchesPrefix, a),
		s.key(userMatchesPrefix, b),
	}
	res, err := s.projection.Run(ctx, s.rdb, keys, matchID, at.UnixMicro(), at.UnixMilli(), text).Int()
	if err != nil {
		return fmt.Errorf("redisstore: update projection: %w", err)
	}
	if res < 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListMessages(ctx context.Context, matchID string) ([]*models.MessageRecord, error) {
	raws, err := s.rdb.LRange(ctx, s.key(messagesPrefix, matchID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: list messages: %w", err)
	}
	out := make([]*models.MessageRecord, 0, len(raws))
	for _, raw := range raws {
		var m models.MessageRecord
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("redisstore: decode message: %w", err)
		}
		out = append(out, &m)
	}
	// Appends from different servers can land slightly out of clock order.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func decodeMatch(id string, f map[string]string) *models.MatchRecord {
	m := &models.MatchRecord{
		ID:              id,
		Users:           [2]string{f["user_a"], f["user_b"]},
		CreatedAt:       parseMicro(f["created_at"]),
		LastMessageText: f["last_message_text"],
	}
	if f["last_message_at"] != "" {
		m.LastMessageAt = parseMicro(f["last_message_at"])
	}
	return m
}

func parseMicro(s string) time.Time {
	us, err := strconv.ParseInt(s, 10, 64)
	if err != nil || us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}

// putMatchLua creates the match hash and indexes it for both users, unless
// the hash already exists. Returns 1 when created and 0 otherwise.
const putMatchLua = `
if redis.call('EXISTS', KEYS[1]) == 1 then
    return 0
end

redis.call('HSET', KEYS[1],
    'id', ARGV[1],
    'user_a', ARGV[2],
    'user_b', ARGV[3],
    'created_at', ARGV[4],
    'last_message_at', '',
    'last_message_text', '')
redis.call('ZADD', KEYS[2], ARGV[5], ARGV[1])
redis.call('ZADD', KEYS[3], ARGV[5], ARGV[1])
return 1
`

// projectionLua writes the last-message summary only when it is not older
// than the stored one. Returns -1 if the match is missing, 0 if the update
// was stale and 1 when applied.
const projectionLua = `
if redis.call('EXISTS', KEYS[1]) == 0 then
    return -1
end

local current = redis.call('HGET', KEYS[1], 'last_message_at')
if current and current ~= '' and tonumber(current) > tonumber(ARGV[2]) then
    return 0
end

redis.call('HSET', KEYS[1], 'last_message_at', ARGV[2], 'last_message_text', ARGV[4])
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[1])
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[1])
return 1
`
