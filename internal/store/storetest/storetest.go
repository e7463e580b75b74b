// Package storetest holds behaviour checks shared by every store.Store backend.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillswap/swap-app/internal/matching"
	"github.com/skillswap/swap-app/internal/models"
	"github.com/skillswap/swap-app/internal/store"
)

// Factory returns a fresh, empty store for a single subtest.
type Factory func(t *testing.T) store.Store

// Run exercises the store.Store contract against the backend built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Profiles", func(t *testing.T) { testProfiles(t, newStore(t)) })
	t.Run("Swipes", func(t *testing.T) { testSwipes(t, newStore(t)) })
	t.Run("PutMatchOnce", func(t *testing.T) { testPutMatchOnce(t, newStore(t)) })
	t.Run("PutMatchConcurrent", func(t *testing.T) { testPutMatchConcurrent(t, newStore(t)) })
	t.Run("ListMatchesOrder", func(t *testing.T) { testListMatchesOrder(t, newStore(t)) })
	t.Run("Messages", func(t *testing.T) { testMessages(t, newStore(t)) })
	t.Run("ProjectionNeverRegresses", func(t *testing.T) { testProjection(t, newStore(t)) })
	t.Run("MixedCasePair", func(t *testing.T) { testMixedCasePair(t, newStore(t)) })
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

func ts(sec int) time.Time {
	return time.Date(2025, 3, 1, 12, 0, sec, 0, time.UTC)
}

func match(a, b string, created time.Time) *models.MatchRecord {
	if b < a {
		a, b = b, a
	}
	return &models.MatchRecord{
		ID:        a + "_" + b,
		Users:     [2]string{a, b},
		CreatedAt: created,
	}
}

func testProfiles(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.GetProfile(ctx, "nobody")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	alice := &models.UserProfile{
		UID:          "alice",
		Name:         "Alice",
		SkillsOffer:  []string{"guitar"},
		SkillsWant:   []string{"spanish", "cooking"},
		Availability: models.Availability{"mon": {"18:00-20:00"}},
		Lat:          Float(34.05),
		Lng:          Float(-118.24),
		RadiusMiles:  25,
		CreatedAt:    ts(0),
		UpdatedAt:    ts(0),
	}
	require.NoError(t, s.PutProfile(ctx, alice))
	require.NoError(t, s.PutProfile(ctx, &models.UserProfile{UID: "bob", RadiusMiles: 10, CreatedAt: ts(1), UpdatedAt: ts(1)}))

	got, err := s.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, []string{"spanish", "cooking"}, got.SkillsWant)
	assert.Equal(t, []string{"18:00-20:00"}, got.Availability["mon"])
	require.NotNil(t, got.Lat)
	assert.InDelta(t, 34.05, *got.Lat, 1e-9)
	assert.True(t, got.CreatedAt.Equal(ts(0)))

	bob, err := s.GetProfile(ctx, "bob")
	require.NoError(t, err)
	assert.Nil(t, bob.Lat)
	assert.Nil(t, bob.Lng)

	alice.Name = "Alice B"
	require.NoError(t, s.PutProfile(ctx, alice))
	got, err = s.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice B", got.Name)

	pool, err := s.ListCandidates(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, pool, 1)
	assert.Equal(t, "bob", pool[0].UID)
}

func testSwipes(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.GetSwipe(ctx, "a", "b")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	require.NoError(t, s.PutSwipe(ctx, &models.SwipeRecord{FromUID: "a", ToUID: "b", Direction: models.Pass, CreatedAt: ts(0)}))
	require.NoError(t, s.PutSwipe(ctx, &models.SwipeRecord{FromUID: "a", ToUID: "b", Direction: models.Like, CreatedAt: ts(1)}))
	require.NoError(t, s.PutSwipe(ctx, &models.SwipeRecord{FromUID: "a", ToUID: "c", Direction: models.Pass, CreatedAt: ts(2)}))
	require.NoError(t, s.PutSwipe(ctx, &models.SwipeRecord{FromUID: "b", ToUID: "a", Direction: models.Like, CreatedAt: ts(3)}))

	got, err := s.GetSwipe(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, models.Like, got.Direction)
	assert.True(t, got.CreatedAt.Equal(ts(1)))

	targets, err := s.SwipedTargets(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, targets, 2)
	assert.Contains(t, targets, "b")
	assert.Contains(t, targets, "c")

	targets, err = s.SwipedTargets(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, targets)
}

func testPutMatchOnce(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.GetMatch(ctx, "a_b")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	m := match("a", "b", ts(0))
	require.NoError(t, s.PutMatch(ctx, m))

	dup := match("a", "b", ts(30))
	dup.LastMessageText = "overwrite"
	err = s.PutMatch(ctx, dup)
	assert.True(t, errors.Is(err, store.ErrAlreadyExists))

	got, err := s.GetMatch(ctx, "a_b")
	require.NoError(t, err)
	assert.Equal(t, [2]string{"a", "b"}, got.Users)
	assert.True(t, got.CreatedAt.Equal(ts(0)))
	assert.Empty(t, got.LastMessageText)
}

func testPutMatchConcurrent(t *testing.T, s store.Store) {
	ctx := context.Background()
	const writers = 8

	var wg sync.WaitGroup
	results := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.PutMatch(ctx, match("x", "y", ts(i)))
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range results {
		if err == nil {
			created++
			continue
		}
		assert.True(t, errors.Is(err, store.ErrAlreadyExists), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, created)

	list, err := s.ListMatches(ctx, "x")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func testListMatchesOrder(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.PutMatch(ctx, match("u", "a", ts(0))))
	require.NoError(t, s.PutMatch(ctx, match("u", "b", ts(10))))
	require.NoError(t, s.PutMatch(ctx, match("u", "c", ts(5))))
	require.NoError(t, s.PutMatch(ctx, match("v", "w", ts(20))))

	require.NoError(t, s.UpdateMatchProjection(ctx, "a_u", ts(40), "latest"))

	list, err := s.ListMatches(ctx, "u")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "a_u", list[0].ID)
	assert.Equal(t, "latest", list[0].LastMessageText)
	assert.Equal(t, "b_u", list[1].ID)
	assert.Equal(t, "c_u", list[2].ID)

	list, err = s.ListMatches(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testMessages(t *testing.T, s store.Store) {
	ctx := context.Background()
	m := match("a", "b", ts(0))
	require.NoError(t, s.PutMatch(ctx, m))

	for i := 0; i < 5; i++ {
		msg := &models.MessageRecord{
			ID:        uuid.NewString(),
			MatchID:   m.ID,
			FromUID:   m.Users[i%2],
			Text:      fmt.Sprintf("msg %d", i),
			CreatedAt: ts(i + 1),
		}
		require.NoError(t, s.AppendMessage(ctx, m.ID, msg))
	}

	msgs, err := s.ListMessages(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	for i, msg := range msgs {
		assert.Equal(t, fmt.Sprintf("msg %d", i), msg.Text)
		assert.Equal(t, m.ID, msg.MatchID)
		assert.True(t, msg.CreatedAt.Equal(ts(i+1)))
	}

	msgs, err = s.ListMessages(ctx, "no_such")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func testProjection(t *testing.T, s store.Store) {
	ctx := context.Background()
	m := match("a", "b", ts(0))
	require.NoError(t, s.PutMatch(ctx, m))

	require.NoError(t, s.UpdateMatchProjection(ctx, m.ID, ts(20), "newer"))
	require.NoError(t, s.UpdateMatchProjection(ctx, m.ID, ts(10), "older"))

	got, err := s.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "newer", got.LastMessageText)
	assert.True(t, got.LastMessageAt.Equal(ts(20)))

	err = s.UpdateMatchProjection(ctx, "no_such", ts(30), "x")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

// Uids order bytewise: "Bob" sorts before "alice".
func testMixedCasePair(t *testing.T, s store.Store) {
	ctx := context.Background()

	lo, hi := matching.SortPair("alice", "Bob")
	require.Equal(t, "Bob", lo)
	m := &models.MatchRecord{
		ID:        matching.MatchID("alice", "Bob"),
		Users:     [2]string{lo, hi},
		CreatedAt: ts(0),
	}
	require.NoError(t, s.PutMatch(ctx, m))

	got, err := s.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, [2]string{"Bob", "alice"}, got.Users)

	for _, uid := range []string{"alice", "Bob"} {
		list, err := s.ListMatches(ctx, uid)
		require.NoError(t, err)
		require.Len(t, list, 1, "matches of %s", uid)
		assert.Equal(t, m.ID, list[0].ID)
	}

	msg := &models.MessageRecord{ID: uuid.NewString(), MatchID: m.ID, FromUID: "Bob", Text: "hey", CreatedAt: ts(1)}
	require.NoError(t, s.AppendMessage(ctx, m.ID, msg))
	msgs, err := s.ListMessages(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Bob", msgs[0].FromUID)
}
