package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillswap/swap-app/internal/chat"
	"github.com/skillswap/swap-app/internal/matching"
	"github.com/skillswap/swap-app/internal/messaging"
	"github.com/skillswap/swap-app/internal/models"
	"github.com/skillswap/swap-app/internal/profile"
	"github.com/skillswap/swap-app/internal/protocol"
	"github.com/skillswap/swap-app/internal/ratelimit"
	"github.com/skillswap/swap-app/internal/store/memory"
)

// captureSender records frames pushed to each connection.
type captureSender struct {
	mu     sync.Mutex
	frames map[string][]map[string]interface{}
}

func (s *captureSender) SendMessage(connID string, data []byte) error {
	var frame map[string]interface{}
	if err := json.Unmarshal(data, &frame); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frames == nil {
		s.frames = make(map[string][]map[string]interface{})
	}
	s.frames[connID] = append(s.frames[connID], frame)
	return nil
}

func (s *captureSender) pushed(connID string) []map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]interface{}(nil), s.frames[connID]...)
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string, ratelimit.Rule) (bool, error) {
	return false, nil
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string, ratelimit.Rule) (bool, error) {
	return true, errors.New("redis down")
}

type fixture struct {
	gw     *Gateway
	hub    *Hub
	sender *captureSender
	store  *memory.Store
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	st := memory.New()
	hub := NewHub()
	sender := &captureSender{}
	hub.SetSender(sender)

	notifier := messaging.NewNotifier(hub)
	engine := matching.NewEngine(st, notifier, matching.Options{DeckLimit: 50})
	channel := chat.NewChannel(st, notifier)
	gw := New(engine, channel, profile.NewService(st), hub, opts)
	return &fixture{gw: gw, hub: hub, sender: sender, store: st}
}

func (f *fixture) do(t *testing.T, connID string, msg interface{}) (string, interface{}) {
	t.Helper()
	return f.gw.Handle(context.Background(), connID, "", msg)
}

func (f *fixture) identify(t *testing.T, connID, uid string) {
	t.Helper()
	typ, reply := f.do(t, connID, protocol.IdentifyMsg{UID: uid})
	require.Equal(t, protocol.TypeIdentified, typ, "identify reply: %+v", reply)
}

func (f *fixture) saveProfile(t *testing.T, connID string, offer, want []string) {
	t.Helper()
	typ, reply := f.do(t, connID, protocol.SaveProfileMsg{Profile: models.UserProfile{
		SkillsOffer: offer,
		SkillsWant:  want,
	}})
	require.Equal(t, protocol.TypeProfile, typ, "save reply: %+v", reply)
}

func errorCode(t *testing.T, typ string, reply interface{}) string {
	t.Helper()
	require.Equal(t, protocol.TypeError, typ, "expected error reply, got %+v", reply)
	return reply.(protocol.ErrorMsg).Code
}

func TestHandle_RequiresIdentify(t *testing.T) {
	f := newFixture(t, Options{})

	typ, reply := f.do(t, "c1", protocol.ListMatchesMsg{})
	assert.Equal(t, protocol.CodeNotIdentified, errorCode(t, typ, reply))

	typ, reply = f.do(t, "c1", protocol.IdentifyMsg{UID: "   "})
	assert.Equal(t, protocol.CodeInvalidInput, errorCode(t, typ, reply))
}

func TestHandle_ProfileScopedToIdentity(t *testing.T) {
	f := newFixture(t, Options{})
	f.identify(t, "c1", "alice")

	typ, reply := f.do(t, "c1", protocol.SaveProfileMsg{Profile: models.UserProfile{
		UID:         "mallory",
		SkillsOffer: []string{" Guitar ", "guitar"},
	}})
	require.Equal(t, protocol.TypeProfile, typ)
	saved := reply.(protocol.ProfileMsg).Profile
	assert.Equal(t, "alice", saved.UID)
	assert.Equal(t, []string{"guitar"}, saved.SkillsOffer)

	_, err := f.store.GetProfile(context.Background(), "mallory")
	assert.Error(t, err, "profile must not be written under another uid")

	typ, reply = f.do(t, "c1", protocol.GetProfileMsg{})
	require.Equal(t, protocol.TypeProfile, typ)
	assert.Equal(t, "alice", reply.(protocol.ProfileMsg).Profile.UID)

	typ, reply = f.do(t, "c1", protocol.GetProfileMsg{UID: "nobody"})
	assert.Equal(t, protocol.CodeNotFound, errorCode(t, typ, reply))
}

func TestHandle_SwipeMatchAndChat(t *testing.T) {
	f := newFixture(t, Options{})
	f.identify(t, "c-alice", "alice")
	f.identify(t, "c-bob", "bob")
	f.saveProfile(t, "c-alice", []string{"guitar"}, []string{"spanish"})
	f.saveProfile(t, "c-bob", []string{"spanish"}, []string{"guitar"})

	typ, reply := f.do(t, "c-alice", protocol.GetDeckMsg{})
	require.Equal(t, protocol.TypeDeck, typ)
	cards := reply.(protocol.DeckMsg).Cards
	require.Len(t, cards, 1)
	assert.Equal(t, "bob", cards[0].Profile.UID)
	assert.Equal(t, 100, cards[0].Score)
	assert.Nil(t, cards[0].DistanceMiles, "no coordinates means unknown distance")

	typ, reply = f.do(t, "c-alice", protocol.SwipeMsg{ToUID: "bob", Direction: "like"})
	require.Equal(t, protocol.TypeSwipeRecorded, typ)
	assert.False(t, reply.(protocol.SwipeRecordedMsg).Matched)

	typ, reply = f.do(t, "c-bob", protocol.SwipeMsg{ToUID: "alice", Direction: "like"})
	require.Equal(t, protocol.TypeSwipeRecorded, typ)
	rec := reply.(protocol.SwipeRecordedMsg)
	require.True(t, rec.Matched)
	require.Equal(t, matching.MatchID("alice", "bob"), rec.MatchID)

	for conn, partner := range map[string]string{"c-alice": "bob", "c-bob": "alice"} {
		pushed := f.sender.pushed(conn)
		require.Len(t, pushed, 1, "match push for %s", conn)
		assert.Equal(t, protocol.TypeMatchCreated, pushed[0]["type"])
		assert.Equal(t, partner, pushed[0]["partner_uid"])
		assert.Equal(t, rec.MatchID, pushed[0]["match_id"])
	}

	typ, reply = f.do(t, "c-alice", protocol.GetDeckMsg{})
	require.Equal(t, protocol.TypeDeck, typ)
	assert.Empty(t, reply.(protocol.DeckMsg).Cards, "swiped candidates leave the deck")

	typ, reply = f.do(t, "c-alice", protocol.SendMessageMsg{MatchID: rec.MatchID, Text: "hola!"})
	require.Equal(t, protocol.TypeMessage, typ)
	sent := reply.(protocol.ServerChatMsg).Message
	assert.Equal(t, "alice", sent.FromUID)

	bobPush := f.sender.pushed("c-bob")
	require.Len(t, bobPush, 2)
	assert.Equal(t, protocol.TypeMessage, bobPush[1]["type"])

	typ, reply = f.do(t, "c-bob", protocol.ListMessagesMsg{MatchID: rec.MatchID})
	require.Equal(t, protocol.TypeMessages, typ)
	msgs := reply.(protocol.MessagesMsg).Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, "hola!", msgs[0].Text)

	typ, reply = f.do(t, "c-bob", protocol.ListMatchesMsg{})
	require.Equal(t, protocol.TypeMatches, typ)
	matches := reply.(protocol.MatchesMsg).Matches
	require.Len(t, matches, 1)
	assert.Equal(t, "alice", matches[0].PartnerUID)
	assert.Equal(t, "hola!", matches[0].LastMessageText)
	require.NotNil(t, matches[0].LastMessageAt)
}

func TestHandle_OutsiderCannotReadOrWrite(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.identify(t, "c-carol", "carol")

	id := matching.MatchID("alice", "bob")
	require.NoError(t, f.store.PutMatch(ctx, &models.MatchRecord{
		ID:        id,
		Users:     [2]string{"alice", "bob"},
		CreatedAt: time.Now().UTC(),
	}))

	typ, reply := f.do(t, "c-carol", protocol.ListMessagesMsg{MatchID: id})
	assert.Equal(t, protocol.CodeNotFound, errorCode(t, typ, reply))

	typ, reply = f.do(t, "c-carol", protocol.SendMessageMsg{MatchID: id, Text: "hi"})
	assert.Equal(t, protocol.CodeInvalidInput, errorCode(t, typ, reply))

	typ, reply = f.do(t, "c-carol", protocol.ListMessagesMsg{MatchID: "missing"})
	assert.Equal(t, protocol.CodeNotFound, errorCode(t, typ, reply))
}

func TestHandle_InvalidSwipes(t *testing.T) {
	f := newFixture(t, Options{})
	f.identify(t, "c1", "alice")

	typ, reply := f.do(t, "c1", protocol.SwipeMsg{ToUID: "alice", Direction: "like"})
	assert.Equal(t, protocol.CodeInvalidInput, errorCode(t, typ, reply))

	typ, reply = f.do(t, "c1", protocol.SwipeMsg{ToUID: "bob", Direction: "superlike"})
	assert.Equal(t, protocol.CodeInvalidInput, errorCode(t, typ, reply))

	typ, reply = f.do(t, "c1", protocol.GetDeckMsg{Limit: -1})
	assert.Equal(t, protocol.CodeInvalidInput, errorCode(t, typ, reply))

	typ, reply = f.do(t, "c1", protocol.GetDeckMsg{})
	assert.Equal(t, protocol.CodeNotFound, errorCode(t, typ, reply), "deck without a profile")
}

func TestHandle_RateLimited(t *testing.T) {
	f := newFixture(t, Options{Limiter: denyLimiter{}})
	f.identify(t, "c1", "alice")

	typ, reply := f.do(t, "c1", protocol.SwipeMsg{ToUID: "bob", Direction: "like"})
	require.Equal(t, protocol.TypeRateLimited, typ)
	rl := reply.(protocol.RateLimitedMsg)
	assert.Equal(t, "swipe", rl.Action)
	assert.Equal(t, 60, rl.RetryAfter)

	typ, _ = f.do(t, "c1", protocol.SendMessageMsg{MatchID: "m", Text: "x"})
	assert.Equal(t, protocol.TypeRateLimited, typ)

	typ, _ = f.do(t, "c1", protocol.GetDeckMsg{})
	assert.Equal(t, protocol.TypeRateLimited, typ)
}

func TestHandle_LimiterErrorFailsOpen(t *testing.T) {
	f := newFixture(t, Options{Limiter: brokenLimiter{}})
	f.identify(t, "c1", "alice")

	typ, _ := f.do(t, "c1", protocol.SwipeMsg{ToUID: "bob", Direction: "pass"})
	assert.Equal(t, protocol.TypeSwipeRecorded, typ)
}

func TestMapError(t *testing.T) {
	typ, reply := mapError("op", errors.New("boom"))
	assert.Equal(t, protocol.CodeUnavailable, errorCode(t, typ, reply))
	assert.NotContains(t, reply.(protocol.ErrorMsg).Message, "boom")
}
