// Package gateway maps client frames onto the matching engine, the chat
// channel and the profile service. Every request acts on behalf of the user
// the connection identified as.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/skillswap/swap-app/internal/chat"
	"github.com/skillswap/swap-app/internal/matching"
	"github.com/skillswap/swap-app/internal/metrics"
	"github.com/skillswap/swap-app/internal/models"
	"github.com/skillswap/swap-app/internal/profile"
	"github.com/skillswap/swap-app/internal/protocol"
	"github.com/skillswap/swap-app/internal/ratelimit"
	"github.com/skillswap/swap-app/internal/session"
	"github.com/skillswap/swap-app/internal/ws"
)

// Subscriber routes a user's events to one connection. *messaging.NATSClient
// implements it.
type Subscriber interface {
	SubscribeUser(uid, connID string, handler func(data []byte)) error
	UnsubscribeUser(connID string) error
}

// Options holds the gateway's optional collaborators.
type Options struct {
	// Limiter throttles swipes, messages and deck requests. Nil disables it.
	Limiter ratelimit.Allower

	// Sessions records identities in the shared session store.
	Sessions *session.Store

	// Subscriber delivers events published on other nodes. When nil, events
	// are delivered by the hub to this node's connections only.
	Subscriber Subscriber

	// RequestTimeout bounds each request. Defaults to 5s.
	RequestTimeout time.Duration
}

// Gateway serves identified client requests.
type Gateway struct {
	engine   *matching.Engine
	chat     *chat.Channel
	profiles *profile.Service
	hub      *Hub
	opts     Options
}

// New creates a gateway.
func New(engine *matching.Engine, channel *chat.Channel, profiles *profile.Service, hub *Hub, opts Options) *Gateway {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}
	return &Gateway{
		engine:   engine,
		chat:     channel,
		profiles: profiles,
		hub:      hub,
		opts:     opts,
	}
}

var requestTypes = []string{
	protocol.TypeIdentify,
	protocol.TypeSaveProfile,
	protocol.TypeGetProfile,
	protocol.TypeGetDeck,
	protocol.TypeSwipe,
	protocol.TypeSendMessage,
	protocol.TypeListMessages,
	protocol.TypeListMatches,
}

// Register installs a handler for every request type on d.
func (g *Gateway) Register(d *ws.MessageDispatcher) {
	for _, t := range requestTypes {
		msgType := t
		d.Register(msgType, func(conn *ws.Connection, msg interface{}) {
			g.serve(conn, msgType, msg)
		})
	}
}

func (g *Gateway) serve(conn *ws.Connection, msgType string, msg interface{}) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), g.opts.RequestTimeout)
	defer cancel()

	replyType, payload := g.Handle(ctx, conn.ID, msgType, msg)
	metrics.RequestLatency.WithLabelValues(msgType).Observe(time.Since(start).Seconds())

	data, err := protocol.NewServerMessage(replyType, payload)
	if err != nil {
		log.Printf("[gateway] build %s reply conn=%s: %v", replyType, conn.ID, err)
		return
	}
	if err := conn.WriteMessage(data); err != nil {
		log.Printf("[gateway] write %s reply conn=%s: %v", replyType, conn.ID, err)
	}

	if g.opts.Sessions != nil {
		if err := g.opts.Sessions.Touch(ctx, conn.ID); err != nil {
			log.Printf("[gateway] touch session %s: %v", conn.ID, err)
		}
	}
}

// Handle runs one request from connID and returns the reply frame type and
// payload.
func (g *Gateway) Handle(ctx context.Context, connID, msgType string, msg interface{}) (string, interface{}) {
	if m, ok := msg.(protocol.IdentifyMsg); ok {
		return g.identify(ctx, connID, m)
	}

	uid := g.hub.UID(connID)
	if uid == "" {
		return errorReply(protocol.CodeNotIdentified, "identify first")
	}

	switch m := msg.(type) {
	case protocol.SaveProfileMsg:
		return g.saveProfile(ctx, uid, m)
	case protocol.GetProfileMsg:
		return g.getProfile(ctx, uid, m)
	case protocol.GetDeckMsg:
		return g.getDeck(ctx, uid, m)
	case protocol.SwipeMsg:
		return g.swipe(ctx, uid, m)
	case protocol.SendMessageMsg:
		return g.sendMessage(ctx, uid, m)
	case protocol.ListMessagesMsg:
		return g.listMessages(ctx, uid, m)
	case protocol.ListMatchesMsg:
		return g.listMatches(ctx, uid)
	}
	return errorReply(protocol.CodeUnsupportedType, fmt.Sprintf("unsupported message type %q", msgType))
}

// Disconnect releases everything held for connID.
func (g *Gateway) Disconnect(connID string) {
	uid := g.hub.Unbind(connID)
	if uid == "" {
		return
	}
	if g.opts.Subscriber != nil {
		if err := g.opts.Subscriber.UnsubscribeUser(connID); err != nil {
			log.Printf("[gateway] unsubscribe conn=%s: %v", connID, err)
		}
	}
	log.Printf("[gateway] conn=%s uid=%s disconnected", connID, uid)
}

func (g *Gateway) identify(ctx context.Context, connID string, m protocol.IdentifyMsg) (string, interface{}) {
	uid := strings.TrimSpace(m.UID)
	if uid == "" {
		return errorReply(protocol.CodeInvalidInput, "uid is required")
	}

	g.hub.Bind(connID, uid)

	if g.opts.Subscriber != nil {
		err := g.opts.Subscriber.SubscribeUser(uid, connID, func(data []byte) {
			if err := g.hub.Deliver(connID, data); err != nil {
				log.Printf("[gateway] deliver to conn=%s: %v", connID, err)
			}
		})
		if err != nil {
			g.hub.Unbind(connID)
			log.Printf("[gateway] subscribe uid=%s conn=%s: %v", uid, connID, err)
			return errorReply(protocol.CodeUnavailable, "notifications unavailable")
		}
	}

	if g.opts.Sessions != nil {
		if err := g.opts.Sessions.Bind(ctx, connID, uid); err != nil {
			log.Printf("[gateway] bind session %s: %v", connID, err)
		}
	}

	log.Printf("[gateway] conn=%s identified as uid=%s", connID, uid)
	return protocol.TypeIdentified, protocol.IdentifiedMsg{UID: uid}
}

func (g *Gateway) saveProfile(ctx context.Context, uid string, m protocol.SaveProfileMsg) (string, interface{}) {
	p := m.Profile
	p.UID = uid
	saved, err := g.profiles.Save(ctx, &p)
	if err != nil {
		return mapError("save_profile", err)
	}
	return protocol.TypeProfile, protocol.ProfileMsg{Profile: saved}
}

func (g *Gateway) getProfile(ctx context.Context, uid string, m protocol.GetProfileMsg) (string, interface{}) {
	target := strings.TrimSpace(m.UID)
	if target == "" {
		target = uid
	}
	p, err := g.profiles.Get(ctx, target)
	if err != nil {
		return mapError("get_profile", err)
	}
	return protocol.TypeProfile, protocol.ProfileMsg{Profile: p}
}

func (g *Gateway) getDeck(ctx context.Context, uid string, m protocol.GetDeckMsg) (string, interface{}) {
	if m.Limit < 0 {
		return errorReply(protocol.CodeInvalidInput, "limit must not be negative")
	}
	if limited, reply := g.throttle(ctx, uid, "get_deck", ratelimit.RuleDeck); limited {
		return protocol.TypeRateLimited, reply
	}

	deck, err := g.engine.Deck(ctx, uid, m.Limit)
	if err != nil {
		return mapError("get_deck", err)
	}

	cards := make([]protocol.DeckCard, 0, len(deck))
	for _, c := range deck {
		card := protocol.DeckCard{
			Profile:      c.Profile,
			Score:        c.Score,
			SharedSkills: c.SharedSkills,
		}
		if c.DistanceKnown {
			d := c.DistanceMi
			card.DistanceMiles = &d
		}
		cards = append(cards, card)
	}
	return protocol.TypeDeck, protocol.DeckMsg{Cards: cards}
}

func (g *Gateway) swipe(ctx context.Context, uid string, m protocol.SwipeMsg) (string, interface{}) {
	if limited, reply := g.throttle(ctx, uid, "swipe", ratelimit.RuleSwipe); limited {
		return protocol.TypeRateLimited, reply
	}

	to := strings.TrimSpace(m.ToUID)
	res, err := g.engine.Swipe(ctx, uid, to, models.Direction(m.Direction))
	if err != nil {
		return mapError("swipe", err)
	}

	reply := protocol.SwipeRecordedMsg{
		ToUID:     to,
		Direction: string(res.Direction),
		Matched:   res.Matched,
	}
	if res.Match != nil {
		reply.MatchID = res.Match.ID
	}
	return protocol.TypeSwipeRecorded, reply
}

func (g *Gateway) sendMessage(ctx context.Context, uid string, m protocol.SendMessageMsg) (string, interface{}) {
	if limited, reply := g.throttle(ctx, uid, "send_message", ratelimit.RuleMessage); limited {
		return protocol.TypeRateLimited, reply
	}

	msg, err := g.chat.AppendMessage(ctx, m.MatchID, uid, m.Text)
	if err != nil && msg == nil {
		return mapError("send_message", err)
	}
	if err != nil {
		// Stored, but the match summary lags behind; the client still gets
		// its message.
		log.Printf("[gateway] send_message uid=%s match=%s: %v", uid, m.MatchID, err)
	}
	return protocol.TypeMessage, protocol.ServerChatMsg{Message: msg}
}

func (g *Gateway) listMessages(ctx context.Context, uid string, m protocol.ListMessagesMsg) (string, interface{}) {
	match, err := g.chat.Match(ctx, m.MatchID)
	if err != nil {
		return mapError("list_messages", err)
	}
	if !match.HasUser(uid) {
		return errorReply(protocol.CodeNotFound, "match not found")
	}

	msgs, err := g.chat.ListMessages(ctx, m.MatchID)
	if err != nil {
		return mapError("list_messages", err)
	}
	if msgs == nil {
		msgs = []*models.MessageRecord{}
	}
	return protocol.TypeMessages, protocol.MessagesMsg{MatchID: m.MatchID, Messages: msgs}
}

func (g *Gateway) listMatches(ctx context.Context, uid string) (string, interface{}) {
	ms, err := g.engine.ListMatches(ctx, uid)
	if err != nil {
		return mapError("list_matches", err)
	}

	out := make([]protocol.MatchSummary, 0, len(ms))
	for _, m := range ms {
		s := protocol.MatchSummary{
			MatchID:         m.ID,
			PartnerUID:      m.Partner(uid),
			CreatedAt:       m.CreatedAt,
			LastMessageText: m.LastMessageText,
		}
		if !m.LastMessageAt.IsZero() {
			at := m.LastMessageAt
			s.LastMessageAt = &at
		}
		out = append(out, s)
	}
	return protocol.TypeMatches, protocol.MatchesMsg{Matches: out}
}

// throttle reports whether uid exceeded rule. Limiter errors fail open.
func (g *Gateway) throttle(ctx context.Context, uid, action string, rule ratelimit.Rule) (bool, protocol.RateLimitedMsg) {
	if g.opts.Limiter == nil {
		return false, protocol.RateLimitedMsg{}
	}
	ok, err := g.opts.Limiter.Allow(ctx, uid, rule)
	if err != nil {
		log.Printf("[gateway] rate limiter %s uid=%s: %v", action, uid, err)
	}
	if ok {
		return false, protocol.RateLimitedMsg{}
	}
	return true, protocol.RateLimitedMsg{
		Action:     action,
		RetryAfter: int(rule.Window / time.Second),
	}
}

func errorReply(code, message string) (string, interface{}) {
	return protocol.TypeError, protocol.ErrorMsg{Code: code, Message: message}
}

// mapError turns a core error into an error frame. Backend details are
// logged, not sent.
func mapError(op string, err error) (string, interface{}) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return errorReply(protocol.CodeInvalidInput, err.Error())
	case errors.Is(err, models.ErrNotFound):
		return errorReply(protocol.CodeNotFound, err.Error())
	}
	log.Printf("[gateway] %s: %v", op, err)
	return errorReply(protocol.CodeUnavailable, "temporarily unavailable, try again")
}
