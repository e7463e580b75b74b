// Package chat implements the conversation channel that exists between two
// matched users: validated, append-only messages plus the last-message
// projection kept on the match record.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/skillswap/swap-app/internal/metrics"
	"github.com/skillswap/swap-app/internal/models"
	"github.com/skillswap/swap-app/internal/store"
)

// Notifier is told about every appended message.
type Notifier interface {
	MessageAppended(ctx context.Context, m *models.MatchRecord, msg *models.MessageRecord) error
}

// Channel appends and lists messages for matches held in a store.
type Channel struct {
	store  store.Store
	notify Notifier
	now    func() time.Time
}

// NewChannel creates a channel. A nil notifier disables notifications.
func NewChannel(st store.Store, n Notifier) *Channel {
	return &Channel{store: st, notify: n, now: time.Now}
}

// Match loads a match, mapping a missing record to models.ErrNotFound.
func (c *Channel) Match(ctx context.Context, matchID string) (*models.MatchRecord, error) {
	m, err := c.store.GetMatch(ctx, matchID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("chat: match %s: %w", matchID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("chat: load match: %w: %w", models.ErrCollaborator, err)
	}
	return m, nil
}

// AppendMessage stores a message from fromUID in the match and moves the
// match's last-message projection forward. If the message was stored but the
// projection could not be updated, the stored message is returned together
// with an error wrapping models.ErrCollaborator.
func (c *Channel) AppendMessage(ctx context.Context, matchID, fromUID, text string) (*models.MessageRecord, error) {
	if err := ValidateMessage(text); err != nil {
		metrics.MessagesTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	m, err := c.Match(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.HasUser(fromUID) {
		metrics.MessagesTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("chat: %s is not in match %s: %w", fromUID, matchID, models.ErrInvalidInput)
	}

	msg := &models.MessageRecord{
		ID:        uuid.NewString(),
		MatchID:   matchID,
		FromUID:   fromUID,
		Text:      text,
		CreatedAt: c.now().UTC(),
	}
	if err := c.store.AppendMessage(ctx, matchID, msg); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("chat: match %s: %w", matchID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("chat: append message: %w: %w", models.ErrCollaborator, err)
	}
	metrics.MessagesTotal.WithLabelValues("sent").Inc()

	if err := c.store.UpdateMatchProjection(ctx, matchID, msg.CreatedAt, msg.Text); err != nil {
		log.Printf("[chat] projection update for %s failed after append: %v", matchID, err)
		return msg, fmt.Errorf("chat: update projection: %w: %w", models.ErrCollaborator, err)
	}

	if c.notify != nil {
		if err := c.notify.MessageAppended(ctx, m, msg); err != nil {
			metrics.NotifyFailures.Inc()
			log.Printf("[chat] notify message %s: %v", msg.ID, err)
		}
	}
	return msg, nil
}

// ListMessages returns every message of the match in ascending order.
func (c *Channel) ListMessages(ctx context.Context, matchID string) ([]*models.MessageRecord, error) {
	if _, err := c.Match(ctx, matchID); err != nil {
		return nil, err
	}
	msgs, err := c.store.ListMessages(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("chat: list messages: %w: %w", models.ErrCollaborator, err)
	}
	return msgs, nil
}
