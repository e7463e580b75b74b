package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/skillswap/swap-app/internal/models"
)

// Event types carried on user.<uid> subjects.
const (
	EventMatchCreated = "match_created"
	EventMessage      = "message"
)

// UserEvent is the payload published to a user's notification subject.
type UserEvent struct {
	Type       string                `json:"type"`
	PartnerUID string                `json:"partner_uid,omitempty"`
	Match      *models.MatchRecord   `json:"match,omitempty"`
	Message    *models.MessageRecord `json:"message,omitempty"`
}

// Publisher is the subset of NATSClient the notifier needs.
type Publisher interface {
	PublishUser(uid string, data []byte) error
}

// Notifier fans match and message changes out to both participants.
type Notifier struct {
	pub Publisher
}

// NewNotifier returns a notifier publishing through pub.
func NewNotifier(pub Publisher) *Notifier {
	return &Notifier{pub: pub}
}

// MatchCreated tells each participant about the new match and their partner.
func (n *Notifier) MatchCreated(_ context.Context, m *models.MatchRecord) error {
	var errs []error
	for _, uid := range m.Users {
		ev := UserEvent{Type: EventMatchCreated, PartnerUID: m.Partner(uid), Match: m}
		if err := n.publish(uid, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MessageAppended pushes a new chat message to both participants, including
// the sender so their other connections stay in sync.
func (n *Notifier) MessageAppended(_ context.Context, m *models.MatchRecord, msg *models.MessageRecord) error {
	var errs []error
	for _, uid := range m.Users {
		ev := UserEvent{Type: EventMessage, PartnerUID: m.Partner(uid), Message: msg}
		if err := n.publish(uid, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *Notifier) publish(uid string, ev UserEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("messaging: marshal %s event: %w", ev.Type, err)
	}
	if err := n.pub.PublishUser(uid, data); err != nil {
		return fmt.Errorf("messaging: publish %s to %s: %w", ev.Type, uid, err)
	}
	return nil
}
