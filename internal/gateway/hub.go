package gateway

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/skillswap/swap-app/internal/messaging"
	"github.com/skillswap/swap-app/internal/protocol"
)

// Sender writes a frame to a live connection. *ws.Server implements it.
type Sender interface {
	SendMessage(connID string, data []byte) error
}

// Hub tracks which user each local connection identified as and turns user
// events into client frames. Without NATS it is also the messaging.Publisher
// for the notifier, delivering events to this node's connections directly.
type Hub struct {
	mu     sync.RWMutex
	sender Sender
	uids   map[string]string              // connID -> uid
	conns  map[string]map[string]struct{} // uid -> connIDs
}

var _ messaging.Publisher = (*Hub)(nil)

// NewHub creates an empty hub. Frames are dropped until SetSender is called.
func NewHub() *Hub {
	return &Hub{
		uids:  make(map[string]string),
		conns: make(map[string]map[string]struct{}),
	}
}

// SetSender sets where frames are written.
func (h *Hub) SetSender(s Sender) {
	h.mu.Lock()
	h.sender = s
	h.mu.Unlock()
}

// Bind records that connID acts as uid, replacing any earlier identity.
func (h *Hub) Bind(connID, uid string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unbindLocked(connID)
	h.uids[connID] = uid
	set := h.conns[uid]
	if set == nil {
		set = make(map[string]struct{})
		h.conns[uid] = set
	}
	set[connID] = struct{}{}
}

// Unbind forgets connID and returns the uid it was bound to.
func (h *Hub) Unbind(connID string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unbindLocked(connID)
}

func (h *Hub) unbindLocked(connID string) string {
	uid, ok := h.uids[connID]
	if !ok {
		return ""
	}
	delete(h.uids, connID)
	if set := h.conns[uid]; set != nil {
		delete(set, connID)
		if len(set) == 0 {
			delete(h.conns, uid)
		}
	}
	return uid
}

// UID returns the user connID identified as, or "".
func (h *Hub) UID(connID string) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.uids[connID]
}

// Connections returns the local connections bound to uid.
func (h *Hub) Connections(uid string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.conns[uid]))
	for id := range h.conns[uid] {
		out = append(out, id)
	}
	return out
}

// PublishUser delivers an encoded messaging.UserEvent to every local
// connection of uid. A user with no local connection is not an error.
func (h *Hub) PublishUser(uid string, data []byte) error {
	var firstErr error
	for _, connID := range h.Connections(uid) {
		if err := h.Deliver(connID, data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Deliver converts an encoded messaging.UserEvent to a client frame and
// writes it to connID.
func (h *Hub) Deliver(connID string, data []byte) error {
	var ev messaging.UserEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("gateway: decode user event: %w", err)
	}

	frame, err := eventFrame(&ev)
	if err != nil {
		return err
	}
	if frame == nil {
		log.Printf("[gateway] dropping unknown event type=%q conn=%s", ev.Type, connID)
		return nil
	}

	h.mu.RLock()
	sender := h.sender
	h.mu.RUnlock()
	if sender == nil {
		return nil
	}
	if err := sender.SendMessage(connID, frame); err != nil {
		return fmt.Errorf("gateway: push %s to %s: %w", ev.Type, connID, err)
	}
	return nil
}

func eventFrame(ev *messaging.UserEvent) ([]byte, error) {
	switch ev.Type {
	case messaging.EventMatchCreated:
		if ev.Match == nil {
			return nil, fmt.Errorf("gateway: match_created event without match")
		}
		return protocol.NewServerMessage(protocol.TypeMatchCreated, protocol.MatchCreatedMsg{
			MatchID:    ev.Match.ID,
			PartnerUID: ev.PartnerUID,
			CreatedAt:  ev.Match.CreatedAt,
		})
	case messaging.EventMessage:
		if ev.Message == nil {
			return nil, fmt.Errorf("gateway: message event without message")
		}
		return protocol.NewServerMessage(protocol.TypeMessage, protocol.ServerChatMsg{
			Message: ev.Message,
		})
	}
	return nil, nil
}
