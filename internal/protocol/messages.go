// Package protocol defines the WebSocket message types and structures used for
// communication between the client and server. All messages are serialized as
// JSON and follow a consistent envelope format with a type discriminator.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/skillswap/swap-app/internal/models"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// Client -> Server message types.
const (
	TypeIdentify     = "identify"
	TypeSaveProfile  = "save_profile"
	TypeGetProfile   = "get_profile"
	TypeGetDeck      = "get_deck"
	TypeSwipe        = "swipe"
	TypeSendMessage  = "send_message"
	TypeListMessages = "list_messages"
	TypeListMatches  = "list_matches"
	TypePing         = "ping"
)

// Server -> Client message types.
const (
	TypeSessionCreated = "session_created"
	TypeIdentified     = "identified"
	TypeProfile        = "profile"
	TypeDeck           = "deck"
	TypeSwipeRecorded  = "swipe_recorded"
	TypeMatchCreated   = "match_created"
	TypeMessage        = "message"
	TypeMessages       = "messages"
	TypeMatches        = "matches"
	TypeRateLimited    = "rate_limited"
	TypeError          = "error"
	TypePong           = "pong"
)

// Error codes carried by ErrorMsg.
const (
	CodeParseError      = "parse_error"
	CodeUnsupportedType = "unsupported_type"
	CodeNotIdentified   = "not_identified"
	CodeInvalidInput    = "invalid_input"
	CodeNotFound        = "not_found"
	CodeUnavailable     = "unavailable"
)

// ErrUnknownType is returned by ParseClientMessage for frame types the server
// does not accept.
var ErrUnknownType = errors.New("protocol: unknown client message type")

// ---------------------------------------------------------------------------
// Envelope: first-pass decode that extracts the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. It captures the
// full raw bytes and extracts only the "type" field so that the rest of the
// payload can be decoded later into the appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server message structs
// ---------------------------------------------------------------------------

// IdentifyMsg binds the connection to an already-authenticated user id.
type IdentifyMsg struct {
	Type string `json:"type"`
	UID  string `json:"uid"`
}

// SaveProfileMsg creates or replaces the caller's profile. The uid inside the
// profile is ignored; the identified uid is used.
type SaveProfileMsg struct {
	Type    string             `json:"type"`
	Profile models.UserProfile `json:"profile"`
}

// GetProfileMsg asks for a profile. An empty UID means the caller's own.
type GetProfileMsg struct {
	Type string `json:"type"`
	UID  string `json:"uid,omitempty"`
}

// GetDeckMsg asks for the caller's ranked candidate deck.
type GetDeckMsg struct {
	Type  string `json:"type"`
	Limit int    `json:"limit,omitempty"`
}

// SwipeMsg records a like or pass on another user.
type SwipeMsg struct {
	Type      string `json:"type"`
	ToUID     string `json:"to_uid"`
	Direction string `json:"direction"`
}

// SendMessageMsg appends a chat message to a match.
type SendMessageMsg struct {
	Type    string `json:"type"`
	MatchID string `json:"match_id"`
	Text    string `json:"text"`
}

// ListMessagesMsg asks for every message of a match.
type ListMessagesMsg struct {
	Type    string `json:"type"`
	MatchID string `json:"match_id"`
}

// ListMatchesMsg asks for the caller's matches.
type ListMatchesMsg struct {
	Type string `json:"type"`
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client message structs
// ---------------------------------------------------------------------------

// SessionCreatedMsg is sent by the server when a new connection is established.
type SessionCreatedMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// IdentifiedMsg confirms the connection is bound to UID.
type IdentifiedMsg struct {
	Type string `json:"type"`
	UID  string `json:"uid"`
}

// ProfileMsg carries a single profile.
type ProfileMsg struct {
	Type    string              `json:"type"`
	Profile *models.UserProfile `json:"profile"`
}

// DeckCard is one ranked candidate.
type DeckCard struct {
	Profile       *models.UserProfile `json:"profile"`
	Score         int                 `json:"score"`
	DistanceMiles *float64            `json:"distance_miles,omitempty"`
	SharedSkills  []string            `json:"shared_skills,omitempty"`
}

// DeckMsg carries the caller's ranked deck, best candidate first.
type DeckMsg struct {
	Type  string     `json:"type"`
	Cards []DeckCard `json:"cards"`
}

// SwipeRecordedMsg acknowledges a swipe and reports whether it matched.
type SwipeRecordedMsg struct {
	Type      string `json:"type"`
	ToUID     string `json:"to_uid"`
	Direction string `json:"direction"`
	Matched   bool   `json:"matched"`
	MatchID   string `json:"match_id,omitempty"`
}

// MatchCreatedMsg is pushed to both users when a mutual like forms a match.
type MatchCreatedMsg struct {
	Type       string    `json:"type"`
	MatchID    string    `json:"match_id"`
	PartnerUID string    `json:"partner_uid"`
	CreatedAt  time.Time `json:"created_at"`
}

// ServerChatMsg is a single chat message, either a reply to send_message or
// a push for a message appended elsewhere.
type ServerChatMsg struct {
	Type    string                `json:"type"`
	Message *models.MessageRecord `json:"message"`
}

// MessagesMsg carries a match's full conversation in ascending order.
type MessagesMsg struct {
	Type     string                  `json:"type"`
	MatchID  string                  `json:"match_id"`
	Messages []*models.MessageRecord `json:"messages"`
}

// MatchSummary describes one of the caller's matches.
type MatchSummary struct {
	MatchID         string     `json:"match_id"`
	PartnerUID      string     `json:"partner_uid"`
	CreatedAt       time.Time  `json:"created_at"`
	LastMessageAt   *time.Time `json:"last_message_at,omitempty"`
	LastMessageText string     `json:"last_message_text"`
}

// MatchesMsg lists the caller's matches, most recent activity first.
type MatchesMsg struct {
	Type    string         `json:"type"`
	Matches []MatchSummary `json:"matches"`
}

// RateLimitedMsg is sent by the server when the client has been rate-limited.
type RateLimitedMsg struct {
	Type       string `json:"type"`
	Action     string `json:"action"`
	RetryAfter int    `json:"retry_after"`
}

// ErrorMsg is sent by the server to communicate an error condition.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongMsg is the server's response to a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientMessage parses raw WebSocket bytes into a typed client message.
// It returns the message type string, the decoded struct, and any error
// encountered during parsing. An error is returned for unknown or
// server-only message types.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeIdentify:
		var m IdentifyMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSaveProfile:
		var m SaveProfileMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeGetProfile:
		var m GetProfileMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeGetDeck:
		var m GetDeckMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSwipe:
		var m SwipeMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSendMessage:
		var m SendMessageMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeListMessages:
		var m ListMessagesMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeListMatches:
		var m ListMatchesMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage creates a JSON-encoded byte slice for a server message.
// The msgType is injected into the payload under the "type" key. The payload
// should be one of the server message structs; this function marshals it to
// JSON, injects the type field, and returns the final bytes.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
