// Package models defines the records shared by the matchmaking core, the
// conversation channel and the persistence backends.
package models

import "time"

// DefaultRadiusMiles is applied when a profile is saved without a radius.
const DefaultRadiusMiles = 25.0

// Direction is the decision recorded by a swipe.
type Direction string

const (
	Like Direction = "like"
	Pass Direction = "pass"
)

// Valid reports whether d is one of the known swipe directions.
func (d Direction) Valid() bool {
	return d == Like || d == Pass
}

// Availability maps a weekday name to the time slots the user is free.
type Availability map[string][]string

// UserProfile is a user's public profile. Lat and Lng are nil when the user
// has not shared a location.
type UserProfile struct {
	UID          string       `json:"uid" validate:"required,max=128"`
	Name         string       `json:"name,omitempty" validate:"max=120"`
	Bio          string       `json:"bio,omitempty" validate:"max=2000"`
	PhotoURL     string       `json:"photo_url,omitempty" validate:"omitempty,url"`
	SkillsOffer  []string     `json:"skills_offer" validate:"max=50,dive,max=64"`
	SkillsWant   []string     `json:"skills_want" validate:"max=50,dive,max=64"`
	Availability Availability `json:"availability,omitempty"`
	LocationName string       `json:"location_name,omitempty" validate:"max=200"`
	Lat          *float64     `json:"lat,omitempty" validate:"omitempty,latitude"`
	Lng          *float64     `json:"lng,omitempty" validate:"omitempty,longitude"`
	RadiusMiles  float64      `json:"radius_miles" validate:"gte=0"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// SwipeRecord is a directional decision from one user about another. There is
// at most one record per ordered (FromUID, ToUID) pair.
type SwipeRecord struct {
	FromUID   string    `json:"from_uid"`
	ToUID     string    `json:"to_uid"`
	Direction Direction `json:"direction"`
	CreatedAt time.Time `json:"created_at"`
}

// MatchRecord is created once both users liked each other. Users is sorted.
type MatchRecord struct {
	ID              string    `json:"id"`
	Users           [2]string `json:"users"`
	CreatedAt       time.Time `json:"created_at"`
	LastMessageAt   time.Time `json:"last_message_at,omitempty"`
	LastMessageText string    `json:"last_message_text"`
}

// HasUser reports whether uid is one of the two participants.
func (m *MatchRecord) HasUser(uid string) bool {
	return uid != "" && (m.Users[0] == uid || m.Users[1] == uid)
}

// Partner returns the other participant, or "" if uid is not in the match.
func (m *MatchRecord) Partner(uid string) string {
	switch uid {
	case m.Users[0]:
		return m.Users[1]
	case m.Users[1]:
		return m.Users[0]
	}
	return ""
}

// ActivityAt is the time used to order a user's match list.
func (m *MatchRecord) ActivityAt() time.Time {
	if m.LastMessageAt.After(m.CreatedAt) {
		return m.LastMessageAt
	}
	return m.CreatedAt
}

// MessageRecord is an immutable chat message belonging to a match.
type MessageRecord struct {
	ID        string    `json:"id"`
	MatchID   string    `json:"match_id"`
	FromUID   string    `json:"from_uid"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
