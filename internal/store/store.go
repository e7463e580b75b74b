// Package store defines the persistence contract used by the matchmaking
// core. Backends live in the memory, redisstore and postgres subpackages.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/skillswap/swap-app/internal/models"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrAlreadyExists is returned by PutMatch when the match was created
	// concurrently by another writer.
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the narrow data-access surface the core depends on.
type Store interface {
	GetProfile(ctx context.Context, uid string) (*models.UserProfile, error)
	PutProfile(ctx context.Context, p *models.UserProfile) error
	// ListCandidates returns every profile except excludeUID.
	ListCandidates(ctx context.Context, excludeUID string) ([]*models.UserProfile, error)

	// PutSwipe upserts the record for (FromUID, ToUID); last write wins.
	PutSwipe(ctx context.Context, s *models.SwipeRecord) error
	GetSwipe(ctx context.Context, from, to string) (*models.SwipeRecord, error)
	// SwipedTargets returns the set of uids from has swiped on in either direction.
	SwipedTargets(ctx context.Context, from string) (map[string]struct{}, error)

	GetMatch(ctx context.Context, id string) (*models.MatchRecord, error)
	// PutMatch creates the match if absent. It returns ErrAlreadyExists when
	// a record with the same id is already stored and leaves it untouched.
	PutMatch(ctx context.Context, m *models.MatchRecord) error
	// ListMatches returns uid's matches, most recent activity first.
	ListMatches(ctx context.Context, uid string) ([]*models.MatchRecord, error)

	AppendMessage(ctx context.Context, matchID string, m *models.MessageRecord) error
	// UpdateMatchProjection sets the last message summary unless the stored
	// projection is already newer than at.
	UpdateMatchProjection(ctx context.Context, matchID string, at time.Time, text string) error
	// ListMessages returns messages in ascending creation order.
	ListMessages(ctx context.Context, matchID string) ([]*models.MessageRecord, error)

	Close() error
}
