// Package memory is an in-process store.Store used by tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/skillswap/swap-app/internal/models"
	"github.com/skillswap/swap-app/internal/store"
)

type swipeKey struct {
	from, to string
}

// Store keeps every record in maps guarded by a single RWMutex.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]models.UserProfile
	swipes   map[swipeKey]models.SwipeRecord
	matches  map[string]models.MatchRecord
	messages map[string][]models.MessageRecord
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		profiles: make(map[string]models.UserProfile),
		swipes:   make(map[swipeKey]models.SwipeRecord),
		matches:  make(map[string]models.MatchRecord),
		messages: make(map[string][]models.MessageRecord),
	}
}

func (s *Store) GetProfile(_ context.Context, uid string) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[uid]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneProfile(p), nil
}

func (s *Store) PutProfile(_ context.Context, p *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UID] = *cloneProfile(*p)
	return nil
}

func (s *Store) ListCandidates(_ context.Context, excludeUID string) ([]*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.UserProfile, 0, len(s.profiles))
	for uid, p := range s.profiles {
		if uid == excludeUID {
			continue
		}
		out = append(out, cloneProfile(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}

func (s *Store) PutSwipe(_ context.Context, sw *models.SwipeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.swipes[swipeKey{sw.FromUID, sw.ToUID}] = *sw
	return nil
}

func (s *Store) GetSwipe(_ context.Context, from, to string) (*models.SwipeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sw, ok := s.swipes[swipeKey{from, to}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sw, nil
}

func (s *Store) SwipedTargets(_ context.Context, from string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{})
	for k := range s.swipes {
		if k.from == from {
			out[k.to] = struct{}{}
		}
	}
	return out, nil
}

func (s *Store) GetMatch(_ context.Context, id string) (*models.MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &m, nil
}

func (s *Store) PutMatch(_ context.Context, m *models.MatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[m.ID]; ok {
		return store.ErrAlreadyExists
	}
	s.matches[m.ID] = *m
	return nil
}

func (s *Store) ListMatches(_ context.Context, uid string) ([]*models.MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.MatchRecord
	for _, m := range s.matches {
		if m.HasUser(uid) {
			m := m
			out = append(out, &m)
		}
	}
	store.SortMatches(out)
	return out, nil
}

func (s *Store) AppendMessage(_ context.Context, matchID string, m *models.MessageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[matchID]; !ok {
		return store.ErrNotFound
	}
	s.messages[matchID] = append(s.messages[matchID], *m)
	return nil
}

func (s *Store) UpdateMatchProjection(_ context.Context, matchID string, at time.Time, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return store.ErrNotFound
	}
	if at.Before(m.LastMessageAt) {
		return nil
	}
	m.LastMessageAt = at
	m.LastMessageText = text
	s.matches[matchID] = m
	return nil
}

func (s *Store) ListMessages(_ context.Context, matchID string) ([]*models.MessageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[matchID]
	out := make([]*models.MessageRecord, len(msgs))
	for i := range msgs {
		m := msgs[i]
		out[i] = &m
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) Close() error { return nil }

func cloneProfile(p models.UserProfile) *models.UserProfile {
	p.SkillsOffer = append([]string(nil), p.SkillsOffer...)
	p.SkillsWant = append([]string(nil), p.SkillsWant...)
	if p.Availability != nil {
		av := make(models.Availability, len(p.Availability))
		for day, slots := range p.Availability {
			av[day] = append([]string(nil), slots...)
		}
		p.Availability = av
	}
	if p.Lat != nil {
		lat := *p.Lat
		p.Lat = &lat
	}
	if p.Lng != nil {
		lng := *p.Lng
		p.Lng = &lng
	}
	return &p
}
