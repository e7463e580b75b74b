// Package profile validates and persists user profiles.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/skillswap/swap-app/internal/matching"
	"github.com/skillswap/swap-app/internal/models"
	"github.com/skillswap/swap-app/internal/store"
)

var validate = validator.New()

// Service saves and loads profiles through a store.
type Service struct {
	store store.Store
	now   func() time.Time
}

// NewService creates a profile service.
func NewService(st store.Store) *Service {
	return &Service{store: st, now: time.Now}
}

// Save creates or replaces the caller's profile. Skills are normalized, a
// missing radius defaults to 25 miles and the original creation time is
// kept when the profile already exists.
func (s *Service) Save(ctx context.Context, p *models.UserProfile) (*models.UserProfile, error) {
	if p == nil {
		return nil, fmt.Errorf("profile: nil profile: %w", models.ErrInvalidInput)
	}
	out := *p
	out.UID = strings.TrimSpace(out.UID)

	if err := validate.Struct(&out); err != nil {
		return nil, fmt.Errorf("profile: %s: %w", describe(err), models.ErrInvalidInput)
	}

	out.SkillsOffer = matching.NormalizeSkills(out.SkillsOffer)
	out.SkillsWant = matching.NormalizeSkills(out.SkillsWant)
	if out.RadiusMiles == 0 {
		out.RadiusMiles = models.DefaultRadiusMiles
	}
	if out.Availability == nil {
		out.Availability = models.Availability{}
	}

	now := s.now().UTC()
	existing, err := s.store.GetProfile(ctx, out.UID)
	switch {
	case err == nil:
		out.CreatedAt = existing.CreatedAt
	case errors.Is(err, store.ErrNotFound):
		out.CreatedAt = now
	default:
		return nil, fmt.Errorf("profile: load existing: %w: %w", models.ErrCollaborator, err)
	}
	out.UpdatedAt = now

	if err := s.store.PutProfile(ctx, &out); err != nil {
		return nil, fmt.Errorf("profile: save: %w: %w", models.ErrCollaborator, err)
	}
	return &out, nil
}

// Get loads a profile by uid.
func (s *Service) Get(ctx context.Context, uid string) (*models.UserProfile, error) {
	p, err := s.store.GetProfile(ctx, uid)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("profile: %s: %w", uid, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("profile: get: %w: %w", models.ErrCollaborator, err)
	}
	return p, nil
}

// describe flattens validator errors into "field: rule" pairs.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+" failed "+fe.Tag())
	}
	return strings.Join(parts, ", ")
}
