package profile

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillswap/swap-app/internal/models"
	"github.com/skillswap/swap-app/internal/store/memory"
)

func f(v float64) *float64 { return &v }

func newTestService(t *testing.T) *Service {
	t.Helper()
	s := NewService(memory.New())
	clock := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return s
}

func TestSave_NormalizesAndDefaults(t *testing.T) {
	s := newTestService(t)

	got, err := s.Save(context.Background(), &models.UserProfile{
		UID:         "alice",
		SkillsOffer: []string{" Guitar", "guitar", ""},
		SkillsWant:  []string{"Spanish"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"guitar"}, got.SkillsOffer)
	assert.Equal(t, []string{"spanish"}, got.SkillsWant)
	assert.Equal(t, models.DefaultRadiusMiles, got.RadiusMiles)
	assert.NotNil(t, got.Availability)
	assert.False(t, got.CreatedAt.IsZero())
	assert.True(t, got.CreatedAt.Equal(got.UpdatedAt))
}

func TestSave_PreservesCreatedAt(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	first, err := s.Save(ctx, &models.UserProfile{UID: "bob", Name: "Bob"})
	require.NoError(t, err)

	second, err := s.Save(ctx, &models.UserProfile{UID: "bob", Name: "Robert", RadiusMiles: 10})
	require.NoError(t, err)

	assert.True(t, second.CreatedAt.Equal(first.CreatedAt))
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))

	loaded, err := s.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "Robert", loaded.Name)
	assert.Equal(t, 10.0, loaded.RadiusMiles)
}

func TestSave_Invalid(t *testing.T) {
	s := newTestService(t)

	tests := []struct {
		name string
		p    *models.UserProfile
	}{
		{"nil", nil},
		{"missing uid", &models.UserProfile{}},
		{"blank uid", &models.UserProfile{UID: "   "}},
		{"negative radius", &models.UserProfile{UID: "a", RadiusMiles: -1}},
		{"latitude out of range", &models.UserProfile{UID: "a", Lat: f(91), Lng: f(10)}},
		{"longitude out of range", &models.UserProfile{UID: "a", Lat: f(10), Lng: f(-181)}},
		{"bad photo url", &models.UserProfile{UID: "a", PhotoURL: "not a url"}},
		{"skill too long", &models.UserProfile{UID: "a", SkillsOffer: []string{strings.Repeat("x", 65)}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Save(context.Background(), tc.p)
			assert.ErrorIs(t, err, models.ErrInvalidInput)
		})
	}
}

func TestSave_DoesNotMutateInput(t *testing.T) {
	s := newTestService(t)
	in := &models.UserProfile{UID: "a", SkillsOffer: []string{"Go"}}

	_, err := s.Save(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"Go"}, in.SkillsOffer)
	assert.Zero(t, in.RadiusMiles)
}

func TestGet_NotFound(t *testing.T) {
	_, err := newTestService(t).Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
