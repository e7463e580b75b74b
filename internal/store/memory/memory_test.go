package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillswap/swap-app/internal/models"
	"github.com/skillswap/swap-app/internal/store"
	"github.com/skillswap/swap-app/internal/store/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

func TestProfilesAreCopied(t *testing.T) {
	ctx := context.Background()
	s := New()

	p := &models.UserProfile{UID: "a", SkillsOffer: []string{"go"}, Lat: storetest.Float(10)}
	require.NoError(t, s.PutProfile(ctx, p))

	p.SkillsOffer[0] = "mutated"
	*p.Lat = 99

	got, err := s.GetProfile(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, got.SkillsOffer)
	assert.Equal(t, 10.0, *got.Lat)
}

func TestAppendMessageUnknownMatch(t *testing.T) {
	err := New().AppendMessage(context.Background(), "missing", &models.MessageRecord{ID: "1"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}
