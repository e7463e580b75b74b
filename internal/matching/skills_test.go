package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skillswap/swap-app/internal/models"
)

func profile(uid string, offer, want []string) *models.UserProfile {
	return &models.UserProfile{UID: uid, SkillsOffer: offer, SkillsWant: want, RadiusMiles: 25}
}

func TestNormalizeSkills(t *testing.T) {
	got := NormalizeSkills([]string{" Guitar", "guitar", "", "  ", "SPANISH", "cooking "})
	assert.Equal(t, []string{"cooking", "guitar", "spanish"}, got)
	assert.Empty(t, NormalizeSkills(nil))
}

func TestScore(t *testing.T) {
	tests := []struct {
		name      string
		viewer    *models.UserProfile
		candidate *models.UserProfile
		want      int
	}{
		{
			name:      "two of three",
			viewer:    profile("v", []string{"spanish"}, []string{"python", "guitar"}),
			candidate: profile("c", []string{"python"}, []string{"spanish", "yoga"}),
			want:      67,
		},
		{
			name:      "nothing shared",
			viewer:    profile("v", []string{"spanish"}, []string{"python"}),
			candidate: profile("c", []string{"knitting"}, []string{"chess"}),
			want:      0,
		},
		{
			name:      "perfect complement",
			viewer:    profile("v", []string{"spanish"}, []string{"python"}),
			candidate: profile("c", []string{"python"}, []string{"spanish"}),
			want:      100,
		},
		{
			name:      "empty viewer",
			viewer:    profile("v", nil, nil),
			candidate: profile("c", []string{"python"}, []string{"spanish"}),
			want:      0,
		},
		{
			name:      "case and whitespace insensitive",
			viewer:    profile("v", []string{" Spanish "}, []string{"PYTHON"}),
			candidate: profile("c", []string{"python"}, []string{"spanish"}),
			want:      100,
		},
		{
			name:      "duplicates counted once",
			viewer:    profile("v", []string{"spanish", "Spanish"}, []string{"python"}),
			candidate: profile("c", []string{"python", "python"}, nil),
			want:      50,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Score(tc.viewer, tc.candidate))
		})
	}
}

func TestScore_Asymmetric(t *testing.T) {
	viewer := profile("v", []string{"spanish"}, []string{"python", "guitar"})
	candidate := profile("c", []string{"python"}, []string{"spanish", "yoga"})

	// Equal list sizes on both sides give the same score.
	assert.Equal(t, 67, Score(viewer, candidate))
	assert.Equal(t, 67, Score(candidate, viewer))

	// The denominator is always the viewer's own list size.
	small := profile("s", []string{"python"}, nil)
	big := profile("b", []string{"a", "b", "c"}, []string{"python", "d", "e"})
	assert.Equal(t, 100, Score(small, big))
	assert.Equal(t, 17, Score(big, small))
}

func TestScore_Bounds(t *testing.T) {
	skills := []string{"a", "b", "c", "d"}
	for i := range skills {
		for j := range skills {
			v := profile("v", skills[:i], skills[j:])
			c := profile("c", skills[j:], skills[:i])
			s := Score(v, c)
			assert.GreaterOrEqual(t, s, 0)
			assert.LessOrEqual(t, s, 100)
		}
	}
}

func TestSharedSkills(t *testing.T) {
	viewer := profile("v", nil, []string{"Python", "guitar"})
	candidate := profile("c", []string{"python", "GUITAR", "yoga"}, nil)
	assert.Equal(t, []string{"guitar", "python"}, SharedSkills(viewer, candidate))
}
