package matching

import (
	"math"
	"sort"
	"strings"

	"github.com/skillswap/swap-app/internal/models"
)

// NormalizeSkills lowercases and trims each skill, drops empties and
// duplicates, and returns the result sorted.
func NormalizeSkills(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Score is the percentage of the viewer's stated interests the candidate
// satisfies: skills the candidate offers that the viewer wants, plus skills
// the candidate wants that the viewer offers, over the size of the viewer's
// own two lists. It is not symmetric; Score(a, b) and Score(b, a) differ
// whenever the two users list a different number of skills.
func Score(viewer, candidate *models.UserProfile) int {
	viewerWant := skillSet(viewer.SkillsWant)
	viewerOffer := skillSet(viewer.SkillsOffer)

	a := overlap(skillSet(candidate.SkillsOffer), viewerWant)
	b := overlap(skillSet(candidate.SkillsWant), viewerOffer)

	den := len(viewerWant) + len(viewerOffer)
	if den < 1 {
		den = 1
	}

	score := int(math.Round(100 * float64(a+b) / float64(den)))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// SharedSkills lists what the candidate offers that the viewer wants.
func SharedSkills(viewer, candidate *models.UserProfile) []string {
	want := skillSet(viewer.SkillsWant)
	var out []string
	for _, s := range NormalizeSkills(candidate.SkillsOffer) {
		if _, ok := want[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

func skillSet(skills []string) map[string]struct{} {
	norm := NormalizeSkills(skills)
	set := make(map[string]struct{}, len(norm))
	for _, s := range norm {
		set[s] = struct{}{}
	}
	return set
}

func overlap(a, b map[string]struct{}) int {
	n := 0
	for s := range a {
		if _, ok := b[s]; ok {
			n++
		}
	}
	return n
}
