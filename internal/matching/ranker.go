package matching

import (
	"sort"

	"github.com/skillswap/swap-app/internal/geo"
	"github.com/skillswap/swap-app/internal/models"
)

// Candidate is one entry of a viewer's deck.
type Candidate struct {
	Profile       *models.UserProfile `json:"profile"`
	Score         int                 `json:"score"`
	DistanceMi    float64             `json:"distance_miles,omitempty"`
	DistanceKnown bool                `json:"distance_known"`
	SharedSkills  []string            `json:"shared_skills,omitempty"`
}

// Rank scores every profile in pool against viewer and returns them best
// first. The viewer and anyone in swiped are skipped. Candidates farther than
// the viewer's radius are dropped; candidates without a usable location are
// kept and sort after every candidate whose distance is known.
func Rank(viewer *models.UserProfile, pool []*models.UserProfile, swiped map[string]struct{}) []Candidate {
	origin := geo.FromPointers(viewer.Lat, viewer.Lng)
	radius := viewer.RadiusMiles
	if radius <= 0 {
		radius = models.DefaultRadiusMiles
	}

	out := make([]Candidate, 0, len(pool))
	for _, p := range pool {
		if p == nil || p.UID == viewer.UID {
			continue
		}
		if _, done := swiped[p.UID]; done {
			continue
		}

		miles, known := geo.Distance(origin, geo.FromPointers(p.Lat, p.Lng))
		if known && miles > radius {
			continue
		}

		out = append(out, Candidate{
			Profile:       p,
			Score:         Score(viewer, p),
			DistanceMi:    miles,
			DistanceKnown: known,
			SharedSkills:  SharedSkills(viewer, p),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.DistanceKnown != b.DistanceKnown {
			return a.DistanceKnown
		}
		if a.DistanceKnown && a.DistanceMi != b.DistanceMi {
			return a.DistanceMi < b.DistanceMi
		}
		return a.Profile.UID < b.Profile.UID
	})
	return out
}
