// Package geo computes great-circle distances between user locations.
package geo

import "math"

// EarthRadiusMiles is the mean Earth radius used by the haversine formula.
const EarthRadiusMiles = 3958.76

// Coordinate is a latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64
	Lng float64
}

// Valid reports whether the coordinate lies within the usual degree ranges.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180 &&
		!math.IsNaN(c.Lat) && !math.IsNaN(c.Lng)
}

// FromPointers builds a coordinate from optional profile fields. It returns
// nil when either component is missing or zero; stored profiles use zero as
// the "not shared" value.
func FromPointers(lat, lng *float64) *Coordinate {
	if lat == nil || lng == nil || *lat == 0 || *lng == 0 {
		return nil
	}
	return &Coordinate{Lat: *lat, Lng: *lng}
}

// Miles returns the haversine distance between a and b.
func Miles(a, b Coordinate) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	s1 := math.Pow(math.Sin(dLat/2), 2)
	s2 := math.Cos(radians(a.Lat)) * math.Cos(radians(b.Lat)) * math.Pow(math.Sin(dLng/2), 2)

	// Floating point error can push the root slightly past 1.
	root := math.Min(1, math.Max(0, math.Sqrt(s1+s2)))
	return EarthRadiusMiles * 2 * math.Asin(root)
}

// Distance returns the distance between two optional locations. known is
// false when either location is missing; callers decide what that means.
func Distance(a, b *Coordinate) (miles float64, known bool) {
	if a == nil || b == nil {
		return 0, false
	}
	return Miles(*a, *b), true
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
