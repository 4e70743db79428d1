// Package geo provides great-circle distance math and the coordinate type
// shared by meal records and user location settings.
package geo

import "math"

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

// Point is a coordinate pair with an optional free-text address label.
// It is embedded in the record it annotates and never stored on its own.
type Point struct {
	Longitude float64 `bson:"longitude" json:"longitude"`
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Address   string  `bson:"address,omitempty" json:"address,omitempty"`
}

// Valid reports whether the point holds a usable coordinate pair.
func (p *Point) Valid() bool {
	if p == nil {
		return false
	}
	return p.Longitude >= -180 && p.Longitude <= 180 &&
		p.Latitude >= -90 && p.Latitude <= 90
}

// DistanceKm returns the haversine distance in kilometers between two
// coordinate pairs, rounded half-up to 2 decimal places. Callers validate
// coordinates first; NaN inputs propagate.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return Round2(earthRadiusKm * c)
}

// Round2 rounds half-up to 2 decimal places.
func Round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
