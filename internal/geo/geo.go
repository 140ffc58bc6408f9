// Package geo provides great-circle distance, ring sampling around a point and
// the fixed city gazetteer used by the generators.
package geo

import (
	"math"
	"math/rand/v2"
)

// EarthRadiusKm is the mean Earth radius used by Distance.
const EarthRadiusKm = 6371.0

// kmPerDegree approximates one degree of latitude.
const kmPerDegree = 111.0

// Distance returns the haversine distance in kilometres between two points.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	// Rounding can push a slightly above 1 for antipodal points.
	a = math.Min(1, math.Max(0, a))
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// SampleRing returns a point whose offset from (lat, lon) is a radius drawn
// uniformly from [rMin, rMax] km in a uniformly random direction.
// Offsets use a local-degree approximation, so the haversine distance of the
// result is close to but not exactly the drawn radius.
func SampleRing(rng *rand.Rand, lat, lon, rMin, rMax float64) (float64, float64) {
	r := rMin + rng.Float64()*(rMax-rMin)
	angle := rng.Float64() * 2 * math.Pi

	dLat := r / kmPerDegree * math.Cos(angle)
	dLon := r / (kmPerDegree * math.Cos(toRadians(lat))) * math.Sin(angle)
	return lat + dLat, lon + dLon
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
