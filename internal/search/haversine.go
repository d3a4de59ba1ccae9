package search

import "math"

// Distance returns the great-circle distance in kilometers between two points given in
// degrees, using the spherical law of cosines form of the haversine distance.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := radians(lat1)
	phi2 := radians(lat2)
	dLambda := radians(lng2) - radians(lng1)

	cosine := math.Sin(phi1)*math.Sin(phi2) + math.Cos(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	// rounding can push identical points slightly past 1
	cosine = math.Max(-1, math.Min(1, cosine))
	return EarthRadiusKm * math.Acos(cosine)
}

// Within reports whether the point is strictly inside the circle.
func (g GeoDistance) Within(lat, lng float64) bool {
	return Distance(g.Latitude, g.Longitude, lat, lng) < g.RadiusKm
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
