package search

import (
	"math"

	"github.com/mmcloughlin/geohash"

	"github.com/angelmondragon/rentchain-properties/pkg/db/models"
)

const kmPerDegree = EarthRadiusKm * math.Pi / 180

// CoverCells returns geohash prefixes whose union contains every point within radiusKm of
// the center: the smallest cell wider than the radius in both axes plus its 8 neighbours.
// It returns nil near the poles or the antimeridian, where callers must skip the pre-filter.
func CoverCells(lat, lng, radiusKm float64) []string {
	dLat := radiusKm / kmPerDegree
	maxLat := math.Abs(lat) + dLat
	if maxLat >= 89 {
		return nil
	}
	dLng := dLat / math.Cos(radians(maxLat))
	if lng-dLng <= -180 || lng+dLng >= 180 {
		return nil
	}

	for precision := uint(models.GeohashPrecision); precision >= 1; precision-- {
		cell := geohash.EncodeWithPrecision(lat, lng, precision)
		box := geohash.BoundingBox(cell)
		if box.MaxLat-box.MinLat >= dLat && box.MaxLng-box.MinLng >= dLng {
			return append([]string{cell}, geohash.Neighbors(cell)...)
		}
	}
	return nil
}
