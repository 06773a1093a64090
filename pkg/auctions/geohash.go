package auctions

import (
	"github.com/mmcloughlin/geohash"
)

// geohashPrecision gives ~5m cells, enough to group listings per building.
const geohashPrecision = 9

// Geohash returns the geohash of the record's coordinates, or "" when the
// record has no coordinates yet.
func (r *Record) Geohash() string {
	if !r.HasCoordinates() {
		return ""
	}
	return geohash.EncodeWithPrecision(*r.Latitude, *r.Longitude, geohashPrecision)
}
