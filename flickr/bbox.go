package flickr

import (
	"strconv"
	"strings"

	"github.com/aluiziolira/go-flickfinder/parser"
)

// BBox renders "minLon,minLat,maxLon,maxLat" around a center point, clamped to
// the valid longitude and latitude ranges.
func BBox(lat, lon, halfWidth, halfHeight float64) string {
	minLon := max(lon-halfWidth, parser.MinLongitude)
	maxLon := min(lon+halfWidth, parser.MaxLongitude)
	minLat := max(lat-halfHeight, parser.MinLatitude)
	maxLat := min(lat+halfHeight, parser.MaxLatitude)

	return strings.Join([]string{
		formatCoord(minLon),
		formatCoord(minLat),
		formatCoord(maxLon),
		formatCoord(maxLat),
	}, ",")
}

// formatCoord always keeps a decimal point: 1 renders as "1.0".
func formatCoord(v float64) string {
	if v == 0 {
		v = 0 // drop the sign of -0
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
