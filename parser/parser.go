// Package parser validates and normalises values pulled out of API payloads
// and user input.
package parser

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-flickfinder/models"
)

const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
)

// ValidatePhoto ensures a photo carries an absolute http(s) image URL.
func ValidatePhoto(p *models.Photo) error {
	if p == nil {
		return fmt.Errorf("photo is nil")
	}
	return ValidateImageURL(p.ImageURL)
}

// ValidateImageURL rejects anything that is not an absolute http(s) URL.
func ValidateImageURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("image url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid image url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid image url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("image url has no host")
	}
	return nil
}

// NormalizeTitle trims spacing and collapses runs of whitespace.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(title), " ")
}

// ParseCoordinate parses text as a float within [lo, hi].
func ParseCoordinate(text string, lo, hi float64) (float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, fmt.Errorf("coordinate is empty")
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("coordinate %q is not a number", text)
	}
	if !InRange(value, lo, hi) {
		return 0, fmt.Errorf("coordinate %v outside [%v, %v]", value, lo, hi)
	}
	return value, nil
}

// InRange reports whether lo <= value <= hi. NaN is never in range.
func InRange(value, lo, hi float64) bool {
	return !math.IsNaN(value) && value >= lo && value <= hi
}

// ValidLatLon reports whether both coordinates are on the globe.
func ValidLatLon(lat, lon float64) bool {
	return InRange(lat, MinLatitude, MaxLatitude) && InRange(lon, MinLongitude, MaxLongitude)
}
