package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvString returns the trimmed value of key when it is set and non-empty.
func EnvString(key string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer.
func EnvInt(key string) (int, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvFloat parses key as a float64.
func EnvFloat(key string) (float64, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvBool parses key with strconv.ParseBool.
func EnvBool(key string) (bool, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvDuration parses key with time.ParseDuration.
func EnvDuration(key string) (time.Duration, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

func (c *Config) loadFromEnv() error {
	stringVars := map[string]*string{
		"FLICKFINDER_FLICKR_BASE_URL":   &c.FlickrBaseURL,
		"FLICKFINDER_FLICKR_API_KEY":    &c.FlickrAPIKey,
		"FLICKFINDER_FLICKR_GALLERY_ID": &c.FlickrGalleryID,
		"FLICKFINDER_TMDB_BASE_URL":     &c.TMDBBaseURL,
		"FLICKFINDER_TMDB_API_KEY":      &c.TMDBAPIKey,
		"FLICKFINDER_USER_AGENT":        &c.UserAgent,
		"FLICKFINDER_OUTPUT":            &c.OutputFile,
		"FLICKFINDER_FORMAT":            &c.OutputFormat,
		"FLICKFINDER_METRICS_ADDR":      &c.MetricsAddr,
		"FLICKFINDER_LOG_FILE":          &c.LogFile,
	}
	for key, dst := range stringVars {
		if value, ok := EnvString(key); ok {
			*dst = value
		}
	}

	ints := map[string]*int{
		"FLICKFINDER_MAX_PAGE_CAP":   &c.MaxPageCap,
		"FLICKFINDER_MAX_BODY_BYTES": &c.MaxBodyBytes,
		"FLICKFINDER_RECENT_SIZE":    &c.RecentSize,
	}
	for key, dst := range ints {
		value, ok, err := EnvInt(key)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}

	floats := map[string]*float64{
		"FLICKFINDER_BBOX_HALF_WIDTH":  &c.BBoxHalfWidth,
		"FLICKFINDER_BBOX_HALF_HEIGHT": &c.BBoxHalfHeight,
	}
	for key, dst := range floats {
		value, ok, err := EnvFloat(key)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}

	bools := map[string]*bool{
		"FLICKFINDER_FETCH_IMAGES": &c.FetchImages,
		"FLICKFINDER_VERBOSE":      &c.Verbose,
	}
	for key, dst := range bools {
		value, ok, err := EnvBool(key)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}

	if value, ok, err := EnvDuration("FLICKFINDER_TIMEOUT"); err != nil {
		return err
	} else if ok {
		c.Timeout = value
	}
	return nil
}
