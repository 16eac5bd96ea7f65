package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultMaxPageCap bounds the random result page drawn for a search.
	// Flickr only serves the first 4000 results, so pages beyond 40 (at 100
	// photos per page) are never worth asking for.
	DefaultMaxPageCap = 40

	DefaultFlickrBaseURL = "https://api.flickr.com/services/rest"
	DefaultTMDBBaseURL   = "https://api.themoviedb.org/3"
)

// ErrMissingAPIKey is returned when an API client is built without credentials.
var ErrMissingAPIKey = errors.New("config: missing api key")

// Config holds client configuration.
type Config struct {
	FlickrBaseURL   string        `yaml:"flickr_base_url"`
	FlickrAPIKey    string        `yaml:"flickr_api_key"`
	FlickrGalleryID string        `yaml:"flickr_gallery_id"`
	TMDBBaseURL     string        `yaml:"tmdb_base_url"`
	TMDBAPIKey      string        `yaml:"tmdb_api_key"`
	MaxPageCap      int           `yaml:"max_page_cap"`
	BBoxHalfWidth   float64       `yaml:"bbox_half_width"`
	BBoxHalfHeight  float64       `yaml:"bbox_half_height"`
	FetchImages     bool          `yaml:"fetch_images"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxBodyBytes    int           `yaml:"max_body_bytes"`
	UserAgent       string        `yaml:"user_agent"`
	OutputFile      string        `yaml:"output_file"`
	OutputFormat    string        `yaml:"output_format"` // text, csv, json, or dual
	RecentSize      int           `yaml:"recent_size"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	LogFile         string        `yaml:"log_file"`
	Verbose         bool          `yaml:"verbose"`
}

// DefaultConfig returns defaults matching the public endpoints.
func DefaultConfig() *Config {
	return &Config{
		FlickrBaseURL:   DefaultFlickrBaseURL,
		FlickrGalleryID: "5704-72157622566655097",
		TMDBBaseURL:     DefaultTMDBBaseURL,
		MaxPageCap:      DefaultMaxPageCap,
		BBoxHalfWidth:   1.0,
		BBoxHalfHeight:  1.0,
		FetchImages:     false,
		Timeout:         10 * time.Second,
		MaxBodyBytes:    10 * 1024 * 1024,
		UserAgent:       "flickfinder/1.0 (+https://github.com/aluiziolira/go-flickfinder)",
		OutputFile:      "",
		OutputFormat:    "text",
		RecentSize:      32,
		MetricsAddr:     "",
		Verbose:         false,
	}
}

// Load reads the YAML file at path (when it exists) over the defaults and
// then applies FLICKFINDER_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}
	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("load config env: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if err := validateBaseURL("flickr", c.FlickrBaseURL); err != nil {
		return err
	}
	if err := validateBaseURL("tmdb", c.TMDBBaseURL); err != nil {
		return err
	}
	if c.MaxPageCap <= 0 {
		return fmt.Errorf("max page cap must be positive")
	}
	if !finite(c.BBoxHalfWidth) || !finite(c.BBoxHalfHeight) {
		return fmt.Errorf("bbox half width/height must be finite numbers")
	}
	if c.BBoxHalfWidth < 0 || c.BBoxHalfHeight < 0 {
		return fmt.Errorf("bbox half width/height cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	switch c.OutputFormat {
	case "text", "csv", "json", "dual":
	default:
		return fmt.Errorf("output format must be text, csv, json, or dual")
	}
	if c.OutputFormat != "text" && c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty for %s output", c.OutputFormat)
	}
	if c.RecentSize <= 0 {
		return fmt.Errorf("recent size must be positive")
	}
	return nil
}

// RequireFlickr reports whether the Flickr credentials are present.
func (c *Config) RequireFlickr() error {
	if c.FlickrAPIKey == "" {
		return fmt.Errorf("flickr: %w", ErrMissingAPIKey)
	}
	return nil
}

// RequireTMDB reports whether the TMDB credentials are present.
func (c *Config) RequireTMDB() error {
	if c.TMDBAPIKey == "" {
		return fmt.Errorf("tmdb: %w", ErrMissingAPIKey)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func validateBaseURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s base URL cannot be empty", name)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s base URL: %w", name, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%s base URL must include a scheme and host", name)
	}
	return nil
}
