// Package flickr picks random photos from Flickr searches and galleries.
package flickr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/aluiziolira/go-flickfinder/config"
	"github.com/aluiziolira/go-flickfinder/extract"
	"github.com/aluiziolira/go-flickfinder/models"
	"github.com/aluiziolira/go-flickfinder/parser"
	"github.com/aluiziolira/go-flickfinder/request"
)

const (
	MethodSearch  = "flickr.photos.search"
	MethodGallery = "flickr.galleries.getPhotos"

	paramMethod         = "method"
	paramAPIKey         = "api_key"
	paramGalleryID      = "gallery_id"
	paramText           = "text"
	paramBBox           = "bbox"
	paramSafeSearch     = "safe_search"
	paramExtras         = "extras"
	paramFormat         = "format"
	paramNoJSONCallback = "nojsoncallback"
	paramPage           = "page"

	valueSafeSearch = "1"
	valueMediumURL  = "url_m"
	valueFormat     = "json"
	valueNoCallback = "1"
)

var (
	// ErrEmptyPhrase is returned for a blank phrase search.
	ErrEmptyPhrase = errors.New("flickr: phrase is empty")
	// ErrCoordinateRange is returned for a center point off the globe.
	ErrCoordinateRange = errors.New("flickr: latitude must be in [-90, 90] and longitude in [-180, 180]")
	// ErrEmptyGallery is returned when no gallery id is configured.
	ErrEmptyGallery = errors.New("flickr: gallery id is empty")
	// ErrImageRetrieval wraps a failed download of the picked photo.
	ErrImageRetrieval = errors.New("flickr: can't retrieve image")
)

// Fetcher performs the GET requests.
type Fetcher interface {
	Fetch(ctx context.Context, target *url.URL) (*models.APIResponse, error)
	FetchImage(ctx context.Context, target *url.URL) (*models.APIResponse, error)
}

// Client runs Flickr search and gallery operations.
type Client struct {
	fetcher Fetcher
	cfg     *config.Config
	rng     extract.Rand
	logger  *slog.Logger
	now     func() time.Time
}

// New returns a client; rng may be nil to use extract.Default.
func New(f Fetcher, cfg *config.Config, rng extract.Rand, logger *slog.Logger) (*Client, error) {
	if err := cfg.RequireFlickr(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = extract.Default
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		fetcher: f,
		cfg:     cfg,
		rng:     rng,
		logger:  logger.With(slog.String("api", "flickr")),
		now:     time.Now,
	}, nil
}

// SearchByPhrase returns a random photo matching a free-text phrase.
func (c *Client) SearchByPhrase(ctx context.Context, phrase string) (*models.Photo, error) {
	phrase = parser.NormalizeTitle(phrase)
	if phrase == "" {
		return nil, ErrEmptyPhrase
	}
	return c.search(ctx, c.searchParams(paramText, phrase), phrase)
}

// SearchByLocation returns a random photo taken inside the bounding box around
// lat/lon.
func (c *Client) SearchByLocation(ctx context.Context, lat, lon float64) (*models.Photo, error) {
	if !parser.ValidLatLon(lat, lon) {
		return nil, ErrCoordinateRange
	}
	bbox := BBox(lat, lon, c.cfg.BBoxHalfWidth, c.cfg.BBoxHalfHeight)
	return c.search(ctx, c.searchParams(paramBBox, bbox), bbox)
}

// Gallery returns a random photo from a gallery in a single request. An empty
// galleryID falls back to the configured one.
func (c *Client) Gallery(ctx context.Context, galleryID string) (*models.Photo, error) {
	if galleryID == "" {
		galleryID = c.cfg.FlickrGalleryID
	}
	if galleryID == "" {
		return nil, ErrEmptyGallery
	}

	params := request.Params{
		paramMethod:         MethodGallery,
		paramAPIKey:         c.cfg.FlickrAPIKey,
		paramGalleryID:      galleryID,
		paramExtras:         valueMediumURL,
		paramFormat:         valueFormat,
		paramNoJSONCallback: valueNoCallback,
	}
	payload, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}
	photo, err := c.photoFrom(ctx, payload)
	if err != nil {
		return nil, err
	}
	photo.Query = "gallery:" + galleryID
	return photo, nil
}

func (c *Client) searchParams(key, value string) request.Params {
	return request.Params{
		paramMethod:         MethodSearch,
		paramAPIKey:         c.cfg.FlickrAPIKey,
		key:                 value,
		paramSafeSearch:     valueSafeSearch,
		paramExtras:         valueMediumURL,
		paramFormat:         valueFormat,
		paramNoJSONCallback: valueNoCallback,
	}
}

// search asks for the page count first, then for one random page of it. The
// second request is only built once the first response has been validated.
func (c *Client) search(ctx context.Context, params request.Params, query string) (*models.Photo, error) {
	payload, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}
	pages, err := parsePageCount(payload)
	if err != nil {
		return nil, err
	}
	page, err := extract.RandomPage(c.rng, pages, c.cfg.MaxPageCap)
	if err != nil {
		var extErr *extract.Error
		if errors.As(err, &extErr) {
			extErr.Path = pagesPath.String()
			extErr.Step = len(pagesPath) - 1
		}
		return nil, err
	}
	c.logger.Debug("picked result page", slog.Int("pages", pages), slog.Int("page", page))

	payload, err = c.get(ctx, params.With(paramPage, strconv.Itoa(page)))
	if err != nil {
		return nil, err
	}
	photo, err := c.photoFrom(ctx, payload)
	if err != nil {
		return nil, err
	}
	photo.Page = page
	photo.Query = query
	return photo, nil
}

func (c *Client) photoFrom(ctx context.Context, payload any) (*models.Photo, error) {
	entry, err := pickEntry(payload, c.rng)
	if err != nil {
		return nil, err
	}

	photo := &models.Photo{
		Title:     parser.NormalizeTitle(entry.Title),
		ImageURL:  entry.ImageURL,
		FetchedAt: c.now(),
	}
	if err := parser.ValidatePhoto(photo); err != nil {
		return nil, extract.Invalid(mediumPath.String(), err)
	}

	if c.cfg.FetchImages {
		if err := c.retrieveImage(ctx, photo); err != nil {
			return nil, err
		}
	}
	return photo, nil
}

func (c *Client) retrieveImage(ctx context.Context, photo *models.Photo) error {
	target, err := url.Parse(photo.ImageURL)
	if err != nil {
		return extract.Invalid(mediumPath.String(), err)
	}
	resp, err := c.fetcher.FetchImage(ctx, target)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrImageRetrieval, err)
	}
	photo.Image = resp.Body
	photo.ImageSize = len(resp.Body)
	return nil
}

func (c *Client) get(ctx context.Context, params request.Params) (any, error) {
	desc, err := request.FromBase(c.cfg.FlickrBaseURL, "", params)
	if err != nil {
		return nil, err
	}
	target, err := request.BuildURL(desc)
	if err != nil {
		return nil, err
	}
	resp, err := c.fetcher.Fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	payload, err := extract.Decode(resp.Body)
	if err != nil {
		return nil, err
	}
	if err := checkStat(payload); err != nil {
		return nil, err
	}
	return payload, nil
}
