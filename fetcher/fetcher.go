// Package fetcher issues single GET requests against the photo and movie APIs
// and classifies every failure into a FetchError.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-flickfinder/config"
	"github.com/aluiziolira/go-flickfinder/models"
	"github.com/gocolly/colly/v2"
)

// Fetcher wraps a colly collector used as a plain, synchronous HTTP client.
type Fetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	logger    *slog.Logger
	Metrics   *Metrics

	started      time.Time
	requestCount int64
	errorCount   int64

	mu           sync.Mutex
	errorsByType map[string]int
}

// New builds a fetcher configured from cfg.
func New(cfg *config.Config, logger *slog.Logger) (*Fetcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("fetcher: nil config")
	}
	if logger == nil {
		logger = slog.Default()
	}

	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		// One byte over the limit so an oversized body is detected, not truncated.
		colly.MaxBodySize(cfg.MaxBodyBytes+1),
	)
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        16,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	return &Fetcher{
		cfg:          cfg,
		collector:    collector,
		logger:       logger.With(slog.String("component", "fetcher")),
		Metrics:      NewMetrics(),
		started:      time.Now(),
		errorsByType: make(map[string]int),
	}, nil
}

// WithTransport swaps the HTTP round tripper, e.g. for httpmock in tests.
func (f *Fetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

// Fetch issues a GET for a JSON document.
func (f *Fetcher) Fetch(ctx context.Context, target *url.URL) (*models.APIResponse, error) {
	return f.get(ctx, target, "application/json")
}

// FetchImage issues a GET for image bytes.
func (f *Fetcher) FetchImage(ctx context.Context, target *url.URL) (*models.APIResponse, error) {
	return f.get(ctx, target, "image/*")
}

func (f *Fetcher) get(ctx context.Context, target *url.URL, accept string) (*models.APIResponse, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if target == nil {
		return nil, &FetchError{Reason: ReasonTransport, Err: errors.New("nil url")}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rawURL := target.String()
	var (
		response *colly.Response
		start    time.Time
	)

	c := f.collector.Clone()
	c.OnRequest(func(r *colly.Request) {
		start = time.Now()
		current := atomic.AddInt64(&f.requestCount, 1)
		f.Metrics.IncRequest("started")
		f.logger.Debug("request started",
			slog.Int64("requests", current),
			slog.String("url", redact(rawURL)),
		)
	})
	c.OnResponse(func(r *colly.Response) {
		response = r
		f.Metrics.ObserveDuration(time.Since(start))
	})

	hdr := http.Header{}
	hdr.Set("Accept", accept)
	err := c.Request(http.MethodGet, rawURL, nil, nil, hdr)

	// A superseded operation never sees a partial result.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	if err != nil {
		return nil, f.fail(&FetchError{Reason: ReasonTransport, URL: rawURL, Err: classifyError(err, 0)})
	}
	if response == nil {
		return nil, f.fail(&FetchError{Reason: ReasonTransport, URL: rawURL, Err: errors.New("no response")})
	}
	if response.StatusCode < http.StatusOK || response.StatusCode > 299 {
		return nil, f.fail(&FetchError{
			Reason:     ReasonBadStatus,
			StatusCode: response.StatusCode,
			URL:        rawURL,
			Err:        classifyError(nil, response.StatusCode),
		})
	}
	if len(response.Body) > f.cfg.MaxBodyBytes {
		return nil, f.fail(&FetchError{
			Reason:     ReasonTransport,
			StatusCode: response.StatusCode,
			URL:        rawURL,
			Err:        fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, f.cfg.MaxBodyBytes),
		})
	}
	if len(response.Body) == 0 {
		return nil, f.fail(&FetchError{Reason: ReasonEmptyBody, StatusCode: response.StatusCode, URL: rawURL})
	}

	f.Metrics.IncRequest("completed")
	contentType := ""
	if response.Headers != nil {
		contentType = response.Headers.Get("Content-Type")
	}
	return &models.APIResponse{
		URL:         rawURL,
		StatusCode:  response.StatusCode,
		ContentType: contentType,
		Body:        response.Body,
	}, nil
}

func (f *Fetcher) fail(err *FetchError) error {
	atomic.AddInt64(&f.errorCount, 1)
	category := ErrorTypeLabel(err)

	f.mu.Lock()
	f.errorsByType[category]++
	f.mu.Unlock()

	f.Metrics.IncError(category)
	f.logger.Error("request error",
		slog.String("url", redact(err.URL)),
		slog.String("reason", string(err.Reason)),
		slog.String("category", category),
		slog.Any("error", err.Err),
	)
	return err
}

// Stats returns a snapshot of the request counters.
func (f *Fetcher) Stats() models.FetchStats {
	f.mu.Lock()
	byType := make(map[string]int, len(f.errorsByType))
	for k, v := range f.errorsByType {
		byType[k] = v
	}
	f.mu.Unlock()

	return models.FetchStats{
		StartTime:    f.started,
		EndTime:      time.Now(),
		RequestCount: int(atomic.LoadInt64(&f.requestCount)),
		ErrorCount:   int(atomic.LoadInt64(&f.errorCount)),
		ErrorsByType: byType,
	}
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch statusCode {
		case http.StatusUnauthorized:
			return ErrUnauthorized{Err: wrapped}
		case http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		}
		return wrapped
	}

	return err
}

var secretParams = []string{"api_key", "password", "session_id", "request_token"}

// redact masks credentials carried in query parameters.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}
	parts := strings.Split(u.RawQuery, "&")
	for i, part := range parts {
		key, _, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		for _, secret := range secretParams {
			if key == secret {
				parts[i] = key + "=REDACTED"
				break
			}
		}
	}
	u.RawQuery = strings.Join(parts, "&")
	return u.String()
}
