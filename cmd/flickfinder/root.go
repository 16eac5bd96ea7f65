package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aluiziolira/go-flickfinder/config"
	"github.com/aluiziolira/go-flickfinder/extract"
	"github.com/aluiziolira/go-flickfinder/fetcher"
	"github.com/aluiziolira/go-flickfinder/pipeline"
	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// errActionFailed is returned once a failed action has been displayed.
var errActionFailed = errors.New("action failed")

var errColor = color.New(color.FgRed, color.Bold)

// app holds everything a command needs once flags and config are resolved.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr *os.File

	configPath string
	summary    bool

	// transport and rng replace the network and randomness in tests.
	transport http.RoundTripper
	rng       extract.Rand

	cfg           *config.Config
	logger        *slog.Logger
	logCloser     io.Closer
	fetcher       *fetcher.Fetcher
	sessions      *sessionStore
	pipeline      *pipeline.Pipeline
	writer        pipeline.OutputWriter
	metricsServer *http.Server
	started       time.Time
}

func execute(ctx context.Context, args []string) int {
	a := &app{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	return run(ctx, a, args)
}

func run(ctx context.Context, a *app, args []string) int {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)

	err := root.ExecuteContext(ctx)
	if shutdownErr := a.shutdown(); err == nil {
		err = shutdownErr
	}
	if err != nil {
		if !errors.Is(err, errActionFailed) {
			errColor.Fprintf(a.stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "flickfinder",
		Short: "Random Flickr photos and TMDB login from the command line",
		Long: `flickfinder picks a random photo from a Flickr phrase search, a location
search or a gallery, and runs the TheMovieDB login flow.

Examples:
  flickfinder phrase golden gate bridge
  flickfinder location 37.8199 -122.4783
  flickfinder gallery
  flickfinder login --username alice --password secret
  flickfinder image https://live.staticflickr.com/65535/1_m.jpg --save photo.jpg
  flickfinder interactive`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	defaults := config.DefaultConfig()
	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	flags.String("flickr-api-key", "", "Flickr API key (env FLICKFINDER_FLICKR_API_KEY)")
	flags.String("flickr-base-url", defaults.FlickrBaseURL, "Flickr REST endpoint")
	flags.String("gallery-id", defaults.FlickrGalleryID, "Default Flickr gallery id")
	flags.String("tmdb-api-key", "", "TMDB API key (env FLICKFINDER_TMDB_API_KEY)")
	flags.String("tmdb-base-url", defaults.TMDBBaseURL, "TMDB API base URL")
	flags.Int("page-cap", defaults.MaxPageCap, "Highest result page a search may pick")
	flags.Float64("bbox-half-width", defaults.BBoxHalfWidth, "Longitude margin around a location search")
	flags.Float64("bbox-half-height", defaults.BBoxHalfHeight, "Latitude margin around a location search")
	flags.Bool("fetch-images", defaults.FetchImages, "Download the picked photo")
	flags.Duration("timeout", defaults.Timeout, "Request timeout")
	flags.StringP("output", "o", defaults.OutputFile, "Result file for csv, json or dual output")
	flags.StringP("format", "f", defaults.OutputFormat, "Output format: text, csv, json, or dual")
	flags.String("metrics-addr", defaults.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	flags.String("log-file", defaults.LogFile, "Also write logs to this rotating file")
	flags.BoolP("verbose", "v", false, "Enable debug logging")
	flags.BoolVar(&a.summary, "summary", false, "Print a request summary on exit")

	root.AddCommand(
		newPhraseCmd(a),
		newLocationCmd(a),
		newGalleryCmd(a),
		newLoginCmd(a),
		newImageCmd(a),
		newInteractiveCmd(a),
	)
	return root
}

// setup resolves the configuration (file, then env, then flags) and builds
// the fetcher, output writer and pipeline.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	a.logger, a.logCloser = newLogger(a.stderr, cfg.Verbose, cfg.LogFile)
	slog.SetDefault(a.logger)

	a.fetcher, err = fetcher.New(cfg, a.logger)
	if err != nil {
		return err
	}
	if a.transport != nil {
		a.fetcher.WithTransport(a.transport)
	}

	a.writer, err = createWriter(cfg, a.stdout)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}

	a.pipeline, err = pipeline.NewPipeline(a.writer, pipeline.Options{
		RecentSize: cfg.RecentSize,
		Metrics:    a.fetcher.Metrics,
		Logger:     a.logger,
	})
	if err != nil {
		return err
	}
	a.sessions = &sessionStore{}
	a.started = time.Now()

	if cfg.MetricsAddr != "" {
		a.metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(a.fetcher.Metrics.Registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		a.logger.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	a.logger.Debug("configuration loaded",
		slog.String("flickr_base_url", cfg.FlickrBaseURL),
		slog.String("tmdb_base_url", cfg.TMDBBaseURL),
		slog.Int("page_cap", cfg.MaxPageCap),
		slog.String("format", cfg.OutputFormat),
	)
	return nil
}

// shutdown drains the pipeline and releases everything setup created. It is
// safe to call when setup never ran.
func (a *app) shutdown() error {
	var errs []error
	if a.pipeline != nil {
		if err := a.pipeline.Close(); err != nil {
			errs = append(errs, fmt.Errorf("pipeline shutdown: %w", err))
		}
	}
	if a.writer != nil {
		if err := a.writer.Validate(); err != nil {
			a.logger.Warn("output validation failed", slog.Any("error", err))
		}
		if err := a.writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close writer: %w", err))
		}
	}
	if a.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}
	if a.summary && a.fetcher != nil && a.pipeline != nil {
		printSummary(a.stdout, a.fetcher.Stats(), a.pipeline.GetMetrics(), time.Since(a.started), a.cfg.OutputFile)
	}
	if a.logCloser != nil {
		if err := a.logCloser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close log file: %w", err))
		}
	}
	return errors.Join(errs...)
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	strs := map[string]*string{
		"flickr-api-key":  &cfg.FlickrAPIKey,
		"flickr-base-url": &cfg.FlickrBaseURL,
		"gallery-id":      &cfg.FlickrGalleryID,
		"tmdb-api-key":    &cfg.TMDBAPIKey,
		"tmdb-base-url":   &cfg.TMDBBaseURL,
		"output":          &cfg.OutputFile,
		"format":          &cfg.OutputFormat,
		"metrics-addr":    &cfg.MetricsAddr,
		"log-file":        &cfg.LogFile,
	}
	for name, dst := range strs {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = value
	}
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)

	if flags.Changed("page-cap") {
		value, err := flags.GetInt("page-cap")
		if err != nil {
			return err
		}
		cfg.MaxPageCap = value
	}

	floats := map[string]*float64{
		"bbox-half-width":  &cfg.BBoxHalfWidth,
		"bbox-half-height": &cfg.BBoxHalfHeight,
	}
	for name, dst := range floats {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetFloat64(name)
		if err != nil {
			return err
		}
		*dst = value
	}

	bools := map[string]*bool{
		"fetch-images": &cfg.FetchImages,
		"verbose":      &cfg.Verbose,
	}
	for name, dst := range bools {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = value
	}

	if flags.Changed("timeout") {
		value, err := flags.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = value
	}
	return nil
}

func createWriter(cfg *config.Config, stdout io.Writer) (pipeline.OutputWriter, error) {
	text := pipeline.NewTextWriter(stdout)
	switch cfg.OutputFormat {
	case "text":
		return text, nil
	case "json":
		w, err := pipeline.NewJSONWriter(cfg.OutputFile)
		if err != nil {
			return nil, err
		}
		return pipeline.MultiWriter{text, w}, nil
	case "csv":
		w, err := pipeline.NewCSVWriter(cfg.OutputFile)
		if err != nil {
			return nil, err
		}
		return pipeline.MultiWriter{text, w}, nil
	case "dual":
		jsonFilename := strings.TrimSuffix(cfg.OutputFile, ".csv") + ".json"
		w, err := pipeline.NewDualWriter(cfg.OutputFile, jsonFilename)
		if err != nil {
			return nil, err
		}
		return pipeline.MultiWriter{text, w}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", cfg.OutputFormat)
	}
}

// runOnce submits a single action and waits for it to be displayed.
func (a *app) runOnce(cmd *cobra.Command, name string, op pipeline.Op) error {
	if _, err := a.pipeline.Submit(cmd.Context(), name, op); err != nil {
		return err
	}
	if err := a.pipeline.Close(); err != nil {
		return err
	}
	if outcomes, ok := a.pipeline.GetMetrics()["outcomes"].(map[string]int); ok && outcomes[pipeline.StatusError] > 0 {
		return errActionFailed
	}
	return nil
}
