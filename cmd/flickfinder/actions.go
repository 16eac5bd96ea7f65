package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/aluiziolira/go-flickfinder/flickr"
	"github.com/aluiziolira/go-flickfinder/models"
	"github.com/aluiziolira/go-flickfinder/parser"
	"github.com/aluiziolira/go-flickfinder/pipeline"
	"github.com/aluiziolira/go-flickfinder/request"
	"github.com/aluiziolira/go-flickfinder/tmdb"
)

// Action names used in logs, metrics and result rows.
const (
	actionPhrase   = "phrase"
	actionLocation = "location"
	actionGallery  = "gallery"
	actionLogin    = "login"
	actionImage    = "image"
)

func (a *app) flickrClient() (*flickr.Client, error) {
	return flickr.New(a.fetcher, a.cfg, a.rng, a.logger)
}

func (a *app) phraseOp(phrase string) pipeline.Op {
	return func(ctx context.Context) (*models.Result, error) {
		client, err := a.flickrClient()
		if err != nil {
			return nil, err
		}
		photo, err := client.SearchByPhrase(ctx, phrase)
		if err != nil {
			return nil, err
		}
		return &models.Result{Photo: photo}, nil
	}
}

// locationOp parses the coordinates inside the action so that bad input is
// reported on the display like any other failure.
func (a *app) locationOp(latText, lonText string) pipeline.Op {
	return func(ctx context.Context) (*models.Result, error) {
		lat, err := parser.ParseCoordinate(latText, parser.MinLatitude, parser.MaxLatitude)
		if err != nil {
			return nil, fmt.Errorf("%w: latitude: %v", flickr.ErrCoordinateRange, err)
		}
		lon, err := parser.ParseCoordinate(lonText, parser.MinLongitude, parser.MaxLongitude)
		if err != nil {
			return nil, fmt.Errorf("%w: longitude: %v", flickr.ErrCoordinateRange, err)
		}
		client, err := a.flickrClient()
		if err != nil {
			return nil, err
		}
		photo, err := client.SearchByLocation(ctx, lat, lon)
		if err != nil {
			return nil, err
		}
		return &models.Result{Photo: photo}, nil
	}
}

func (a *app) galleryOp(galleryID string) pipeline.Op {
	return func(ctx context.Context) (*models.Result, error) {
		client, err := a.flickrClient()
		if err != nil {
			return nil, err
		}
		photo, err := client.Gallery(ctx, galleryID)
		if err != nil {
			return nil, err
		}
		return &models.Result{Photo: photo}, nil
	}
}

func (a *app) loginOp(creds tmdb.Credentials) pipeline.Op {
	return func(ctx context.Context) (*models.Result, error) {
		chain, err := tmdb.NewChain(a.fetcher, a.cfg, a.sessions, a.fetcher.Metrics, a.logger)
		if err != nil {
			return nil, err
		}
		session, err := chain.Run(ctx, creds)
		if err != nil {
			return nil, err
		}
		return &models.Result{Session: &session}, nil
	}
}

// imageOp downloads one image and, when out is set, saves it there.
func (a *app) imageOp(rawURL, out string) pipeline.Op {
	return func(ctx context.Context) (*models.Result, error) {
		if err := parser.ValidateImageURL(rawURL); err != nil {
			return nil, &request.InvalidParameterError{Key: "url", Reason: err.Error()}
		}
		target, err := url.Parse(rawURL)
		if err != nil {
			return nil, &request.InvalidParameterError{Key: "url", Reason: err.Error()}
		}
		resp, err := a.fetcher.FetchImage(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", flickr.ErrImageRetrieval, err)
		}

		photo := &models.Photo{
			Title:     path.Base(target.Path),
			ImageURL:  target.String(),
			ImageSize: len(resp.Body),
			FetchedAt: time.Now(),
		}
		result := &models.Result{Photo: photo}
		if out != "" {
			if err := os.WriteFile(out, resp.Body, 0o644); err != nil {
				return nil, fmt.Errorf("save image: %w", err)
			}
			result.Message = "saved to " + out
		}
		return result, nil
	}
}
