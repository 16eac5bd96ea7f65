package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/aluiziolira/go-flickfinder/config"
	"github.com/aluiziolira/go-flickfinder/extract"
	"github.com/aluiziolira/go-flickfinder/fetcher"
	"github.com/aluiziolira/go-flickfinder/flickr"
	"github.com/aluiziolira/go-flickfinder/request"
	"github.com/aluiziolira/go-flickfinder/tmdb"
)

// UserMessage maps any failure of an action to the one line shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, context.Canceled):
		return "Cancelled."
	case errors.Is(err, flickr.ErrEmptyPhrase):
		return "Phrase Empty."
	case errors.Is(err, flickr.ErrCoordinateRange):
		return "Lat should be [-90, 90]. Lon should be [-180, 180]."
	case errors.Is(err, flickr.ErrEmptyGallery):
		return "No gallery configured."
	case errors.Is(err, tmdb.ErrEmptyCredentials):
		return "Username or Password Empty."
	case errors.Is(err, tmdb.ErrLoginRejected):
		return "Login failed (wrong username/password)."
	case errors.Is(err, config.ErrMissingAPIKey):
		return "Missing API key."
	case errors.Is(err, flickr.ErrImageRetrieval):
		return "Can't retrieve image!"
	}

	var loginErr *tmdb.LoginError
	if errors.As(err, &loginErr) && extract.KindOf(err) != 0 {
		return loginStepMessage(loginErr.From)
	}

	var paramErr *request.InvalidParameterError
	if errors.As(err, &paramErr) {
		return fmt.Sprintf("Invalid request parameter %q.", paramErr.Key)
	}

	var extErr *extract.Error
	if errors.As(err, &extErr) {
		return extractionMessage(extErr)
	}

	var fetchErr *fetcher.FetchError
	if errors.As(err, &fetchErr) {
		return fetchMessage(err, fetchErr)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "Request timed out."
	}
	return "Something went wrong."
}

// ErrorType returns the label recorded with a failed result.
func ErrorType(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, flickr.ErrEmptyPhrase),
		errors.Is(err, flickr.ErrCoordinateRange),
		errors.Is(err, flickr.ErrEmptyGallery),
		errors.Is(err, tmdb.ErrEmptyCredentials),
		errors.Is(err, config.ErrMissingAPIKey):
		return "invalid_input"
	}

	var paramErr *request.InvalidParameterError
	if errors.As(err, &paramErr) {
		return "invalid_parameter"
	}
	if kind := extract.KindOf(err); kind != 0 {
		return kind.String()
	}
	if fetcher.ReasonOf(err) != "" {
		return fetcher.ErrorTypeLabel(err)
	}
	return "other"
}

func loginStepMessage(from tmdb.State) string {
	switch from {
	case tmdb.Idle:
		return "Can't get request token."
	case tmdb.TokenRequested:
		return "Login failed (wrong username/password)."
	case tmdb.TokenValidated:
		return "Can't get session id."
	case tmdb.SessionCreated:
		return "Can't get user id."
	default:
		return "Login failed."
	}
}

func extractionMessage(err *extract.Error) string {
	switch err.Kind {
	case extract.ParseFailed:
		return "Can't parse JSON response."
	case extract.EmptyCollection:
		return "No photos found. Search again."
	case extract.MissingField:
		return fmt.Sprintf("Cannot find key '%s' in response.", err.Path)
	case extract.InvalidValue:
		if err.Path == "stat" && err.Err != nil {
			return fmt.Sprintf("API error: %v.", err.Err)
		}
		if err.Path == "url_m" {
			return "Invalid image url."
		}
		return fmt.Sprintf("Invalid '%s' in response.", err.Path)
	default:
		return "Unexpected response."
	}
}

func fetchMessage(err error, fetchErr *fetcher.FetchError) string {
	switch fetchErr.Reason {
	case fetcher.ReasonEmptyBody:
		return "No data was returned by the request!"
	case fetcher.ReasonBadStatus:
		switch fetcher.ErrorTypeLabel(err) {
		case "unauthorized":
			return "Request was not authorized (check the API key)."
		case "rate_limited":
			return "Too many requests, try again later."
		}
		return fmt.Sprintf("Your request returned a status code other than 2xx! (%d)", fetchErr.StatusCode)
	default:
		if errors.Is(err, fetcher.ErrBodyTooLarge) {
			return "Response too large."
		}
		if fetcher.ErrorTypeLabel(err) == "timeout" {
			return "Request timed out."
		}
		return "There was an error with your request: could not reach the server."
	}
}
