package tmdb

import (
	"errors"

	"github.com/aluiziolira/go-flickfinder/extract"
)

const (
	pathRequestToken = "/authentication/token/new"
	pathValidate     = "/authentication/token/validate_with_login"
	pathSession      = "/authentication/session/new"
	pathAccount      = "/account"

	paramAPIKey       = "api_key"
	paramRequestToken = "request_token"
	paramUsername     = "username"
	paramPassword     = "password"
	paramSessionID    = "session_id"
)

var (
	requestTokenPath = extract.Keys("request_token")
	successPath      = extract.Keys("success")
	sessionIDPath    = extract.Keys("session_id")
	accountIDPath    = extract.Keys("id")
)

// ErrLoginRejected is returned when the credentials are refused.
var ErrLoginRejected = errors.New("tmdb: login rejected")

type tokenResponse struct {
	RequestToken string
}

type validateResponse struct {
	Success bool
}

type sessionResponse struct {
	SessionID string
}

type accountResponse struct {
	ID int
}

func parseToken(payload any) (tokenResponse, error) {
	token, err := extract.String(payload, requestTokenPath, nil)
	if err != nil {
		return tokenResponse{}, err
	}
	if token == "" {
		return tokenResponse{}, extract.Invalid(requestTokenPath.String(), errors.New("empty request token"))
	}
	return tokenResponse{RequestToken: token}, nil
}

// parseValidate accepts {"success":1} as well as {"success":true}; a present
// but false value means the credentials were refused.
func parseValidate(payload any) (validateResponse, error) {
	ok, err := extract.Bool(payload, successPath, nil)
	if err != nil {
		return validateResponse{}, err
	}
	if !ok {
		return validateResponse{}, extract.Invalid(successPath.String(), ErrLoginRejected)
	}
	return validateResponse{Success: true}, nil
}

func parseSession(payload any) (sessionResponse, error) {
	id, err := extract.String(payload, sessionIDPath, nil)
	if err != nil {
		return sessionResponse{}, err
	}
	if id == "" {
		return sessionResponse{}, extract.Invalid(sessionIDPath.String(), errors.New("empty session id"))
	}
	return sessionResponse{SessionID: id}, nil
}

func parseAccount(payload any) (accountResponse, error) {
	id, err := extract.Int(payload, accountIDPath, nil)
	if err != nil {
		return accountResponse{}, err
	}
	return accountResponse{ID: id}, nil
}
