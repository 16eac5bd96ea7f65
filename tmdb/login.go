// Package tmdb runs the TheMovieDB login chain: request token, validate it with
// the user's credentials, create a session and look up the account id.
package tmdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/aluiziolira/go-flickfinder/config"
	"github.com/aluiziolira/go-flickfinder/extract"
	"github.com/aluiziolira/go-flickfinder/models"
	"github.com/aluiziolira/go-flickfinder/request"
)

// State is a position in the login chain.
type State int

const (
	Idle State = iota
	TokenRequested
	TokenValidated
	SessionCreated
	UserIdentified
	Complete
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case TokenRequested:
		return "token_requested"
	case TokenValidated:
		return "token_validated"
	case SessionCreated:
		return "session_created"
	case UserIdentified:
		return "user_identified"
	case Complete:
		return "complete"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Complete || s == Error
}

var (
	// ErrChainUsed is returned when Run is called twice on the same chain.
	ErrChainUsed = errors.New("tmdb: login chain already run")
	// ErrEmptyCredentials is returned for a blank username or password.
	ErrEmptyCredentials = errors.New("tmdb: username or password empty")
)

// Credentials are the user's TMDB login.
type Credentials struct {
	Username string
	Password string
}

// SessionSink receives the session of a successful login. It is called once,
// before the chain reports Complete.
type SessionSink interface {
	CompleteLogin(ctx context.Context, session models.Session) error
}

// Fetcher performs the GET requests.
type Fetcher interface {
	Fetch(ctx context.Context, target *url.URL) (*models.APIResponse, error)
}

// TransitionRecorder counts state changes; *fetcher.Metrics implements it.
type TransitionRecorder interface {
	IncTransition(state string)
}

// LoginError records the state the chain was in when a step failed.
type LoginError struct {
	From State
	Err  error
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("tmdb login failed after %s: %v", e.From, e.Err)
}

func (e *LoginError) Unwrap() error {
	return e.Err
}

// Chain is a single-use login state machine.
type Chain struct {
	fetcher Fetcher
	cfg     *config.Config
	sink    SessionSink
	metrics TransitionRecorder
	logger  *slog.Logger

	mu          sync.Mutex
	used        bool
	state       State
	err         error
	transitions []State
}

// NewChain returns a chain in the Idle state. metrics may be nil.
func NewChain(f Fetcher, cfg *config.Config, sink SessionSink, metrics TransitionRecorder, logger *slog.Logger) (*Chain, error) {
	if err := cfg.RequireTMDB(); err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, errors.New("tmdb: nil session sink")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		fetcher:     f,
		cfg:         cfg,
		sink:        sink,
		metrics:     metrics,
		logger:      logger.With(slog.String("api", "tmdb")),
		state:       Idle,
		transitions: []State{Idle},
	}, nil
}

// Run drives the chain to Complete or Error. Each request carries the value
// produced by the step before it; the first failure stops the chain.
func (c *Chain) Run(ctx context.Context, creds Credentials) (models.Session, error) {
	c.mu.Lock()
	if c.used {
		c.mu.Unlock()
		return models.Session{}, ErrChainUsed
	}
	c.used = true
	c.mu.Unlock()

	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		return models.Session{}, c.fail(ErrEmptyCredentials)
	}

	var session models.Session

	payload, err := c.get(ctx, pathRequestToken, nil)
	if err != nil {
		return models.Session{}, c.fail(err)
	}
	token, err := parseToken(payload)
	if err != nil {
		return models.Session{}, c.fail(err)
	}
	session.RequestToken = token.RequestToken
	c.advance(TokenRequested)

	payload, err = c.get(ctx, pathValidate, request.Params{
		paramRequestToken: session.RequestToken,
		paramUsername:     creds.Username,
		paramPassword:     creds.Password,
	})
	if err != nil {
		return models.Session{}, c.fail(err)
	}
	if _, err := parseValidate(payload); err != nil {
		return models.Session{}, c.fail(err)
	}
	c.advance(TokenValidated)

	payload, err = c.get(ctx, pathSession, request.Params{paramRequestToken: session.RequestToken})
	if err != nil {
		return models.Session{}, c.fail(err)
	}
	created, err := parseSession(payload)
	if err != nil {
		return models.Session{}, c.fail(err)
	}
	session.SessionID = created.SessionID
	c.advance(SessionCreated)

	payload, err = c.get(ctx, pathAccount, request.Params{paramSessionID: session.SessionID})
	if err != nil {
		return models.Session{}, c.fail(err)
	}
	account, err := parseAccount(payload)
	if err != nil {
		return models.Session{}, c.fail(err)
	}
	session.UserID = account.ID
	c.advance(UserIdentified)

	if err := c.sink.CompleteLogin(ctx, session); err != nil {
		return models.Session{}, c.fail(fmt.Errorf("complete login: %w", err))
	}
	c.advance(Complete)
	return session, nil
}

// State returns the current state.
func (c *Chain) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the failure that moved the chain to Error, if any.
func (c *Chain) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Transitions returns every state visited so far, starting with Idle.
func (c *Chain) Transitions() []State {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]State, len(c.transitions))
	copy(out, c.transitions)
	return out
}

func (c *Chain) advance(next State) {
	c.mu.Lock()
	c.state = next
	c.transitions = append(c.transitions, next)
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.IncTransition(next.String())
	}
	c.logger.Debug("login transition", slog.String("state", next.String()))
}

func (c *Chain) fail(err error) error {
	c.mu.Lock()
	from := c.state
	loginErr := &LoginError{From: from, Err: err}
	c.state = Error
	c.err = loginErr
	c.transitions = append(c.transitions, Error)
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.IncTransition(Error.String())
	}
	c.logger.Warn("login failed",
		slog.String("after", from.String()),
		slog.Any("error", err),
	)
	return loginErr
}

func (c *Chain) get(ctx context.Context, path string, params request.Params) (any, error) {
	params = params.With(paramAPIKey, c.cfg.TMDBAPIKey)
	desc, err := request.FromBase(c.cfg.TMDBBaseURL, path, params)
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
	return extract.Decode(resp.Body)
}
