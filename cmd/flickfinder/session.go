package main

import (
	"context"
	"errors"
	"sync"

	"github.com/aluiziolira/go-flickfinder/models"
)

var errSessionEmpty = errors.New("session id is empty")

// sessionStore keeps the logged-in session for the life of the process.
type sessionStore struct {
	mu      sync.RWMutex
	session models.Session
	ok      bool
}

func (s *sessionStore) CompleteLogin(ctx context.Context, session models.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if session.SessionID == "" {
		return errSessionEmpty
	}
	s.mu.Lock()
	s.session = session
	s.ok = true
	s.mu.Unlock()
	return nil
}

func (s *sessionStore) Current() (models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session, s.ok
}
