// Package models defines data structures shared by the API clients and the display pipeline.
package models

import "time"

// APIResponse is the validated outcome of a single GET request.
type APIResponse struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Photo is one Flickr photo picked for display.
type Photo struct {
	Title     string    `csv:"title" json:"title"`
	ImageURL  string    `csv:"image_url" json:"image_url"`
	Page      int       `csv:"page" json:"page,omitempty"`
	Query     string    `csv:"query" json:"query"`
	ImageSize int       `csv:"image_size" json:"image_size,omitempty"`
	FetchedAt time.Time `csv:"fetched_at" json:"fetched_at"`

	Image []byte `csv:"-" json:"-"`
}

// Session is the outcome of a completed TMDB login.
type Session struct {
	RequestToken string `json:"-"`
	SessionID    string `json:"session_id"`
	UserID       int    `json:"user_id"`
}

// Result is what one user action hands to the display surface.
type Result struct {
	OperationID string    `json:"operation_id"`
	Operation   string    `json:"operation"`
	Status      string    `json:"status"` // ok or error
	Photo       *Photo    `json:"photo,omitempty"`
	Session     *Session  `json:"session,omitempty"`
	Repeat      bool      `json:"repeat,omitempty"`
	Message     string    `json:"message,omitempty"`
	ErrorType   string    `json:"error_type,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// FetchStats summarises transport activity for a run.
type FetchStats struct {
	StartTime    time.Time
	EndTime      time.Time
	RequestCount int
	ErrorCount   int
	ErrorsByType map[string]int
}
