package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aluiziolira/go-flickfinder/models"
	"github.com/aluiziolira/go-flickfinder/pipeline"
	"github.com/fatih/color"
	"github.com/jarcoal/httpmock"
)

const (
	flickrURL = "https://api.flickr.test/services/rest"
	tmdbURL   = "https://api.tmdb.test/3"
)

// syncBuffer is written by the display worker and the interactive loop at once.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type testApp struct {
	app       *app
	stdout    *syncBuffer
	stderr    *os.File
	transport *httpmock.MockTransport
}

func newTestApp(t *testing.T, stdin string) *testApp {
	t.Helper()
	previous := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = previous })

	for _, key := range []string{"FLICKFINDER_FLICKR_API_KEY", "FLICKFINDER_TMDB_API_KEY", "FLICKFINDER_TMDB_PASSWORD"} {
		t.Setenv(key, "")
	}

	stderr, err := os.CreateTemp(t.TempDir(), "stderr")
	if err != nil {
		t.Fatalf("create stderr: %v", err)
	}
	t.Cleanup(func() { stderr.Close() })

	stdout := &syncBuffer{}
	transport := httpmock.NewMockTransport()
	return &testApp{
		app: &app{
			stdin:     strings.NewReader(stdin),
			stdout:    stdout,
			stderr:    stderr,
			transport: transport,
			rng:       rand.New(rand.NewPCG(1, 2)),
		},
		stdout:    stdout,
		stderr:    stderr,
		transport: transport,
	}
}

func (ta *testApp) run(args ...string) int {
	return run(context.Background(), ta.app, args)
}

func (ta *testApp) stderrText(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(ta.stderr.Name())
	if err != nil {
		t.Fatalf("read stderr: %v", err)
	}
	return string(data)
}

func jsonResponder(status int, body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(status, body)
	resp.Header.Set("Content-Type", "application/json")
	return httpmock.ResponderFromResponse(resp)
}

const galleryBody = `{"photos":{"page":1,"pages":1,"photo":[{"id":"1","title":"Harbour at dusk","url_m":"https://live.staticflickr.test/1/harbour_m.jpg"}]},"stat":"ok"}`

func flickrArgs(args ...string) []string {
	return append([]string{"--flickr-api-key", "k", "--flickr-base-url", flickrURL}, args...)
}

func TestRunGallery(t *testing.T) {
	ta := newTestApp(t, "")
	ta.transport.RegisterResponder("GET", flickrURL, jsonResponder(200, galleryBody))

	if code := ta.run(flickrArgs("gallery", "g-1")...); code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, ta.stderrText(t))
	}
	out := ta.stdout.String()
	if !strings.Contains(out, "[gallery] Harbour at dusk") || !strings.Contains(out, "query: gallery:g-1") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if got := ta.transport.GetTotalCallCount(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}

func TestRunPhraseEmptyFailsWithoutRequest(t *testing.T) {
	ta := newTestApp(t, "")

	if code := ta.run(flickrArgs("phrase", "  ")...); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if out := ta.stdout.String(); !strings.Contains(out, "[phrase] Phrase Empty.") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if got := ta.transport.GetTotalCallCount(); got != 0 {
		t.Fatalf("calls = %d, want 0", got)
	}
}

func TestRunLocationOutOfRange(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon string
	}{
		{name: "latitude too high", lat: "95", lon: "10"},
		{name: "NaN latitude", lat: "NaN", lon: "0"},
		{name: "NaN longitude", lat: "0", lon: "nan"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestApp(t, "")

			if code := ta.run(flickrArgs("location", tt.lat, tt.lon)...); code != 1 {
				t.Fatalf("exit code = %d, want 1", code)
			}
			if out := ta.stdout.String(); !strings.Contains(out, "Lat should be [-90, 90]. Lon should be [-180, 180].") {
				t.Fatalf("unexpected output:\n%s", out)
			}
			if got := ta.transport.GetTotalCallCount(); got != 0 {
				t.Fatalf("calls = %d, want 0", got)
			}
		})
	}
}

func TestRunMissingAPIKey(t *testing.T) {
	ta := newTestApp(t, "")

	if code := ta.run("gallery"); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if out := ta.stdout.String(); !strings.Contains(out, "Missing API key.") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestRunInvalidConfiguration(t *testing.T) {
	ta := newTestApp(t, "")

	if code := ta.run(flickrArgs("--page-cap", "0", "gallery")...); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if stderr := ta.stderrText(t); !strings.Contains(stderr, "invalid configuration") {
		t.Fatalf("unexpected stderr:\n%s", stderr)
	}
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	ta := newTestApp(t, "")
	t.Setenv("FLICKFINDER_MAX_PAGE_CAP", "10")
	t.Setenv("FLICKFINDER_BBOX_HALF_WIDTH", "0.5")
	ta.transport.RegisterResponder("GET", flickrURL, jsonResponder(200, galleryBody))

	if code := ta.run(flickrArgs("--page-cap", "5", "gallery")...); code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, ta.stderrText(t))
	}
	if ta.app.cfg.MaxPageCap != 5 {
		t.Fatalf("page cap = %d, want flag value 5", ta.app.cfg.MaxPageCap)
	}
	if ta.app.cfg.BBoxHalfWidth != 0.5 {
		t.Fatalf("bbox half width = %v, want env value 0.5", ta.app.cfg.BBoxHalfWidth)
	}
}

func registerLogin(transport *httpmock.MockTransport) {
	transport.RegisterResponder("GET", tmdbURL+"/authentication/token/new", jsonResponder(200, `{"success":true,"request_token":"abc"}`))
	transport.RegisterResponder("GET", tmdbURL+"/authentication/token/validate_with_login", jsonResponder(200, `{"success":1}`))
	transport.RegisterResponder("GET", tmdbURL+"/authentication/session/new", jsonResponder(200, `{"success":true,"session_id":"xyz"}`))
	transport.RegisterResponder("GET", tmdbURL+"/account", jsonResponder(200, `{"id":42}`))
}

func TestRunLoginWritesJSONL(t *testing.T) {
	ta := newTestApp(t, "")
	registerLogin(ta.transport)
	output := filepath.Join(t.TempDir(), "results.jsonl")

	code := ta.run("--tmdb-api-key", "k", "--tmdb-base-url", tmdbURL, "--format", "json", "--output", output, "--summary",
		"login", "--username", "alice", "--password", "s3cret")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, ta.stderrText(t))
	}

	out := ta.stdout.String()
	if !strings.Contains(out, "[login] logged in as user 42") || !strings.Contains(out, "Session summary") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(data), `"user_id":42`) || strings.Contains(string(data), "xyz") {
		t.Fatalf("unexpected jsonl:\n%s", data)
	}
	if session, ok := ta.app.sessions.Current(); !ok || session.SessionID != "xyz" {
		t.Fatalf("session store = %+v, %v", session, ok)
	}
	if got := ta.transport.GetTotalCallCount(); got != 4 {
		t.Fatalf("calls = %d, want 4", got)
	}
}

func TestRunImageSave(t *testing.T) {
	ta := newTestApp(t, "")
	ta.transport.RegisterResponder("GET", "https://img.test/a.jpg", httpmock.NewBytesResponder(200, []byte("jpeg")))
	dest := filepath.Join(t.TempDir(), "a.jpg")

	if code := ta.run("image", "https://img.test/a.jpg", "--save", dest); code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, ta.stderrText(t))
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "jpeg" {
		t.Fatalf("saved image = %q, %v", data, err)
	}
	if out := ta.stdout.String(); !strings.Contains(out, "saved to "+dest) {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestRunImageRejectsRelativeURL(t *testing.T) {
	ta := newTestApp(t, "")

	if code := ta.run("image", "/a.jpg"); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if got := ta.transport.GetTotalCallCount(); got != 0 {
		t.Fatalf("calls = %d, want 0", got)
	}
}

func TestRunImageRejectsOversizedBody(t *testing.T) {
	ta := newTestApp(t, "")
	t.Setenv("FLICKFINDER_MAX_BODY_BYTES", "4")
	ta.transport.RegisterResponder("GET", "https://img.test/big.jpg", httpmock.NewBytesResponder(200, []byte("0123456789")))
	dest := filepath.Join(t.TempDir(), "big.jpg")

	if code := ta.run("image", "https://img.test/big.jpg", "--save", dest); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("partial image written to %s (stat err %v)", dest, err)
	}
	if out := ta.stdout.String(); !strings.Contains(out, "Can't retrieve image!") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestHistoryAndStateEscapeAPIText(t *testing.T) {
	p, err := pipeline.NewPipeline(nil, pipeline.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	a := &app{pipeline: p, sessions: &sessionStore{}}

	if _, err := p.Submit(context.Background(), actionGallery, func(ctx context.Context) (*models.Result, error) {
		return &models.Result{Photo: &models.Photo{
			Title:    "dusk\x1b]0;owned\x07",
			ImageURL: "https://img.test/\x1b[2J.jpg",
		}}, nil
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for p.Surface().Photo == nil {
		if time.Now().After(deadline) {
			t.Fatalf("photo never displayed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	var out bytes.Buffer
	a.printHistory(&out)
	a.printState(&out)
	text := out.String()
	if strings.ContainsAny(text, "\x1b\x07") {
		t.Fatalf("raw control characters in output: %q", text)
	}
	if !strings.Contains(text, `dusk\x1b]0;owned\x07`) || !strings.Contains(text, `https://img.test/\x1b[2J.jpg`) {
		t.Fatalf("escaped text missing:\n%s", text)
	}
}

func TestInteractive(t *testing.T) {
	ta := newTestApp(t, "help\nbogus\nlocation 1\ngallery\nquit\nphrase never sent\n")
	ta.transport.RegisterResponder("GET", flickrURL, jsonResponder(200, galleryBody))

	if code := ta.run(flickrArgs("interactive")...); code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, ta.stderrText(t))
	}
	out := ta.stdout.String()
	for _, want := range []string{
		"commands:",
		`unknown command "bogus"`,
		"usage: location <lat> <lon>",
		"[gallery] Harbour at dusk",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "[phrase]") {
		t.Fatalf("lines after quit must be ignored:\n%s", out)
	}
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		line, name, rest string
	}{
		{line: "  Phrase golden   gate ", name: "phrase", rest: "golden   gate"},
		{line: "gallery", name: "gallery", rest: ""},
		{line: "", name: "", rest: ""},
	}
	for _, tt := range tests {
		name, rest := splitCommand(tt.line)
		if name != tt.name || rest != tt.rest {
			t.Fatalf("splitCommand(%q) = %q, %q", tt.line, name, rest)
		}
	}
}

func TestSessionStore(t *testing.T) {
	store := &sessionStore{}
	if _, ok := store.Current(); ok {
		t.Fatalf("new store should be empty")
	}
	if err := store.CompleteLogin(context.Background(), models.Session{}); !errors.Is(err, errSessionEmpty) {
		t.Fatalf("expected errSessionEmpty, got %v", err)
	}
	if err := store.CompleteLogin(context.Background(), models.Session{SessionID: "xyz", UserID: 42}); err != nil {
		t.Fatalf("complete login: %v", err)
	}
	if session, ok := store.Current(); !ok || session.UserID != 42 {
		t.Fatalf("current = %+v, %v", session, ok)
	}
}
