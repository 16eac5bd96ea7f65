package pipeline

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode"

	"github.com/aluiziolira/go-flickfinder/models"
	"github.com/fatih/color"
)

var (
	okColor     = color.New(color.FgGreen, color.Bold)
	errColor    = color.New(color.FgRed, color.Bold)
	titleColor  = color.New(color.FgCyan, color.Bold)
	urlColor    = color.New(color.FgBlue)
	repeatColor = color.New(color.FgYellow)
	dimColor    = color.New(color.Faint)
)

// TextWriter renders results for a terminal.
type TextWriter struct {
	out io.Writer
	mu  sync.Mutex
}

// NewTextWriter writes to out. Colors follow color.NoColor.
func NewTextWriter(out io.Writer) *TextWriter {
	return &TextWriter{out: out}
}

func (tw *TextWriter) Write(results []*models.Result) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	for _, result := range results {
		if err := tw.writeOne(result); err != nil {
			return err
		}
	}
	return nil
}

func (tw *TextWriter) writeOne(result *models.Result) error {
	var b strings.Builder
	if result.Status == StatusError {
		errColor.Fprintf(&b, "[%s] ", result.Operation)
		b.WriteString(Sanitize(result.Message))
		dimColor.Fprintf(&b, " (%s)", result.ErrorType)
		b.WriteByte('\n')
		_, err := io.WriteString(tw.out, b.String())
		return err
	}

	okColor.Fprintf(&b, "[%s] ", result.Operation)
	switch {
	case result.Photo != nil:
		photo := result.Photo
		title := Sanitize(photo.Title)
		if title == "" {
			title = "(untitled)"
		}
		titleColor.Fprint(&b, title)
		b.WriteByte('\n')
		b.WriteString("  ")
		urlColor.Fprint(&b, Sanitize(photo.ImageURL))
		b.WriteByte('\n')
		details := []string{}
		if photo.Query != "" {
			details = append(details, "query: "+Sanitize(photo.Query))
		}
		if photo.Page > 0 {
			details = append(details, fmt.Sprintf("page: %d", photo.Page))
		}
		if photo.ImageSize > 0 {
			details = append(details, fmt.Sprintf("image: %d bytes", photo.ImageSize))
		}
		if len(details) > 0 {
			dimColor.Fprintf(&b, "  %s\n", strings.Join(details, ", "))
		}
		if result.Repeat {
			repeatColor.Fprint(&b, "  shown before\n")
		}
		if result.Message != "" {
			dimColor.Fprintf(&b, "  %s\n", Sanitize(result.Message))
		}
	case result.Session != nil:
		fmt.Fprintf(&b, "logged in as user %d\n", result.Session.UserID)
	default:
		b.WriteString(Sanitize(result.Message))
		b.WriteByte('\n')
	}
	_, err := io.WriteString(tw.out, b.String())
	return err
}

func (tw *TextWriter) Close() error { return nil }

func (tw *TextWriter) Validate() error { return nil }

// Sanitize escapes control characters so API text cannot drive the terminal.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\x1b':
			b.WriteString("\\x1b")
		case r == 0x7F:
			b.WriteString("\\x7f")
		case unicode.IsControl(r):
			fmt.Fprintf(&b, "\\x%02x", r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
