package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aluiziolira/go-flickfinder/config"
	"github.com/aluiziolira/go-flickfinder/pipeline"
	"github.com/aluiziolira/go-flickfinder/tmdb"
)

const interactiveHelp = `commands:
  phrase <words...>        random photo for a text search
  location <lat> <lon>     random photo around a point
  gallery [gallery-id]     random photo from a gallery
  login <user> <password>  TMDB login
  image <url> [file]       download one image
  cancel                   cancel the action in flight
  history                  photos shown recently
  state                    current display state
  help                     this text
  quit                     wait for the action in flight and exit`

var errQuit = errors.New("quit")

func passwordFromEnv() string {
	password, _ := config.EnvString("FLICKFINDER_TMDB_PASSWORD")
	return password
}

// interactive reads one action per line. Actions run in the background; a new
// one cancels whatever is still in flight.
func (a *app) interactive(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "flickfinder interactive; type help for commands")

	lines := make(chan string)
	scanErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			a.pipeline.Cancel()
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			err := a.dispatch(ctx, line, out)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				fmt.Fprintln(out, err)
			}
		}
	}
}

// dispatch runs one interactive command line.
func (a *app) dispatch(ctx context.Context, line string, out io.Writer) error {
	name, rest := splitCommand(line)
	args := strings.Fields(rest)

	var (
		action string
		op     pipeline.Op
	)
	switch name {
	case "":
		return nil
	case "quit", "exit":
		return errQuit
	case "help":
		fmt.Fprintln(out, interactiveHelp)
		return nil
	case "cancel":
		a.pipeline.Cancel()
		return nil
	case "history":
		a.printHistory(out)
		return nil
	case "state":
		a.printState(out)
		return nil
	case actionPhrase:
		action, op = actionPhrase, a.phraseOp(rest)
	case actionLocation:
		if len(args) != 2 {
			return errors.New("usage: location <lat> <lon>")
		}
		action, op = actionLocation, a.locationOp(args[0], args[1])
	case actionGallery:
		if len(args) > 1 {
			return errors.New("usage: gallery [gallery-id]")
		}
		galleryID := ""
		if len(args) == 1 {
			galleryID = args[0]
		}
		action, op = actionGallery, a.galleryOp(galleryID)
	case actionLogin:
		if len(args) > 2 {
			return errors.New("usage: login <user> <password>")
		}
		var creds tmdb.Credentials
		if len(args) > 0 {
			creds.Username = args[0]
		}
		if len(args) > 1 {
			creds.Password = args[1]
		} else {
			creds.Password = passwordFromEnv()
		}
		action, op = actionLogin, a.loginOp(creds)
	case actionImage:
		if len(args) < 1 || len(args) > 2 {
			return errors.New("usage: image <url> [file]")
		}
		save := ""
		if len(args) == 2 {
			save = args[1]
		}
		action, op = actionImage, a.imageOp(args[0], save)
	default:
		return fmt.Errorf("unknown command %q, type help", name)
	}

	_, err := a.pipeline.Submit(ctx, action, op)
	return err
}

// splitCommand returns the first word of line and the trimmed remainder.
func splitCommand(line string) (string, string) {
	line = strings.TrimSpace(line)
	name, rest, _ := strings.Cut(line, " ")
	return strings.ToLower(name), strings.TrimSpace(rest)
}

func (a *app) printHistory(out io.Writer) {
	recent := a.pipeline.Recent()
	if len(recent) == 0 {
		fmt.Fprintln(out, "no photos shown yet")
		return
	}
	for i := len(recent) - 1; i >= 0; i-- {
		photo := recent[i]
		fmt.Fprintf(out, "%2d. %s  %s\n", len(recent)-i, pipeline.Sanitize(photo.Title), pipeline.Sanitize(photo.ImageURL))
	}
}

func (a *app) printState(out io.Writer) {
	surface := a.pipeline.Surface()
	status := "ready"
	if !surface.UIEnabled {
		status = "busy (" + surface.Operation + ")"
	}
	fmt.Fprintf(out, "status: %s\n", status)
	if surface.Photo != nil {
		fmt.Fprintf(out, "photo: %s  %s\n", pipeline.Sanitize(surface.Photo.Title), pipeline.Sanitize(surface.Photo.ImageURL))
	}
	if session, ok := a.sessions.Current(); ok {
		fmt.Fprintf(out, "logged in: user %d\n", session.UserID)
	}
	if surface.Message != "" {
		fmt.Fprintf(out, "message: %s\n", pipeline.Sanitize(surface.Message))
	}
}
