// Package extract decodes JSON payloads and walks them along explicit paths,
// failing on the first step whose container or key is missing.
package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type stepKind int

const (
	stepKey stepKind = iota
	stepIndex
	stepRandom
)

// Step is one hop into a decoded payload.
type Step struct {
	kind  stepKind
	key   string
	index int
}

// Key selects a member of an object.
func Key(name string) Step { return Step{kind: stepKey, key: name} }

// Index selects a fixed element of an array.
func Index(i int) Step { return Step{kind: stepIndex, index: i} }

// Random selects a uniformly random element of an array.
func Random() Step { return Step{kind: stepRandom} }

// Path is an ordered sequence of steps.
type Path []Step

// Keys builds a path of object keys.
func Keys(names ...string) Path {
	p := make(Path, 0, len(names))
	for _, name := range names {
		p = append(p, Key(name))
	}
	return p
}

// Then returns a new path with steps appended.
func (p Path) Then(steps ...Step) Path {
	out := make(Path, 0, len(p)+len(steps))
	out = append(out, p...)
	return append(out, steps...)
}

func (p Path) String() string {
	return p.render(len(p))
}

func (p Path) render(n int) string {
	var b strings.Builder
	for i := 0; i < n && i < len(p); i++ {
		switch s := p[i]; s.kind {
		case stepKey:
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			b.WriteString(s.key)
		case stepIndex:
			b.WriteString("[" + strconv.Itoa(s.index) + "]")
		case stepRandom:
			b.WriteString("[*]")
		}
	}
	return b.String()
}

// Decode parses body as a single JSON value. Numbers are kept as json.Number.
func Decode(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, &Error{Kind: ParseFailed, Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &Error{Kind: ParseFailed, Err: fmt.Errorf("trailing data after JSON value")}
	}
	return payload, nil
}

// Walk follows path through payload. rng is only consulted for Random steps and
// may be nil, in which case the package default is used.
func Walk(payload any, path Path, rng Rand) (any, error) {
	if rng == nil {
		rng = Default
	}

	current := payload
	for i, step := range path {
		switch step.kind {
		case stepKey:
			obj, ok := current.(map[string]any)
			if !ok {
				return nil, missing(path, i, fmt.Errorf("expected object, got %s", typeName(current)))
			}
			next, ok := obj[step.key]
			if !ok || next == nil {
				return nil, missing(path, i, fmt.Errorf("key %q not found", step.key))
			}
			current = next

		case stepIndex:
			arr, ok := current.([]any)
			if !ok {
				return nil, missing(path, i, fmt.Errorf("expected array, got %s", typeName(current)))
			}
			if step.index < 0 || step.index >= len(arr) {
				return nil, missing(path, i, fmt.Errorf("index %d out of range [0,%d)", step.index, len(arr)))
			}
			current = arr[step.index]

		case stepRandom:
			arr, ok := current.([]any)
			if !ok {
				return nil, missing(path, i, fmt.Errorf("expected array, got %s", typeName(current)))
			}
			idx, err := RandomIndex(rng, len(arr))
			if err != nil {
				return nil, &Error{Kind: EmptyCollection, Step: i, Path: path.render(i + 1)}
			}
			current = arr[idx]
		}
	}
	return current, nil
}

// String walks path and requires a JSON string at its end.
func String(payload any, path Path, rng Rand) (string, error) {
	node, err := Walk(payload, path, rng)
	if err != nil {
		return "", err
	}
	s, ok := node.(string)
	if !ok {
		return "", missing(path, len(path)-1, fmt.Errorf("expected string, got %s", typeName(node)))
	}
	return s, nil
}

// Int walks path and requires an integral JSON number at its end.
func Int(payload any, path Path, rng Rand) (int, error) {
	node, err := Walk(payload, path, rng)
	if err != nil {
		return 0, err
	}
	num, ok := node.(json.Number)
	if !ok {
		return 0, missing(path, len(path)-1, fmt.Errorf("expected number, got %s", typeName(node)))
	}
	n, err := strconv.Atoi(num.String())
	if err != nil {
		return 0, missing(path, len(path)-1, fmt.Errorf("expected integer, got %s", num.String()))
	}
	return n, nil
}

// Bool walks path and accepts either a JSON boolean or the integers 0 and 1.
func Bool(payload any, path Path, rng Rand) (bool, error) {
	node, err := Walk(payload, path, rng)
	if err != nil {
		return false, err
	}
	switch v := node.(type) {
	case bool:
		return v, nil
	case json.Number:
		switch v.String() {
		case "1":
			return true, nil
		case "0":
			return false, nil
		}
	}
	return false, missing(path, len(path)-1, fmt.Errorf("expected boolean, got %s", typeName(node)))
}

// Array walks path and requires a JSON array at its end.
func Array(payload any, path Path, rng Rand) ([]any, error) {
	node, err := Walk(payload, path, rng)
	if err != nil {
		return nil, err
	}
	arr, ok := node.([]any)
	if !ok {
		return nil, missing(path, len(path)-1, fmt.Errorf("expected array, got %s", typeName(node)))
	}
	return arr, nil
}

func missing(path Path, step int, err error) *Error {
	if step < 0 {
		step = 0
	}
	return &Error{Kind: MissingField, Step: step, Path: path.render(step + 1), Err: err}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
