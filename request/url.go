// Package request builds API request URLs from a base endpoint and a parameter map.
package request

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"
)

// Params maps query parameter names to values.
type Params map[string]string

// Clone returns an independent copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// With returns a copy of p with key set to value.
func (p Params) With(key, value string) Params {
	out := p.Clone()
	out[key] = value
	return out
}

// Descriptor is the immutable description of one request.
type Descriptor struct {
	Scheme string
	Host   string
	Path   string
	Params Params
}

// FromBase splits a base URL such as https://api.flickr.com/services/rest into a
// descriptor, appending pathExt to its path.
func FromBase(base, pathExt string, params Params) (Descriptor, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return Descriptor{}, &InvalidParameterError{Key: "base", Reason: err.Error()}
	}
	return Descriptor{
		Scheme: parsed.Scheme,
		Host:   parsed.Host,
		Path:   strings.TrimRight(parsed.Path, "/") + pathExt,
		Params: params,
	}, nil
}

// InvalidParameterError reports a descriptor that cannot be turned into a URL.
type InvalidParameterError struct {
	Key    string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("invalid parameter: %s", e.Reason)
	}
	return fmt.Sprintf("invalid parameter %q: %s", e.Key, e.Reason)
}

// BuildURL renders d as scheme://host/path?k1=v1&k2=v2 with keys in sorted order.
func BuildURL(d Descriptor) (*url.URL, error) {
	switch {
	case d.Scheme == "":
		return nil, &InvalidParameterError{Key: "scheme", Reason: "empty"}
	case d.Host == "":
		return nil, &InvalidParameterError{Key: "host", Reason: "empty"}
	case d.Path == "":
		return nil, &InvalidParameterError{Key: "path", Reason: "empty"}
	}

	query, err := Encode(d.Params)
	if err != nil {
		return nil, err
	}

	path := d.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &url.URL{
		Scheme:   d.Scheme,
		Host:     d.Host,
		Path:     path,
		RawQuery: query,
	}, nil
}

// Encode serialises params as a query string without the leading '?'.
func Encode(params Params) (string, error) {
	keys := make([]string, 0, len(params))
	for key := range params {
		if key == "" {
			return "", &InvalidParameterError{Reason: "empty key"}
		}
		if !utf8.ValidString(key) {
			return "", &InvalidParameterError{Key: key, Reason: "key is not valid UTF-8"}
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		value := params[key]
		if !utf8.ValidString(value) {
			return "", &InvalidParameterError{Key: key, Reason: "value is not valid UTF-8"}
		}
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(Escape(key))
		b.WriteByte('=')
		b.WriteString(Escape(value))
	}
	return b.String(), nil
}

const upperhex = "0123456789ABCDEF"

// Escape percent-encodes every byte outside the unreserved set A-Z a-z 0-9 - . _ ~.
func Escape(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !unreserved(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}

	buf := make([]byte, 0, len(s)+2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			buf = append(buf, c)
			continue
		}
		buf = append(buf, '%', upperhex[c>>4], upperhex[c&15])
	}
	return string(buf)
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}
