// Package headers implements a case-insensitive, order-preserving, multi
// valued HTTP header collection, the "Headers" data type of the gateway's
// request/response model.
package headers

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidHeaderName is returned when a header name does not match the
// RFC 7230 token class.
var ErrInvalidHeaderName = errors.New("headers: invalid header name")

var tokenRE = regexp.MustCompile(`^[A-Za-z0-9!#$%&'*+\-.^_` + "`" + `|~]+$`)

// Headers is a case-insensitive multi-value header map that preserves the
// insertion order of distinct header names for iteration.
type Headers struct {
	values map[string][]string
	order  []string // lower-cased names, in first-insertion order
}

// New returns an empty Headers collection.
func New() *Headers {
	return &Headers{values: make(map[string][]string)}
}

// FromMap builds a Headers collection from a map of scalar or slice values.
// Supported value types are string and []string.
func FromMap(m map[string]any) (*Headers, error) {
	h := New()
	for k, v := range m {
		switch vv := v.(type) {
		case string:
			if err := h.Set(k, vv); err != nil {
				return nil, err
			}
		case []string:
			for _, s := range vv {
				if err := h.Append(k, s); err != nil {
					return nil, err
				}
			}
		default:
			return nil, fmt.Errorf("headers: unsupported value type %T for %q", v, k)
		}
	}
	return h, nil
}

// FromPairs builds a Headers collection from an ordered list of (name,
// value) pairs, preserving duplicates as multi-value entries.
func FromPairs(pairs [][2]string) (*Headers, error) {
	h := New()
	for _, p := range pairs {
		if err := h.Append(p[0], p[1]); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Clone copies another Headers collection, including iteration order.
func Clone(other *Headers) *Headers {
	h := New()
	if other == nil {
		return h
	}
	for _, name := range other.order {
		h.order = append(h.order, name)
		h.values[name] = append([]string(nil), other.values[name]...)
	}
	return h
}

func normalize(name string) (string, error) {
	if !tokenRE.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidHeaderName, name)
	}
	return strings.ToLower(name), nil
}

// Set replaces all existing values for name with a single value.
func (h *Headers) Set(name, value string) error {
	key, err := normalize(name)
	if err != nil {
		return err
	}
	if _, exists := h.values[key]; !exists {
		h.order = append(h.order, key)
	}
	h.values[key] = []string{value}
	return nil
}

// Append adds value to name's list of values, preserving any existing ones.
func (h *Headers) Append(name, value string) error {
	key, err := normalize(name)
	if err != nil {
		return err
	}
	if _, exists := h.values[key]; !exists {
		h.order = append(h.order, key)
	}
	h.values[key] = append(h.values[key], value)
	return nil
}

// Get returns the first value for name, case-insensitively, and whether it
// was present at all.
func (h *Headers) Get(name string) (string, bool) {
	key, err := normalize(name)
	if err != nil {
		return "", false
	}
	v, ok := h.values[key]
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[0], true
}

// GetAll returns every value for name, case-insensitively.
func (h *Headers) GetAll(name string) []string {
	key, err := normalize(name)
	if err != nil {
		return nil
	}
	return h.values[key]
}

// Has reports whether name has at least one value.
func (h *Headers) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// Iterate calls fn for every header name (lower-cased) and its values, in
// insertion order.
func (h *Headers) Iterate(fn func(name string, values []string)) {
	for _, name := range h.order {
		fn(name, h.values[name])
	}
}

// Names returns the lower-cased header names in insertion order.
func (h *Headers) Names() []string {
	return append([]string(nil), h.order...)
}

// MarshalJSON collapses single-value entries to a JSON scalar and
// multi-value entries to a JSON array, matching the outgoing wire form.
func (h *Headers) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(h.order))
	for _, name := range h.order {
		vals := h.values[name]
		if len(vals) == 1 {
			out[name] = vals[0]
		} else {
			out[name] = vals
		}
	}
	return json.Marshal(out)
}
