// Package filter holds the list filter state shared between the URL and
// the request sent to the API.
package filter

import (
	"net/url"
	"strings"
)

// Filter keys understood by the permissions endpoint.
const (
	KeyResource = "resource"
	KeyAction   = "action"
	KeyName     = "name"
)

// Keys lists every supported key.
var Keys = []string{KeyResource, KeyAction, KeyName}

// IsKey reports whether key is one of Keys.
func IsKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}

// Filter maps a filter key to its value. A missing key means no
// constraint; empty values are never stored.
type Filter map[string]string

// FromValues builds a filter from URL values, keeping only known keys
// with a non-empty first value.
func FromValues(v url.Values) Filter {
	f := Filter{}
	for _, k := range Keys {
		f.Set(k, v.Get(k))
	}
	return f
}

// FromQuery parses a raw query string. Malformed input yields an empty
// filter rather than an error, matching how browsers treat bad queries.
func FromQuery(raw string) Filter {
	v, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil {
		return Filter{}
	}
	return FromValues(v)
}

// Get returns the value for key, or "" when unset.
func (f Filter) Get(key string) string { return f[key] }

// Set stores value under key, or removes key when value is empty.
// It reports whether the filter changed.
func (f Filter) Set(key, value string) bool {
	old, had := f[key]
	if value == "" {
		if !had {
			return false
		}
		delete(f, key)
		return true
	}
	if had && old == value {
		return false
	}
	f[key] = value
	return true
}

// Clone returns an independent copy.
func (f Filter) Clone() Filter {
	out := make(Filter, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Equal reports whether both filters hold the same constraints.
func (f Filter) Equal(o Filter) bool {
	if len(f) != len(o) {
		return false
	}
	for k, v := range f {
		if o[k] != v {
			return false
		}
	}
	return true
}

// Values returns the filter as URL values.
func (f Filter) Values() url.Values {
	v := url.Values{}
	for k, val := range f {
		if val != "" {
			v.Set(k, val)
		}
	}
	return v
}

// Encode returns the query string of the non-empty keys, sorted by key.
func (f Filter) Encode() string {
	return f.Values().Encode()
}

// Compose appends the encoded filter to base. The result doubles as the
// cache key of the collection it addresses.
func (f Filter) Compose(base string) string {
	q := f.Encode()
	if q == "" {
		return base
	}
	return base + "?" + q
}
