// Package filter decides which catalog resources are worth
// downloading.
package filter

import (
	"strings"

	"ckandump/internal/model"
)

// DefaultMimeTypes is the allow-set used when none is configured:
// the JSON variants and CSV types the ingestion scripts understand.
var DefaultMimeTypes = []string{
	"application/json",
	"application/x-javascript",
	"text/javascript",
	"text/x-javascript",
	"text/x-json",
	"text/csv",
}

// Filter selects downloadable resources by declared MIME type.
type Filter struct {
	allowed map[string]struct{}
}

// New creates a filter from an allow-set of MIME types, matched
// case-insensitively. An empty set falls back to DefaultMimeTypes.
func New(mimeTypes []string) *Filter {
	if len(mimeTypes) == 0 {
		mimeTypes = DefaultMimeTypes
	}
	allowed := make(map[string]struct{}, len(mimeTypes))
	for _, mt := range mimeTypes {
		allowed[strings.ToLower(mt)] = struct{}{}
	}
	return &Filter{allowed: allowed}
}

// Downloadable reports whether the resource's MIME type is in the
// allow-set and it has a URL to fetch from.
func (f *Filter) Downloadable(r model.Resource) bool {
	if r.URL == "" {
		return false
	}
	_, ok := f.allowed[strings.ToLower(r.MimeType)]
	return ok
}

// Apply returns the resources that pass the filter, preserving order.
func (f *Filter) Apply(resources []model.Resource) []model.Resource {
	var out []model.Resource
	for _, r := range resources {
		if f.Downloadable(r) {
			out = append(out, r)
		}
	}
	return out
}
