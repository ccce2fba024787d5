// Package models contains domain models for workoutdiary.
package models

import (
	"sort"
	"strconv"
	"strings"
)

// Query identifies one paged search on a stream.
// It is treated as an immutable value: construct it with NewQuery and
// compare with Equal, never with ==.
type Query struct {
	Text     string   `json:"text"`
	Filters  []string `json:"filters,omitempty"`
	PageSize int      `json:"page_size"`
	// Strict requests exact matching on Text (and all-of matching on Filters)
	// from the record source instead of substring/any-of matching.
	Strict bool `json:"strict,omitempty"`
}

// NewQuery builds a Query with filters normalized to a sorted set.
func NewQuery(text string, filters []string, pageSize int, strict bool) Query {
	return Query{
		Text:     text,
		Filters:  normalizeFilters(filters),
		PageSize: pageSize,
		Strict:   strict,
	}
}

// Valid reports whether the query can be sent to a record source.
func (q Query) Valid() bool {
	return q.PageSize > 0
}

// Equal reports structural equality. Filters compare as sets.
func (q Query) Equal(other Query) bool {
	return q.Key() == other.Key()
}

// Key returns a canonical string form of the query, usable as a map key.
func (q Query) Key() string {
	var b strings.Builder
	b.WriteString(strconv.Quote(q.Text))
	b.WriteByte('|')
	for i, f := range normalizeFilters(q.Filters) {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(f))
	}
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(q.PageSize))
	if q.Strict {
		b.WriteString("|strict")
	}
	return b.String()
}

// normalizeFilters trims, dedupes and sorts filter keys.
func normalizeFilters(filters []string) []string {
	if len(filters) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(filters))
	out := make([]string, 0, len(filters))
	for _, f := range filters {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

// Page is one slice of results returned by a record source.
// Items are ordered newest-first; an empty page with HasNext=false means
// the source is exhausted.
type Page[T any] struct {
	Items   []T  `json:"items"`
	HasNext bool `json:"has_next"`
}
