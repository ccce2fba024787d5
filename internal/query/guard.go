// Package query implements the incremental paged query engine: staleness
// guarding, bounded page caches, per-stream paginators and debounced
// re-querying.
package query

import "sync"

// StreamID names an independent query/paging context, e.g. the exercise
// list search or the history of one exercise chart.
type StreamID string

// Token is a request token issued by a RequestGuard.
type Token uint64

// RequestGuard tracks the most recently issued request per stream so that
// responses to superseded requests can be recognised and dropped.
type RequestGuard struct {
	latest map[StreamID]Token
	mu     sync.Mutex
}

// NewRequestGuard creates a guard with no issued tokens.
func NewRequestGuard() *RequestGuard {
	return &RequestGuard{
		latest: make(map[StreamID]Token),
	}
}

// Issue increments and returns the latest-issued token of the stream.
func (g *RequestGuard) Issue(stream StreamID) Token {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.latest[stream]++
	return g.latest[stream]
}

// IsCurrent reports whether token is still the latest issued for the stream.
func (g *RequestGuard) IsCurrent(stream StreamID, token Token) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.latest[stream] == token
}

// Latest returns the latest-issued token of the stream (0 if none).
func (g *RequestGuard) Latest(stream StreamID) Token {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.latest[stream]
}
