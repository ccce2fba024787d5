package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/workoutdiary/pkg/models"
)

// State is the fetch state of a stream.
type State int

const (
	// StateIdle means no request is outstanding; fetches and navigation are allowed.
	StateIdle State = iota
	// StateFetching means a request is outstanding; further fetches are no-ops.
	StateFetching
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome describes what a fetch call did.
type Outcome int

const (
	// OutcomeApplied means the response was merged into the cache.
	OutcomeApplied Outcome = iota
	// OutcomeStale means a newer request superseded this one; nothing changed.
	OutcomeStale
	// OutcomeSkipped means the call was a no-op (busy, exhausted, or no movement).
	OutcomeSkipped
	// OutcomeFailed means the source returned an error; nothing changed.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeStale:
		return "stale"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Recorder receives fetch lifecycle events, typically for metrics.
type Recorder interface {
	FetchStarted(kind string)
	FetchFinished(kind string, outcome Outcome, elapsed time.Duration)
	CacheSize(kind string, n int)
}

// Options configures a Paginator.
type Options struct {
	Recorder Recorder
	// Kind labels the stream family ("list", "chart") for logs and metrics.
	Kind string
	// Capacity bounds the page cache; <= 0 means unbounded.
	Capacity int
	// FetchTimeout bounds one source call; 0 means no timeout.
	FetchTimeout time.Duration
}

// Snapshot is a consistent copy of a paginator's observable state.
type Snapshot[T any] struct {
	Stream  StreamID     `json:"stream"`
	State   string       `json:"state"`
	Err     string       `json:"error,omitempty"`
	Query   models.Query `json:"query"`
	Items   []T          `json:"items"`
	Offset  int          `json:"offset"`
	HasNext bool         `json:"has_next"`
}

// Paginator orchestrates page requests for one stream on top of a
// RequestGuard and a PageCache. At most one fetch is in flight at a time.
type Paginator[T Keyed] struct {
	source   Source[T]
	recorder Recorder
	guard    *RequestGuard
	cache    *PageCache[T]
	onChange func(Snapshot[T])
	lastErr  error
	stream   StreamID
	kind     string
	query    models.Query
	timeout  time.Duration
	offset   int
	state    State
	inflight Token
	hasNext  bool
	mu       sync.Mutex
	// notifyMu orders snapshots and their delivery.
	notifyMu sync.Mutex
}

// NewPaginator creates an idle paginator. A nil guard gets a private one.
func NewPaginator[T Keyed](stream StreamID, guard *RequestGuard, source Source[T], opts Options) *Paginator[T] {
	if guard == nil {
		guard = NewRequestGuard()
	}
	return &Paginator[T]{
		stream:   stream,
		guard:    guard,
		source:   source,
		cache:    NewPageCache[T](opts.Capacity),
		recorder: opts.Recorder,
		kind:     opts.Kind,
		timeout:  opts.FetchTimeout,
		hasNext:  true,
	}
}

// OnChange registers fn to receive a snapshot after every state change.
// Snapshots reach fn one at a time in the order they were taken, so the
// last delivered one is the current state. fn must not call back into
// the paginator's mutating methods. It must be called before the paginator
// is shared.
func (p *Paginator[T]) OnChange(fn func(Snapshot[T])) {
	p.onChange = fn
}

// Stream returns the stream this paginator serves.
func (p *Paginator[T]) Stream() StreamID { return p.stream }

// FetchPage requests one page of q. It is a no-op while another fetch is in
// flight, or when page > 0 and the stream is known to be exhausted.
// Source errors are returned wrapped in ErrFetchFailed and leave the cache
// untouched; the stream always returns to idle.
func (p *Paginator[T]) FetchPage(ctx context.Context, q models.Query, page int) (Outcome, error) {
	if !q.Valid() {
		return OutcomeSkipped, fmt.Errorf("%w: page size %d", ErrInvalidQuery, q.PageSize)
	}
	if page < 0 {
		page = 0
	}

	p.mu.Lock()
	token, ok := p.beginLocked(q, page)
	p.mu.Unlock()
	if !ok {
		return OutcomeSkipped, nil
	}
	p.notify()

	return p.complete(ctx, q, page, token)
}

// Navigate moves the stream offset by one page: +1 towards older records,
// -1 towards newer ones. The offset never drops below zero and moving
// older past the last known page is a no-op.
func (p *Paginator[T]) Navigate(ctx context.Context, direction int) (Outcome, error) {
	switch {
	case direction > 0:
		direction = 1
	case direction < 0:
		direction = -1
	default:
		return OutcomeSkipped, nil
	}

	p.mu.Lock()
	if p.state == StateFetching || (direction > 0 && !p.hasNext) {
		p.mu.Unlock()
		return OutcomeSkipped, nil
	}
	if !p.query.Valid() {
		p.mu.Unlock()
		return OutcomeSkipped, fmt.Errorf("%w: stream %s has no query", ErrInvalidQuery, p.stream)
	}
	next := p.offset + direction
	if next < 0 {
		next = 0
	}
	moved := next != p.offset
	p.offset = next
	q := p.query
	token, ok := p.beginLocked(q, next)
	p.mu.Unlock()

	if !ok {
		if moved {
			p.notify()
		}
		return OutcomeSkipped, nil
	}
	p.notify()

	return p.complete(ctx, q, next, token)
}

// LoadMore fetches the page after the current one with the current query.
func (p *Paginator[T]) LoadMore(ctx context.Context) (Outcome, error) {
	p.mu.Lock()
	q := p.query
	next := p.offset + 1
	p.mu.Unlock()
	return p.FetchPage(ctx, q, next)
}

// Reset starts over with a new query: the cache is cleared, the offset
// returns to zero and any in-flight response is treated as stale.
func (p *Paginator[T]) Reset(q models.Query) {
	p.mu.Lock()
	p.cache.Clear()
	p.query = q
	p.offset = 0
	p.hasNext = true
	p.lastErr = nil
	p.state = StateIdle
	p.inflight = 0
	p.mu.Unlock()

	log.Debug().
		Str("stream", string(p.stream)).
		Str("query", q.Key()).
		Msg("Stream reset")
	p.notify()
}

// Snapshot returns a copy of the paginator's state.
func (p *Paginator[T]) Snapshot() Snapshot[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Items returns a copy of the cached items.
func (p *Paginator[T]) Items() []T {
	return p.cache.Items()
}

// State returns the current fetch state.
func (p *Paginator[T]) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// beginLocked transitions idle -> fetching and issues a token.
func (p *Paginator[T]) beginLocked(q models.Query, page int) (Token, bool) {
	if p.state == StateFetching {
		log.Debug().Str("stream", string(p.stream)).Int("page", page).Msg("Fetch already in flight, skipping")
		return 0, false
	}
	if page > 0 && !p.hasNext {
		log.Debug().Str("stream", string(p.stream)).Int("page", page).Msg("Stream exhausted, skipping")
		return 0, false
	}

	token := p.guard.Issue(p.stream)
	p.state = StateFetching
	p.inflight = token
	p.query = q
	p.lastErr = nil
	return token, true
}

// complete performs the source call for token and applies its result.
func (p *Paginator[T]) complete(ctx context.Context, q models.Query, page int, token Token) (Outcome, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if p.recorder != nil {
		p.recorder.FetchStarted(p.kind)
	}
	start := time.Now()

	result, err := p.source.FetchPage(ctx, q, page)

	outcome, err := p.apply(result, err, page, token)
	if p.recorder != nil {
		p.recorder.FetchFinished(p.kind, outcome, time.Since(start))
		if outcome == OutcomeApplied {
			p.recorder.CacheSize(p.kind, p.cache.Len())
		}
	}
	return outcome, err
}

func (p *Paginator[T]) apply(result models.Page[T], fetchErr error, page int, token Token) (Outcome, error) {
	p.mu.Lock()
	owner := p.inflight == token
	if owner {
		p.state = StateIdle
		p.inflight = 0
	}

	if !owner || !p.guard.IsCurrent(p.stream, token) {
		p.mu.Unlock()
		log.Debug().
			Str("stream", string(p.stream)).
			Uint64("token", uint64(token)).
			Int("page", page).
			Msg("Discarding stale response")
		if owner {
			p.notify()
		}
		return OutcomeStale, nil
	}

	if fetchErr != nil {
		p.lastErr = fmt.Errorf("%w: %s page %d: %w", ErrFetchFailed, p.stream, page, fetchErr)
		err := p.lastErr
		p.mu.Unlock()
		log.Warn().
			Err(fetchErr).
			Str("stream", string(p.stream)).
			Int("page", page).
			Msg("Fetch failed")
		p.notify()
		return OutcomeFailed, err
	}

	size := p.cache.Merge(result.Items)
	p.hasNext = result.HasNext
	p.offset = page
	p.mu.Unlock()

	log.Debug().
		Str("stream", string(p.stream)).
		Uint64("token", uint64(token)).
		Int("page", page).
		Int("received", len(result.Items)).
		Int("cached", size).
		Bool("hasNext", result.HasNext).
		Msg("Page applied")
	p.notify()
	return OutcomeApplied, nil
}

func (p *Paginator[T]) snapshotLocked() Snapshot[T] {
	snap := Snapshot[T]{
		Stream:  p.stream,
		Query:   p.query,
		Items:   p.cache.Items(),
		Offset:  p.offset,
		HasNext: p.hasNext,
		State:   p.state.String(),
	}
	if p.lastErr != nil {
		snap.Err = p.lastErr.Error()
	}
	return snap
}

func (p *Paginator[T]) notify() {
	if p.onChange == nil {
		return
	}
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()
	p.onChange(p.Snapshot())
}
