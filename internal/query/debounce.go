package query

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/workoutdiary/pkg/models"
)

// DefaultQuiescence is the debounce interval used when none is configured.
const DefaultQuiescence = 300 * time.Millisecond

// Debouncer coalesces rapid query changes into a single re-query of a
// paginator. Only the last query of a quiescence window is dispatched;
// dispatching resets the stream and fetches its first page.
type Debouncer[T Keyed] struct {
	ctx        context.Context
	paginator  *Paginator[T]
	timer      *time.Timer
	cancel     context.CancelFunc
	onDispatch func(models.Query, Outcome, error)
	last       models.Query
	wg         sync.WaitGroup
	delay      time.Duration
	seq        uint64
	mu         sync.Mutex
	dispatched bool
	closed     bool
}

// NewDebouncer creates a debouncer feeding p. Fetches it dispatches run
// under a context derived from ctx and are cancelled by Close.
func NewDebouncer[T Keyed](ctx context.Context, p *Paginator[T], delay time.Duration) *Debouncer[T] {
	if delay <= 0 {
		delay = DefaultQuiescence
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Debouncer[T]{
		ctx:       ctx,
		cancel:    cancel,
		paginator: p,
		delay:     delay,
	}
}

// OnDispatch registers fn to be called with the result of every dispatch.
// It must be called before the first OnQueryChange.
func (d *Debouncer[T]) OnDispatch(fn func(models.Query, Outcome, error)) {
	d.onDispatch = fn
}

// OnQueryChange schedules q, replacing any query still waiting. When the
// delay expires and q equals the last dispatched query, and that dispatch
// did not fail, nothing is sent: a burst that settles back on the current
// query costs no fetch.
func (d *Debouncer[T]) OnQueryChange(q models.Query) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.fire(seq, q)
	})
	return nil
}

// Pending reports whether a query is waiting for the quiescence delay.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Close cancels the pending query and any dispatched fetch, then waits for
// running dispatches to return. Later calls to OnQueryChange fail.
func (d *Debouncer[T]) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}

func (d *Debouncer[T]) fire(seq uint64, q models.Query) {
	d.mu.Lock()
	if d.closed || seq != d.seq {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	if d.dispatched && d.last.Equal(q) && d.paginator.Snapshot().Err == "" {
		d.mu.Unlock()
		log.Debug().
			Str("stream", string(d.paginator.Stream())).
			Str("query", q.Key()).
			Msg("Query unchanged, not re-dispatching")
		return
	}
	d.last = q
	d.dispatched = true
	d.wg.Add(1)
	d.mu.Unlock()

	defer d.wg.Done()
	d.paginator.Reset(q)
	outcome, err := d.paginator.FetchPage(d.ctx, q, 0)
	if d.onDispatch != nil {
		d.onDispatch(q, outcome, err)
	}
}
