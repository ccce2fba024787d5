package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/thebtf/workoutdiary/internal/analytics"
	"github.com/thebtf/workoutdiary/internal/query"
	"github.com/thebtf/workoutdiary/pkg/models"
)

// ErrNotInWindow is returned when selecting a record outside the window.
var ErrNotInWindow = errors.New("record not in the current window")

// ChartStream identifies the history stream of an exercise.
func ChartStream(exercise string) query.StreamID {
	return query.StreamID("chart:" + exercise)
}

// Chart is the paged record history of one exercise and the analytics
// window derived from it.
type Chart struct {
	paginator *query.Paginator[models.Record]
	sink      Sink
	exercise  string
	selected  string
	window    int
	pageSize  int
	mu        sync.Mutex
	// detached charts publish nothing.
	detached atomic.Bool
}

func newChart(exercise string, guard *query.RequestGuard, source query.Source[models.Record], cfg Config, sink Sink) *Chart {
	c := &Chart{
		exercise: exercise,
		sink:     sink,
		window:   cfg.ChartWindow,
		pageSize: cfg.ChartPageSize,
	}
	c.paginator = query.NewPaginator(ChartStream(exercise), guard, source, query.Options{
		Recorder:     cfg.recorder(),
		Kind:         "chart",
		Capacity:     cfg.ChartCapacity,
		FetchTimeout: cfg.FetchTimeout,
	})
	c.paginator.OnChange(func(s query.Snapshot[models.Record]) {
		if c.detached.Load() {
			return
		}
		c.sink.Publish(Event{
			Type:     EventWindow,
			Exercise: c.exercise,
			Data:     chartView(c.exercise, s, c.window),
		})
	})
	return c
}

// detach stops the chart from publishing events.
func (c *Chart) detach() { c.detached.Store(true) }

// Exercise returns the exercise name the chart follows.
func (c *Chart) Exercise() string { return c.exercise }

// Load discards the cached history and fetches the newest page.
func (c *Chart) Load(ctx context.Context) (query.Outcome, error) {
	q := models.NewQuery(c.exercise, nil, c.pageSize, true)
	c.mu.Lock()
	c.selected = ""
	c.mu.Unlock()
	c.paginator.Reset(q)
	return c.paginator.FetchPage(ctx, q, 0)
}

// Navigate moves the window one page older (+1) or newer (-1).
func (c *Chart) Navigate(ctx context.Context, direction int) (query.Outcome, error) {
	return c.paginator.Navigate(ctx, direction)
}

// View computes the chart at the current offset.
func (c *Chart) View() ChartView {
	return chartView(c.exercise, c.paginator.Snapshot(), c.window)
}

// Select marks the record with id as inspected. The record must be in the
// current window; the cache is not touched.
func (c *Chart) Select(id string) (analytics.Entry, error) {
	entry, ok := c.View().Window.Lookup(id)
	if !ok {
		return analytics.Entry{}, ErrNotInWindow
	}
	c.mu.Lock()
	c.selected = id
	c.mu.Unlock()

	c.sink.Publish(Event{Type: EventSelection, Exercise: c.exercise, Data: entry})
	return entry, nil
}

// Selected returns the inspected entry while it stays in the window.
func (c *Chart) Selected() (analytics.Entry, bool) {
	c.mu.Lock()
	id := c.selected
	c.mu.Unlock()
	if id == "" {
		return analytics.Entry{}, false
	}
	return c.View().Window.Lookup(id)
}
