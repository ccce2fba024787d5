// Package session binds the query engine to the exercise list and the
// per-exercise history charts served by the worker.
package session

import (
	"github.com/thebtf/workoutdiary/internal/analytics"
	"github.com/thebtf/workoutdiary/internal/query"
	"github.com/thebtf/workoutdiary/pkg/models"
)

// EventType names the kind of state a session publishes.
type EventType string

const (
	// EventList carries a query.Snapshot of the exercise list.
	EventList EventType = "list"
	// EventWindow carries the ChartView of one exercise.
	EventWindow EventType = "window"
	// EventSelection carries the inspected analytics.Entry of one exercise.
	EventSelection EventType = "selection"
	// EventClosed reports that a chart was torn down.
	EventClosed EventType = "closed"
)

// Event is one published state change.
type Event struct {
	Data     any       `json:"data,omitempty"`
	Type     EventType `json:"type"`
	Exercise string    `json:"exercise,omitempty"`
}

// Sink receives session events. Publish must not block for long; it is
// called from fetch completions.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Publish calls f.
func (f SinkFunc) Publish(e Event) { f(e) }

type discard struct{}

func (discard) Publish(Event) {}

// ListView is the list payload: the paginator snapshot.
type ListView = query.Snapshot[models.Exercise]

// ChartView is everything needed to draw one history chart.
type ChartView struct {
	Window   analytics.Window  `json:"window"`
	Exercise string            `json:"exercise"`
	State    string            `json:"state"`
	Err      string            `json:"error,omitempty"`
	Points   []analytics.Point `json:"points"`
	DomainLo float64           `json:"domain_lo"`
	DomainHi float64           `json:"domain_hi"`
	Cached   int               `json:"cached"`
	HasNext  bool              `json:"has_next"`
}

func chartView(exercise string, snap query.Snapshot[models.Record], window int) ChartView {
	w := analytics.NewWindow(snap.Items, snap.Offset, window)
	lo, hi := w.Domain()
	return ChartView{
		Exercise: exercise,
		State:    snap.State,
		Err:      snap.Err,
		HasNext:  snap.HasNext,
		Cached:   len(snap.Items),
		Window:   w,
		Points:   w.Points(),
		DomainLo: lo,
		DomainHi: hi,
	}
}
