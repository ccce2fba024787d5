package session

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/workoutdiary/internal/catalog"
	"github.com/thebtf/workoutdiary/internal/metrics"
	"github.com/thebtf/workoutdiary/internal/query"
	"github.com/thebtf/workoutdiary/pkg/models"
)

// ListStream identifies the exercise list stream.
const ListStream query.StreamID = "list"

// ExerciseList is the searchable, infinitely scrolled exercise list. Text
// and muscle-group changes are debounced; scrolling appends pages.
type ExerciseList struct {
	paginator *query.Paginator[models.Exercise]
	debouncer *query.Debouncer[models.Exercise]
	catalog   *catalog.Catalog
	metrics   *metrics.Metrics
	text      string
	group     string
	pageSize  int
	mu        sync.Mutex
}

// NewExerciseList creates an idle list over source. Debounced fetches run
// under ctx.
func NewExerciseList(ctx context.Context, guard *query.RequestGuard, source query.Source[models.Exercise], cat *catalog.Catalog, cfg Config, sink Sink) *ExerciseList {
	if sink == nil {
		sink = discard{}
	}
	if cat == nil {
		cat = catalog.Default()
	}

	p := query.NewPaginator(ListStream, guard, source, query.Options{
		Recorder:     cfg.recorder(),
		Kind:         "list",
		Capacity:     cfg.ListCapacity,
		FetchTimeout: cfg.FetchTimeout,
	})
	p.OnChange(func(s query.Snapshot[models.Exercise]) {
		sink.Publish(Event{Type: EventList, Data: s})
	})

	l := &ExerciseList{
		paginator: p,
		debouncer: query.NewDebouncer(ctx, p, cfg.Debounce),
		catalog:   cat,
		metrics:   cfg.Metrics,
		group:     catalog.AllGroups,
		pageSize:  cfg.ListPageSize,
	}
	l.debouncer.OnDispatch(l.dispatched)
	return l
}

// Load fetches the first page of the current selection immediately.
func (l *ExerciseList) Load(ctx context.Context) (query.Outcome, error) {
	q, err := l.currentQuery()
	if err != nil {
		return query.OutcomeSkipped, err
	}
	l.paginator.Reset(q)
	return l.paginator.FetchPage(ctx, q, 0)
}

// Preset sets the selection used by the next Load without scheduling a
// search.
func (l *ExerciseList) Preset(text, group string) error {
	if _, err := l.catalog.Resolve(group); err != nil {
		return err
	}
	if strings.TrimSpace(group) == "" {
		group = catalog.AllGroups
	}
	l.mu.Lock()
	l.text = text
	l.group = strings.ToUpper(strings.TrimSpace(group))
	l.mu.Unlock()
	return nil
}

// Search schedules a debounced search for text within the muscle group.
// An empty group or catalog.AllGroups means every group.
func (l *ExerciseList) Search(text, group string) error {
	filters, err := l.catalog.Resolve(group)
	if err != nil {
		return err
	}
	if strings.TrimSpace(group) == "" {
		group = catalog.AllGroups
	}

	l.mu.Lock()
	l.text = text
	l.group = strings.ToUpper(strings.TrimSpace(group))
	l.mu.Unlock()

	return l.debouncer.OnQueryChange(models.NewQuery(text, filters, l.pageSize, false))
}

// More appends the next page of the current query.
func (l *ExerciseList) More(ctx context.Context) (query.Outcome, error) {
	return l.paginator.LoadMore(ctx)
}

// Snapshot returns the list state.
func (l *ExerciseList) Snapshot() ListView {
	return l.paginator.Snapshot()
}

// Selection returns the last requested search text and muscle group.
func (l *ExerciseList) Selection() (text, group string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.text, l.group
}

// Pending reports whether a search is waiting out the debounce delay.
func (l *ExerciseList) Pending() bool {
	return l.debouncer.Pending()
}

// Close cancels pending and in-flight searches.
func (l *ExerciseList) Close() {
	l.debouncer.Close()
}

func (l *ExerciseList) currentQuery() (models.Query, error) {
	text, group := l.Selection()
	filters, err := l.catalog.Resolve(group)
	if err != nil {
		return models.Query{}, err
	}
	return models.NewQuery(text, filters, l.pageSize, false), nil
}

func (l *ExerciseList) dispatched(q models.Query, outcome query.Outcome, err error) {
	if l.metrics != nil {
		l.metrics.Dispatches.WithLabelValues(outcome.String()).Inc()
	}
	if err != nil {
		log.Warn().Err(err).Str("query", q.Key()).Msg("Exercise search failed")
		return
	}
	log.Debug().
		Str("query", q.Key()).
		Str("outcome", outcome.String()).
		Msg("Exercise search dispatched")
}
