package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/workoutdiary/internal/catalog"
	"github.com/thebtf/workoutdiary/internal/query"
	"github.com/thebtf/workoutdiary/pkg/models"
)

var (
	// ErrChartNotOpen is returned for operations on a chart that is not open.
	ErrChartNotOpen = errors.New("chart not open")
	// ErrNoExercise is returned when a chart is requested without a name.
	ErrNoExercise = errors.New("exercise name is required")
)

// Manager owns the exercise list and the open charts. All streams share
// one RequestGuard.
type Manager struct {
	ctx     context.Context
	records query.Source[models.Record]
	sink    Sink
	cancel  context.CancelFunc
	guard   *query.RequestGuard
	list    *ExerciseList
	charts  map[string]*Chart
	cfg     Config
	mu      sync.RWMutex
}

// NewManager creates a manager with an idle exercise list.
func NewManager(ctx context.Context, exercises query.Source[models.Exercise], records query.Source[models.Record], cat *catalog.Catalog, cfg Config, sink Sink) *Manager {
	if sink == nil {
		sink = discard{}
	}
	ctx, cancel := context.WithCancel(ctx)
	guard := query.NewRequestGuard()

	return &Manager{
		ctx:     ctx,
		cancel:  cancel,
		guard:   guard,
		records: records,
		sink:    sink,
		cfg:     cfg,
		charts:  make(map[string]*Chart),
		list:    NewExerciseList(ctx, guard, exercises, cat, cfg, sink),
	}
}

// List returns the exercise list.
func (m *Manager) List() *ExerciseList { return m.list }

// OpenChart opens the chart of exercise, or reloads it if already open,
// and fetches its newest page.
func (m *Manager) OpenChart(ctx context.Context, exercise string) (*Chart, query.Outcome, error) {
	exercise = strings.TrimSpace(exercise)
	if exercise == "" {
		return nil, query.OutcomeSkipped, ErrNoExercise
	}

	m.mu.Lock()
	c, ok := m.charts[exercise]
	if !ok {
		c = newChart(exercise, m.guard, m.records, m.cfg, m.sink)
		m.charts[exercise] = c
	}
	count := len(m.charts)
	m.mu.Unlock()

	if !ok {
		m.setChartsOpen(count)
		log.Debug().Str("exercise", exercise).Int("open", count).Msg("Chart opened")
	}

	outcome, err := c.Load(ctx)
	return c, outcome, err
}

// Chart returns the open chart of exercise.
func (m *Manager) Chart(exercise string) (*Chart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.charts[strings.TrimSpace(exercise)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChartNotOpen, exercise)
	}
	return c, nil
}

// CloseChart tears down the chart of exercise. A response still in flight
// for it is discarded when it arrives.
func (m *Manager) CloseChart(exercise string) error {
	exercise = strings.TrimSpace(exercise)

	m.mu.Lock()
	c, ok := m.charts[exercise]
	if ok {
		delete(m.charts, exercise)
	}
	count := len(m.charts)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrChartNotOpen, exercise)
	}
	c.detach()
	c.paginator.Reset(models.Query{})
	m.guard.Issue(c.paginator.Stream())
	m.setChartsOpen(count)
	m.sink.Publish(Event{Type: EventClosed, Exercise: exercise})

	log.Debug().Str("exercise", exercise).Int("open", count).Msg("Chart closed")
	return nil
}

// Charts returns the names of the open charts, sorted.
func (m *Manager) Charts() []string {
	m.mu.RLock()
	names := make([]string, 0, len(m.charts))
	for name := range m.charts {
		names = append(names, name)
	}
	m.mu.RUnlock()
	sort.Strings(names)
	return names
}

// ChartCount returns the number of open charts.
func (m *Manager) ChartCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.charts)
}

// Shutdown closes the list and every chart and cancels debounced fetches.
func (m *Manager) Shutdown() {
	m.list.Close()
	for _, name := range m.Charts() {
		_ = m.CloseChart(name)
	}
	m.cancel()
	log.Info().Msg("Sessions shut down")
}

func (m *Manager) setChartsOpen(n int) {
	if m.cfg.Metrics != nil {
		m.cfg.Metrics.ChartsOpen.Set(float64(n))
	}
}
