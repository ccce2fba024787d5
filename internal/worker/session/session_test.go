package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/workoutdiary/internal/catalog"
	"github.com/thebtf/workoutdiary/internal/metrics"
	"github.com/thebtf/workoutdiary/internal/query"
	"github.com/thebtf/workoutdiary/pkg/models"
)

var base = time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		ListPageSize:  20,
		ListCapacity:  500,
		ChartPageSize: 5,
		ChartCapacity: 10,
		ChartWindow:   5,
		Debounce:      20 * time.Millisecond,
		FetchTimeout:  time.Second,
	}
}

// eventLog is a Sink that keeps every event.
type eventLog struct {
	events []Event
	mu     sync.Mutex
}

func (l *eventLog) Publish(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) ofType(t EventType) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, e := range l.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// after returns the events of exercise published after the first one of
// type t.
func (l *eventLog) after(t EventType, exercise string) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	seen := false
	for _, e := range l.events {
		if e.Exercise != exercise {
			continue
		}
		if seen {
			out = append(out, e)
		}
		if e.Type == t {
			seen = true
		}
	}
	return out
}

// exerciseSource serves 45 exercises, even ones training CHEST and odd ones BACK.
func exerciseSource() query.Source[models.Exercise] {
	all := make([]models.Exercise, 0, 45)
	for i := 0; i < 45; i++ {
		group := "CHEST"
		if i%2 == 1 {
			group = "BACK"
		}
		all = append(all, models.Exercise{
			ID:           fmt.Sprintf("e%02d", i),
			Name:         fmt.Sprintf("Move %02d", i),
			MuscleGroups: []models.NamedRef{{Name: group}},
		})
	}

	return query.SourceFunc[models.Exercise](func(_ context.Context, q models.Query, page int) (models.Page[models.Exercise], error) {
		var matched []models.Exercise
		for _, e := range all {
			if !strings.Contains(strings.ToLower(e.Name), strings.ToLower(q.Text)) {
				continue
			}
			if len(q.Filters) > 0 && e.MuscleGroups[0].Name != q.Filters[0] {
				continue
			}
			matched = append(matched, e)
		}
		return pageOf(matched, q.PageSize, page), nil
	})
}

// recordSource serves n records per exercise, newest first, ids r00..
func recordSource(n int) query.Source[models.Record] {
	return query.SourceFunc[models.Record](func(_ context.Context, q models.Query, page int) (models.Page[models.Record], error) {
		all := make([]models.Record, 0, n)
		for i := 0; i < n; i++ {
			all = append(all, models.Record{
				ID:           fmt.Sprintf("r%02d", i),
				ExerciseName: q.Text,
				Date:         base.AddDate(0, 0, n-1-i),
				Sets:         models.SetList{{Repetitions: []float64{float64(100 - i)}}},
			})
		}
		return pageOf(all, q.PageSize, page), nil
	})
}

func pageOf[T any](all []T, size, page int) models.Page[T] {
	start := page * size
	if start >= len(all) {
		return models.Page[T]{}
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	return models.Page[T]{Items: all[start:end], HasNext: end < len(all)}
}

func windowIDs(v ChartView) []string {
	out := make([]string, 0, len(v.Window.Entries))
	for _, e := range v.Window.Entries {
		out = append(out, e.ID)
	}
	return out
}

// SessionSuite drives a Manager over in-memory sources.
type SessionSuite struct {
	suite.Suite
	ctx     context.Context
	manager *Manager
	events  *eventLog
	metrics *metrics.Metrics
}

func (s *SessionSuite) SetupTest() {
	s.ctx = context.Background()
	s.events = &eventLog{}
	s.metrics = metrics.New()
	cfg := testConfig()
	cfg.Metrics = s.metrics
	s.manager = NewManager(s.ctx, exerciseSource(), recordSource(12), catalog.Default(), cfg, s.events)
}

func (s *SessionSuite) TearDownTest() {
	s.manager.Shutdown()
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}

func (s *SessionSuite) TestListLoadAndMore() {
	list := s.manager.List()

	outcome, err := list.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal(query.OutcomeApplied, outcome)
	s.Len(list.Snapshot().Items, 20)
	s.True(list.Snapshot().HasNext)

	_, err = list.More(s.ctx)
	s.Require().NoError(err)
	s.Len(list.Snapshot().Items, 40)

	_, err = list.More(s.ctx)
	s.Require().NoError(err)
	snap := list.Snapshot()
	s.Len(snap.Items, 45)
	s.False(snap.HasNext)

	outcome, err = list.More(s.ctx)
	s.NoError(err)
	s.Equal(query.OutcomeSkipped, outcome)
	s.NotEmpty(s.events.ofType(EventList))
}

func (s *SessionSuite) TestListSearchIsDebounced() {
	list := s.manager.List()
	_, err := list.Load(s.ctx)
	s.Require().NoError(err)

	for _, text := range []string{"m", "mo", "move", "move 1"} {
		s.Require().NoError(list.Search(text, "chest"))
	}
	s.True(list.Pending())

	s.Require().Eventually(func() bool {
		snap := list.Snapshot()
		return snap.Query.Text == "move 1" && snap.State == query.StateIdle.String() && len(snap.Items) > 0
	}, time.Second, 5*time.Millisecond)

	var names []string
	for _, e := range list.Snapshot().Items {
		names = append(names, e.Name)
	}
	s.Equal([]string{"Move 10", "Move 12", "Move 14", "Move 16", "Move 18"}, names)

	text, group := list.Selection()
	s.Equal("move 1", text)
	s.Equal("CHEST", group)
	s.Eventually(func() bool {
		return testutil.ToFloat64(s.metrics.Dispatches.WithLabelValues("applied")) == 1
	}, time.Second, 5*time.Millisecond)
}

func (s *SessionSuite) TestListSearchGroups() {
	list := s.manager.List()

	err := list.Search("", "WINGS")
	s.ErrorIs(err, catalog.ErrUnknownMuscleGroup)

	s.Require().NoError(list.Search("move", ""))
	_, group := list.Selection()
	s.Equal(catalog.AllGroups, group)
}

func (s *SessionSuite) TestChartWindowFollowsOffset() {
	c, outcome, err := s.manager.OpenChart(s.ctx, "Bench press")
	s.Require().NoError(err)
	s.Equal(query.OutcomeApplied, outcome)

	view := c.View()
	s.Equal("Bench press", view.Exercise)
	s.Equal([]string{"r04", "r03", "r02", "r01", "r00"}, windowIDs(view))
	s.Len(view.Points, 5)
	s.Less(view.DomainLo, view.DomainHi)
	s.True(view.HasNext)

	outcome, err = c.Navigate(s.ctx, +1)
	s.Require().NoError(err)
	s.Equal(query.OutcomeApplied, outcome)
	view = c.View()
	s.Equal(10, view.Cached)
	s.Equal(1, view.Window.Offset)
	s.Equal([]string{"r05", "r04", "r03", "r02", "r01"}, windowIDs(view))

	_, err = c.Navigate(s.ctx, -1)
	s.Require().NoError(err)
	s.Equal([]string{"r04", "r03", "r02", "r01", "r00"}, windowIDs(c.View()))

	windows := s.events.ofType(EventWindow)
	s.Require().NotEmpty(windows)
	s.Equal("Bench press", windows[len(windows)-1].Exercise)
}

func (s *SessionSuite) TestChartSelection() {
	c, _, err := s.manager.OpenChart(s.ctx, "Bench press")
	s.Require().NoError(err)

	_, ok := c.Selected()
	s.False(ok)

	entry, err := c.Select("r02")
	s.Require().NoError(err)
	s.Equal("r02", entry.ID)
	s.Equal(98.0, entry.AggregateTotal)
	s.Len(s.events.ofType(EventSelection), 1)

	_, err = c.Select("r09")
	s.ErrorIs(err, ErrNotInWindow)

	_, err = c.Navigate(s.ctx, +1)
	s.Require().NoError(err)
	selected, ok := c.Selected()
	s.True(ok)
	s.Equal("r02", selected.ID)

	// Reloading clears the selection.
	_, _, err = s.manager.OpenChart(s.ctx, "Bench press")
	s.Require().NoError(err)
	_, ok = c.Selected()
	s.False(ok)
}

func (s *SessionSuite) TestChartLifecycle() {
	_, _, err := s.manager.OpenChart(s.ctx, "  ")
	s.ErrorIs(err, ErrNoExercise)

	first, _, err := s.manager.OpenChart(s.ctx, "Squat")
	s.Require().NoError(err)
	again, _, err := s.manager.OpenChart(s.ctx, "Squat")
	s.Require().NoError(err)
	s.Same(first, again)

	_, _, err = s.manager.OpenChart(s.ctx, "Bench press")
	s.Require().NoError(err)
	s.Equal([]string{"Bench press", "Squat"}, s.manager.Charts())
	s.Equal(2.0, testutil.ToFloat64(s.metrics.ChartsOpen))

	got, err := s.manager.Chart("Squat")
	s.Require().NoError(err)
	s.Equal("Squat", got.Exercise())

	s.Require().NoError(s.manager.CloseChart("Squat"))
	s.Equal(1, s.manager.ChartCount())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.ChartsOpen))
	s.Len(s.events.ofType(EventClosed), 1)

	_, err = s.manager.Chart("Squat")
	s.ErrorIs(err, ErrChartNotOpen)
	s.ErrorIs(s.manager.CloseChart("Squat"), ErrChartNotOpen)
}

func (s *SessionSuite) TestCloseChartPublishesNoWindow() {
	_, _, err := s.manager.OpenChart(s.ctx, "Squat")
	s.Require().NoError(err)
	windows := len(s.events.ofType(EventWindow))
	s.NotZero(windows)

	s.Require().NoError(s.manager.CloseChart("Squat"))

	s.Len(s.events.ofType(EventWindow), windows)
	closed := s.events.ofType(EventClosed)
	s.Require().Len(closed, 1)
	s.Equal("Squat", closed[0].Exercise)
	s.Empty(s.events.after(EventClosed, "Squat"))
}

func (s *SessionSuite) TestShutdownClosesEverything() {
	_, _, err := s.manager.OpenChart(s.ctx, "Squat")
	s.Require().NoError(err)

	s.manager.Shutdown()
	s.Zero(s.manager.ChartCount())
	s.ErrorIs(s.manager.List().Search("x", ""), query.ErrClosed)
}

// blockingRecords holds every fetch until release is closed.
type blockingRecords struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingRecords) FetchPage(ctx context.Context, q models.Query, page int) (models.Page[models.Record], error) {
	b.started <- struct{}{}
	<-b.release
	return models.Page[models.Record]{Items: []models.Record{{ID: "late", ExerciseName: q.Text, Date: base}}}, nil
}

func TestManager_ResponseAfterCloseIsStale(t *testing.T) {
	src := &blockingRecords{started: make(chan struct{}, 1), release: make(chan struct{})}
	events := &eventLog{}
	m := NewManager(context.Background(), exerciseSource(), src, nil, testConfig(), events)
	defer m.Shutdown()

	type result struct {
		err     error
		outcome query.Outcome
	}
	done := make(chan result, 1)
	go func() {
		_, outcome, err := m.OpenChart(context.Background(), "Squat")
		done <- result{outcome: outcome, err: err}
	}()

	select {
	case <-src.started:
	case <-time.After(time.Second):
		t.Fatal("fetch never started")
	}
	require.NoError(t, m.CloseChart("Squat"))
	close(src.release)

	r := <-done
	assert.NoError(t, r.err)
	assert.Equal(t, query.OutcomeStale, r.outcome)
	assert.Empty(t, events.after(EventClosed, "Squat"), "nothing may be published for a closed chart")
}

func TestChartStream(t *testing.T) {
	assert.Equal(t, query.StreamID("chart:Bench press"), ChartStream("Bench press"))
	assert.NotEqual(t, ListStream, ChartStream("list"))
}

func TestConfigFromDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 20, cfg.ListPageSize)
	assert.Equal(t, 500, cfg.ListCapacity)
	assert.Equal(t, 5, cfg.ChartPageSize)
	assert.Equal(t, 10, cfg.ChartCapacity)
	assert.Equal(t, 5, cfg.ChartWindow)
	assert.Equal(t, 300*time.Millisecond, cfg.Debounce)
	assert.Nil(t, cfg.recorder())
}
