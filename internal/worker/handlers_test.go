package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/thebtf/workoutdiary/internal/catalog"
	"github.com/thebtf/workoutdiary/internal/config"
	gormdb "github.com/thebtf/workoutdiary/internal/db/gorm"
	"github.com/thebtf/workoutdiary/internal/query"
	"github.com/thebtf/workoutdiary/internal/submit"
	"github.com/thebtf/workoutdiary/internal/worker/session"
	"github.com/thebtf/workoutdiary/pkg/models"
)

// testService creates a ready Service over a seeded SQLite store.
func testService(t *testing.T) *Service {
	t.Helper()

	store, err := gormdb.NewStore(gormdb.Config{
		DSN:      filepath.Join(t.TempDir(), "worker.db"),
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, gormdb.Seed(context.Background(), store, "alice", 12, time.Now().UTC()))

	cfg := config.Default()
	cfg.DebounceMS = 20
	records := gormdb.NewRecordStore(store, "alice")

	svc, err := NewService(Deps{
		Exercises: gormdb.NewExerciseStore(store).Source(),
		Records:   records.Source(),
		Writer:    records,
		Config:    cfg,
		Version:   "test-version",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	_, err = svc.sessions.List().Load(context.Background())
	require.NoError(t, err)
	svc.ready.Store(true)
	return svc
}

func do(t *testing.T, svc *Service, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, req)
	return rec
}

type chartResponse struct {
	Outcome string            `json:"outcome"`
	Data    session.ChartView `json:"data"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestNewService_RequiresSources(t *testing.T) {
	_, err := NewService(Deps{})
	assert.Error(t, err)
}

func TestHandleHealth_ReturnsVersion(t *testing.T) {
	svc := testService(t)

	rec := do(t, svc, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	response := decode[map[string]any](t, rec)
	assert.Equal(t, "ready", response["status"])
	assert.Equal(t, "test-version", response["version"])
}

func TestHandleVersion(t *testing.T) {
	svc := testService(t)
	svc.version = "v2.0.0-beta"

	rec := do(t, svc, http.MethodGet, "/api/version", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v2.0.0-beta", decode[map[string]string](t, rec)["version"])
}

func TestRequireReady(t *testing.T) {
	svc := testService(t)
	svc.ready.Store(false)

	assert.Equal(t, http.StatusServiceUnavailable, do(t, svc, http.MethodGet, "/api/ready", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, svc, http.MethodGet, "/api/exercises", nil).Code)
	// Health stays reachable.
	assert.Equal(t, http.StatusOK, do(t, svc, http.MethodGet, "/health", nil).Code)

	svc.ready.Store(true)
	assert.Equal(t, http.StatusOK, do(t, svc, http.MethodGet, "/api/ready", nil).Code)
}

func TestExerciseList(t *testing.T) {
	svc := testService(t)

	rec := do(t, svc, http.MethodGet, "/api/exercises", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[query.Snapshot[models.Exercise]](t, rec)
	assert.Len(t, snap.Items, len(gormdb.DemoExercises))
	assert.False(t, snap.HasNext)

	rec = do(t, svc, http.MethodPost, "/api/exercises/more", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "skipped", decode[map[string]any](t, rec)["outcome"])
}

func TestExerciseSearch(t *testing.T) {
	svc := testService(t)

	rec := do(t, svc, http.MethodPost, "/api/exercises/search", SearchRequest{Text: "b", MuscleGroup: "biceps"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		snap := svc.sessions.List().Snapshot()
		if snap.State != "idle" || snap.Query.Text != "b" || len(snap.Items) != 2 {
			return false
		}
		return snap.Items[0].Name == "Barbell row" && snap.Items[1].Name == "Biceps curl"
	}, time.Second, 10*time.Millisecond)

	rec = do(t, svc, http.MethodPost, "/api/exercises/search", SearchRequest{MuscleGroup: "WINGS"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/exercises/search", bytes.NewBufferString("{"))
	bad := httptest.NewRecorder()
	svc.Handler().ServeHTTP(bad, req)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestChartFlow(t *testing.T) {
	svc := testService(t)
	base := "/api/charts/Bench%20press"

	rec := do(t, svc, http.MethodPost, base, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	opened := decode[chartResponse](t, rec)
	assert.Equal(t, "applied", opened.Outcome)
	assert.Equal(t, "Bench press", opened.Data.Exercise)
	require.Len(t, opened.Data.Window.Entries, 5)
	assert.True(t, opened.Data.HasNext)
	entries := opened.Data.Window.Entries
	for i := 1; i < len(entries); i++ {
		assert.True(t, entries[i].Date.After(entries[i-1].Date), "window runs oldest to newest")
		assert.Equal(t, 3, entries[i].ElapsedDays)
	}

	rec = do(t, svc, http.MethodPost, base+"/navigate?direction=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	moved := decode[chartResponse](t, rec)
	assert.Equal(t, "applied", moved.Outcome)
	assert.Equal(t, 1, moved.Data.Window.Offset)
	assert.Equal(t, 10, moved.Data.Cached)

	assert.Equal(t, http.StatusBadRequest, do(t, svc, http.MethodPost, base+"/navigate?direction=2", nil).Code)

	id := moved.Data.Window.Entries[0].ID
	rec = do(t, svc, http.MethodPost, base+"/select/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, decode[map[string]any](t, rec)["id"])
	assert.Equal(t, http.StatusNotFound, do(t, svc, http.MethodPost, base+"/select/nope", nil).Code)

	rec = do(t, svc, http.MethodGet, "/api/charts", nil)
	assert.Equal(t, []string{"Bench press"}, decode[map[string][]string](t, rec)["charts"])

	assert.Equal(t, http.StatusNoContent, do(t, svc, http.MethodDelete, base, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, svc, http.MethodGet, base, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, svc, http.MethodDelete, base, nil).Code)
}

func TestRecordSubmit(t *testing.T) {
	svc := testService(t)
	require.Equal(t, http.StatusOK, do(t, svc, http.MethodPost, "/api/charts/Plank", nil).Code)

	rec := do(t, svc, http.MethodPost, "/api/records", RecordRequest{
		ExerciseName: "Plank",
		Date:         "2030-01-01_09-10",
		Note:         "new best",
		Sets: [][]submit.Row{
			{{Weight: "10", Repetitions: "3"}, {Weight: "", Repetitions: "2"}},
			{{Weight: "12.5", Repetitions: "2"}},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	stored := decode[models.Record](t, rec)
	assert.Equal(t, "Plank", stored.ExerciseName)
	assert.Equal(t, 55.0, stored.Total())
	assert.Equal(t, 0, stored.Date.Minute())

	// The open chart was reloaded and shows the new record as newest.
	view := decode[session.ChartView](t, do(t, svc, http.MethodGet, "/api/charts/Plank", nil))
	require.NotEmpty(t, view.Window.Entries)
	newest := view.Window.Entries[len(view.Window.Entries)-1]
	assert.Equal(t, stored.ID, newest.ID)
	assert.Equal(t, "new best", newest.Note)

	rec = do(t, svc, http.MethodPost, "/api/records", RecordRequest{
		ExerciseName: "Plank",
		Sets:         [][]submit.Row{{{Weight: "", Repetitions: "5"}}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, submit.EmptyMessage, decode[map[string]string](t, rec)["error"])

	rec = do(t, svc, http.MethodPost, "/api/records", RecordRequest{
		ExerciseName: "Plank",
		Date:         "yesterday",
		Sets:         [][]submit.Row{{{Weight: "1", Repetitions: "1"}}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.Submissions.WithLabelValues("stored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.Submissions.WithLabelValues("invalid")))
}

func TestRecordSubmit_WithoutWriter(t *testing.T) {
	svc := testService(t)
	svc.writer = nil

	rec := do(t, svc, http.MethodPost, "/api/records", RecordRequest{ExerciseName: "Plank"})
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestMuscleGroups(t *testing.T) {
	svc := testService(t)

	rec := do(t, svc, http.MethodGet, "/api/muscle-groups", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Options []string             `json:"options"`
		Groups  []models.MuscleGroup `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Options)
	assert.Equal(t, catalog.AllGroups, body.Options[0])
	assert.Len(t, body.Groups, len(body.Options)-1)
}

func TestMetricsEndpoint(t *testing.T) {
	svc := testService(t)
	do(t, svc, http.MethodPost, "/api/charts/Plank", nil)

	rec := do(t, svc, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `workoutdiary_fetches_total{kind="chart",outcome="applied"} 1`)
	assert.Contains(t, rec.Body.String(), "workoutdiary_charts_open 1")
}

func TestDashboard(t *testing.T) {
	svc := testService(t)

	rec := do(t, svc, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	rec = do(t, svc, http.MethodGet, "/assets/app.js", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "EventSource")

	assert.Equal(t, http.StatusNotFound, do(t, svc, http.MethodGet, "/assets/missing.js", nil).Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: fmt.Errorf("wrap: %w", query.ErrInvalidQuery), want: http.StatusBadRequest},
		{err: catalog.ErrUnknownMuscleGroup, want: http.StatusBadRequest},
		{err: submit.ErrEmptySubmission, want: http.StatusBadRequest},
		{err: submit.ErrInvalidRow, want: http.StatusBadRequest},
		{err: session.ErrNoExercise, want: http.StatusBadRequest},
		{err: session.ErrChartNotOpen, want: http.StatusNotFound},
		{err: session.ErrNotInWindow, want: http.StatusNotFound},
		{err: query.ErrClosed, want: http.StatusServiceUnavailable},
		{err: fmt.Errorf("%w: list page 0: %w", query.ErrFetchFailed, errors.New("timeout")), want: http.StatusBadGateway},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
