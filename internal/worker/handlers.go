package worker

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/workoutdiary/internal/catalog"
	"github.com/thebtf/workoutdiary/internal/query"
	"github.com/thebtf/workoutdiary/internal/submit"
	"github.com/thebtf/workoutdiary/internal/worker/session"
)

// SearchRequest is the body of POST /api/exercises/search.
type SearchRequest struct {
	Text        string `json:"text"`
	MuscleGroup string `json:"muscleGroup"`
}

// RecordRequest is the body of POST /api/records. Date is optional and uses
// submit.DateTimeLayout; it defaults to now.
type RecordRequest struct {
	ExerciseName string         `json:"exerciseName"`
	Date         string         `json:"date,omitempty"`
	Note         string         `json:"note,omitempty"`
	Sets         [][]submit.Row `json:"sets"`
}

// fetchResponse reports what a fetch did alongside the resulting state.
type fetchResponse struct {
	Data    any    `json:"data"`
	Outcome string `json:"outcome"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, query.ErrInvalidQuery),
		errors.Is(err, catalog.ErrUnknownMuscleGroup),
		errors.Is(err, submit.ErrEmptySubmission),
		errors.Is(err, submit.ErrInvalidRow),
		errors.Is(err, submit.ErrNoExercise),
		errors.Is(err, session.ErrNoExercise):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrChartNotOpen),
		errors.Is(err, session.ErrNotInWindow):
		return http.StatusNotFound
	case errors.Is(err, query.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, query.ErrFetchFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Service) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	ev := log.Debug()
	if status >= http.StatusInternalServerError {
		ev = log.Warn()
	}
	ev.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("Request failed")

	msg := err.Error()
	if errors.Is(err, submit.ErrEmptySubmission) {
		msg = submit.EmptyMessage
	}
	writeError(w, status, msg)
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "starting"
	if s.ready.Load() {
		status = "ready"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
		"charts":  s.sessions.ChartCount(),
		"clients": s.sseBroadcaster.ClientCount(),
	})
}

func (s *Service) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeError(w, http.StatusServiceUnavailable, "service not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Service) handleListSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.List().Snapshot())
}

func (s *Service) handleListSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.sessions.List().Search(req.Text, req.MuscleGroup); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

func (s *Service) handleListMore(w http.ResponseWriter, r *http.Request) {
	list := s.sessions.List()
	outcome, err := list.More(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fetchResponse{Outcome: outcome.String(), Data: list.Snapshot()})
}

func (s *Service) handleChartNames(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"charts": s.sessions.Charts()})
}

func exerciseParam(r *http.Request) string {
	raw := chi.URLParam(r, "exercise")
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}

func (s *Service) handleChartOpen(w http.ResponseWriter, r *http.Request) {
	c, outcome, err := s.sessions.OpenChart(r.Context(), exerciseParam(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fetchResponse{Outcome: outcome.String(), Data: c.View()})
}

func (s *Service) handleChartView(w http.ResponseWriter, r *http.Request) {
	c, err := s.sessions.Chart(exerciseParam(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c.View())
}

func (s *Service) handleChartClose(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.CloseChart(exerciseParam(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleChartNavigate(w http.ResponseWriter, r *http.Request) {
	direction, err := strconv.Atoi(r.URL.Query().Get("direction"))
	if err != nil || (direction != 1 && direction != -1) {
		writeError(w, http.StatusBadRequest, "direction must be 1 or -1")
		return
	}
	c, err := s.sessions.Chart(exerciseParam(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	outcome, err := c.Navigate(r.Context(), direction)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fetchResponse{Outcome: outcome.String(), Data: c.View()})
}

func (s *Service) handleChartSelect(w http.ResponseWriter, r *http.Request) {
	c, err := s.sessions.Chart(exerciseParam(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	entry, err := c.Select(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Service) handleRecordSubmit(w http.ResponseWriter, r *http.Request) {
	if s.writer == nil {
		writeError(w, http.StatusNotImplemented, "record submission is not available")
		return
	}

	var req RecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	at := time.Now()
	if req.Date != "" {
		parsed, err := submit.ParseDateTime(req.Date, time.Local)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		at = parsed
	}

	sub, err := submit.Build(req.ExerciseName, req.Sets, req.Note, at)
	if err != nil {
		s.metrics.Submissions.WithLabelValues("invalid").Inc()
		s.fail(w, r, err)
		return
	}

	rec, err := s.writer.AddRecord(r.Context(), sub)
	if err != nil {
		s.metrics.Submissions.WithLabelValues("failed").Inc()
		log.Warn().Err(err).Str("exercise", sub.ExerciseName).Msg("Record submission failed")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.metrics.Submissions.WithLabelValues("stored").Inc()

	// An open chart of the exercise starts over from the newest page.
	if c, err := s.sessions.Chart(sub.ExerciseName); err == nil {
		if _, err := c.Load(r.Context()); err != nil {
			log.Warn().Err(err).Str("exercise", sub.ExerciseName).Msg("Chart reload after submission failed")
		}
	}

	log.Info().
		Str("exercise", sub.ExerciseName).
		Str("slot", sub.DateTime()).
		Int("sets", len(sub.Sets)).
		Msg("Record stored")
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Service) handleMuscleGroups(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"options": s.catalog.Options(),
		"groups":  s.catalog.All(),
	})
}
