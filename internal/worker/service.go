// Package worker provides the HTTP worker serving the exercise list, the
// history charts and record submission to dashboard clients.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/workoutdiary/internal/catalog"
	"github.com/thebtf/workoutdiary/internal/config"
	"github.com/thebtf/workoutdiary/internal/metrics"
	"github.com/thebtf/workoutdiary/internal/query"
	"github.com/thebtf/workoutdiary/internal/submit"
	"github.com/thebtf/workoutdiary/internal/worker/session"
	"github.com/thebtf/workoutdiary/internal/worker/sse"
	"github.com/thebtf/workoutdiary/pkg/models"
)

// RecordWriter stores submitted records.
type RecordWriter interface {
	AddRecord(ctx context.Context, sub submit.Submission) (models.Record, error)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Exercises query.Source[models.Exercise]
	Records   query.Source[models.Record]
	Writer    RecordWriter
	Config    *config.Config
	Catalog   *catalog.Catalog
	Metrics   *metrics.Metrics
	Version   string
}

// Service is the worker HTTP service.
type Service struct {
	startTime      time.Time
	ctx            context.Context
	writer         RecordWriter
	config         *config.Config
	catalog        *catalog.Catalog
	metrics        *metrics.Metrics
	sessions       *session.Manager
	sseBroadcaster *sse.Broadcaster
	router         *chi.Mux
	server         *http.Server
	cancel         context.CancelFunc
	version        string
	ready          atomic.Bool
}

// NewService wires the sessions, the event stream and the routes.
func NewService(deps Deps) (*Service, error) {
	if deps.Exercises == nil || deps.Records == nil {
		return nil, errors.New("exercise and record sources are required")
	}
	if deps.Config == nil {
		deps.Config = config.Default()
	}
	if deps.Catalog == nil {
		deps.Catalog = catalog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	ctx, cancel := context.WithCancel(context.Background())

	broadcaster := sse.NewBroadcaster()
	broadcaster.Instrument(deps.Metrics)

	cfg := session.ConfigFrom(deps.Config)
	cfg.Metrics = deps.Metrics

	svc := &Service{
		version:        deps.Version,
		config:         deps.Config,
		catalog:        deps.Catalog,
		metrics:        deps.Metrics,
		writer:         deps.Writer,
		sseBroadcaster: broadcaster,
		sessions:       session.NewManager(ctx, deps.Exercises, deps.Records, deps.Catalog, cfg, broadcaster),
		router:         chi.NewRouter(),
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
	}
	if groups := deps.Config.MuscleGroupFilters(); len(groups) > 0 {
		if err := svc.sessions.List().Preset("", groups[0]); err != nil {
			log.Warn().Err(err).Str("group", groups[0]).Msg("Ignoring default muscle group")
		}
	}
	svc.setupRoutes()
	svc.server = &http.Server{
		Handler:           svc.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return svc, nil
}

// Handler returns the service router.
func (s *Service) Handler() http.Handler { return s.router }

func (s *Service) setupRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", serveIndex)
	r.Get("/assets/*", serveAssets)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/version", s.handleVersion)
		r.Get("/ready", s.handleReady)

		r.Group(func(r chi.Router) {
			r.Use(s.requireReady)

			r.Get("/exercises", s.handleListSnapshot)
			r.Post("/exercises/search", s.handleListSearch)
			r.Post("/exercises/more", s.handleListMore)

			r.Get("/charts", s.handleChartNames)
			r.Route("/charts/{exercise}", func(r chi.Router) {
				r.Post("/", s.handleChartOpen)
				r.Get("/", s.handleChartView)
				r.Delete("/", s.handleChartClose)
				r.Post("/navigate", s.handleChartNavigate)
				r.Post("/select/{id}", s.handleChartSelect)
			})

			r.Post("/records", s.handleRecordSubmit)
			r.Get("/muscle-groups", s.handleMuscleGroups)
			r.Get("/events", s.sseBroadcaster.HandleSSE)
		})
	})
}

// Start loads the first list page, then serves on addr until Shutdown.
// It returns nil without serving when Shutdown ran first.
func (s *Service) Start(addr string) error {
	if s.ctx.Err() != nil {
		return nil
	}
	if _, err := s.sessions.List().Load(s.ctx); err != nil {
		log.Warn().Err(err).Msg("Initial exercise list load failed")
	}
	if s.ctx.Err() != nil {
		return nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.ready.Store(true)
	log.Info().Str("addr", ln.Addr().String()).Str("version", s.version).Msg("Worker listening")

	// Serve returns ErrServerClosed at once if Shutdown already ran.
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve %s: %w", addr, err)
	}
	return nil
}

// Shutdown stops accepting requests and tears the sessions down.
func (s *Service) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	s.cancel()
	err := s.server.Shutdown(ctx)
	s.sessions.Shutdown()
	log.Info().Dur("uptime", time.Since(s.startTime)).Msg("Worker stopped")
	return err
}

// requireReady rejects API calls until the first list load finished.
func (s *Service) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			writeError(w, http.StatusServiceUnavailable, "service not ready")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("requestId", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
