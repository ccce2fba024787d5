// Package main provides the worker entry point for workoutdiary.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm/logger"

	"github.com/thebtf/workoutdiary/internal/backend"
	"github.com/thebtf/workoutdiary/internal/config"
	"github.com/thebtf/workoutdiary/internal/metrics"
	"github.com/thebtf/workoutdiary/internal/watcher"
	"github.com/thebtf/workoutdiary/internal/worker"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	debug := flag.Bool("debug", false, "Enable debug logging")
	seed := flag.Int("seed", 0, "Seed N demo sessions per exercise into the local database")
	port := flag.IntP("port", "p", 0, "Listen port (default: WORKOUT_WORKER_PORT)")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	dbLog := logger.Silent
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		dbLog = logger.Info
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := config.EnsureAll(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure data directory")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.Default()
	}
	if *port > 0 {
		cfg.WorkerPort = *port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, backend.Options{SeedSessions: *seed, LogLevel: dbLog}); err != nil {
		log.Fatal().Err(err).Msg("Worker failed")
	}
}

func run(ctx context.Context, cfg *config.Config, opts backend.Options) error {
	b, err := backend.Open(ctx, cfg, opts)
	if err != nil {
		return fmt.Errorf("open %s backend: %w", cfg.Source, err)
	}
	defer b.Close()

	svc, err := worker.NewService(worker.Deps{
		Exercises: b.Exercises,
		Records:   b.Records,
		Writer:    b.Writer,
		Config:    cfg,
		Catalog:   b.Catalog,
		Metrics:   metrics.New(),
		Version:   Version,
	})
	if err != nil {
		return err
	}

	// A settings change ends the process; the supervisor restarts it with
	// the new settings.
	restart := make(chan struct{})
	var once sync.Once
	settingsPath := config.SettingsPath()
	w, err := watcher.New(settingsPath, func() {
		log.Warn().Str("path", settingsPath).Msg("Config file changed, exiting for restart...")
		once.Do(func() { close(restart) })
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create config watcher")
	} else if err := w.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start config watcher")
	} else {
		defer w.Stop()
		log.Info().Str("path", settingsPath).Msg("Config file watcher started")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Start(fmt.Sprintf(":%d", cfg.WorkerPort))
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-restart:
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return svc.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
