// Package backend opens the record source selected in the settings: the
// remote record API or the local database.
package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm/logger"

	"github.com/thebtf/workoutdiary/internal/catalog"
	"github.com/thebtf/workoutdiary/internal/config"
	gormdb "github.com/thebtf/workoutdiary/internal/db/gorm"
	"github.com/thebtf/workoutdiary/internal/query"
	"github.com/thebtf/workoutdiary/internal/remote"
	"github.com/thebtf/workoutdiary/internal/submit"
	"github.com/thebtf/workoutdiary/pkg/models"
)

// catalogTimeout bounds the muscle-group refresh from the remote API.
const catalogTimeout = 5 * time.Second

// Writer stores submitted records.
type Writer interface {
	AddRecord(ctx context.Context, sub submit.Submission) (models.Record, error)
}

// Backend bundles the sources and the record writer of one source mode.
type Backend struct {
	Exercises query.Source[models.Exercise]
	Records   query.Source[models.Record]
	Writer    Writer
	Catalog   *catalog.Catalog
	// Store is the local database; nil in remote mode.
	Store *gormdb.Store
	Mode  string
}

// Options tune Open.
type Options struct {
	// SeedSessions seeds demo data into a local database when > 0.
	SeedSessions int
	LogLevel     logger.LogLevel
}

// Open connects to the source named by cfg.Source.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*Backend, error) {
	catalogPath := cfg.CatalogPath
	if catalogPath == "" {
		catalogPath = config.CatalogPath()
	}

	switch cfg.Source {
	case config.SourceLocal:
		return openLocal(ctx, cfg, opts, catalogPath)
	case config.SourceRemote, "":
		return openRemote(ctx, cfg, catalogPath)
	default:
		return nil, fmt.Errorf("unknown source mode %q", cfg.Source)
	}
}

func openRemote(ctx context.Context, cfg *config.Config, catalogPath string) (*Backend, error) {
	client, err := remote.New(remote.Config{
		BaseURL:   cfg.RemoteURL,
		Username:  cfg.Username,
		Timeout:   cfg.FetchTimeout(),
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
	})
	if err != nil {
		return nil, err
	}

	cat, err := remoteCatalog(ctx, client, catalogPath)
	if err != nil {
		return nil, err
	}

	log.Info().Str("url", cfg.RemoteURL).Str("username", cfg.Username).Msg("Using remote record API")
	return &Backend{
		Mode:      config.SourceRemote,
		Exercises: client.Exercises(),
		Records:   client.Records(),
		Writer:    client,
		Catalog:   cat,
	}, nil
}

// remoteCatalog fetches the muscle groups from the API and caches them at
// path. When the API is unreachable the cached or built-in catalog is used.
func remoteCatalog(ctx context.Context, client *remote.Client, path string) (*catalog.Catalog, error) {
	ctx, cancel := context.WithTimeout(ctx, catalogTimeout)
	defer cancel()

	groups, err := client.MuscleGroups(ctx)
	if err != nil || len(groups) == 0 {
		log.Warn().Err(err).Msg("Muscle groups unavailable from API, using cached catalog")
		return catalog.Load(path)
	}

	cat := catalog.New(groups)
	if err := cat.Save(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to cache muscle-group catalog")
	}
	return cat, nil
}

func openLocal(ctx context.Context, cfg *config.Config, opts Options, catalogPath string) (*Backend, error) {
	level := opts.LogLevel
	if level == 0 {
		level = logger.Silent
	}
	store, err := gormdb.NewStore(gormdb.Config{
		DSN:      cfg.DatabaseDSN(),
		MaxConns: cfg.MaxConns,
		LogLevel: level,
	})
	if err != nil {
		return nil, err
	}

	if opts.SeedSessions > 0 {
		if err := gormdb.Seed(ctx, store, cfg.Username, opts.SeedSessions, time.Now()); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	cat, err := catalog.Load(catalogPath)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	records := gormdb.NewRecordStore(store, cfg.Username)
	log.Info().Str("dialect", store.Dialect()).Str("username", cfg.Username).Msg("Using local record store")
	return &Backend{
		Mode:      config.SourceLocal,
		Exercises: gormdb.NewExerciseStore(store).Source(),
		Records:   records.Source(),
		Writer:    records,
		Catalog:   cat,
		Store:     store,
	}, nil
}

// Close releases the local database, if any.
func (b *Backend) Close() error {
	if b.Store == nil {
		return nil
	}
	return b.Store.Close()
}
