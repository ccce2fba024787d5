// diary is an interactive shell over the exercise list and history charts.
//
// Usage:
//
//	diary [--debug] [--seed N] [--source remote|local]
//
// Commands (in REPL):
//
//	search [text]                  Search exercises by name
//	filter <group|ALL>             Restrict the list to a muscle group
//	groups                         Show the muscle groups
//	more                           Load the next page of the list
//	list                           Show the list again
//	chart <exercise>               Open the history chart of an exercise
//	older / newer                  Move the chart window one page
//	select <n|id>                  Inspect a chart entry
//	add <sets> [-- note]           Log a record for the charted exercise
//	close                          Close the chart
//	help                           Show this help
//	exit / quit / q                Exit
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"github.com/thebtf/workoutdiary/internal/backend"
	"github.com/thebtf/workoutdiary/internal/config"
	"github.com/thebtf/workoutdiary/internal/worker/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	debug := flag.Bool("debug", false, "Enable debug logging")
	seed := flag.Int("seed", 0, "Seed N demo sessions per exercise into the local database")
	source := flag.String("source", "", "Record source: remote or local (default: WORKOUT_SOURCE)")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := config.EnsureAll(); err != nil {
		return fmt.Errorf("ensure data directory: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.Default()
	}
	if *source != "" {
		cfg.Source = *source
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := backend.Open(ctx, cfg, backend.Options{SeedSessions: *seed})
	if err != nil {
		return err
	}
	defer b.Close()

	manager := session.NewManager(ctx, b.Exercises, b.Records, b.Catalog, session.ConfigFrom(cfg), nil)
	defer manager.Shutdown()

	r := &REPL{
		out:      os.Stdout,
		manager:  manager,
		catalog:  b.Catalog,
		writer:   b.Writer,
		pageSize: cfg.ListPageSize,
		wait:     cfg.Debounce() + cfg.FetchTimeout(),
		mode:     b.Mode,
	}
	return r.Run(ctx)
}
