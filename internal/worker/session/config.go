package session

import (
	"time"

	"github.com/thebtf/workoutdiary/internal/config"
	"github.com/thebtf/workoutdiary/internal/metrics"
	"github.com/thebtf/workoutdiary/internal/query"
)

// Config sizes the streams a Manager creates.
type Config struct {
	Metrics       *metrics.Metrics
	ListPageSize  int
	ListCapacity  int
	ChartPageSize int
	ChartCapacity int
	ChartWindow   int
	Debounce      time.Duration
	FetchTimeout  time.Duration
}

// DefaultConfig returns the stream sizes of a default settings file.
func DefaultConfig() Config {
	return ConfigFrom(config.Default())
}

// ConfigFrom extracts the stream sizes from the worker settings.
func ConfigFrom(c *config.Config) Config {
	return Config{
		ListPageSize:  c.ListPageSize,
		ListCapacity:  c.ListCapacity,
		ChartPageSize: c.ChartPageSize,
		ChartCapacity: c.ChartCapacity,
		ChartWindow:   c.ChartWindow,
		Debounce:      c.Debounce(),
		FetchTimeout:  c.FetchTimeout(),
	}
}

func (c Config) recorder() query.Recorder {
	if c.Metrics == nil {
		return nil
	}
	return c.Metrics
}
