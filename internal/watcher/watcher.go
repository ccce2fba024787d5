// Package watcher notifies callers when a file such as the settings file is
// written, replaced or removed.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce coalesces the burst of events editors emit on save.
const DefaultDebounce = 200 * time.Millisecond

// Watcher calls onChange when the target file changes.
// It watches the parent directory since editors often replace files by rename.
type Watcher struct {
	ctx        context.Context
	watcher    *fsnotify.Watcher
	onChange   func()
	cancel     context.CancelFunc
	targetPath string
	parentPath string
	debounce   time.Duration
	mu         sync.Mutex
	running    bool
}

// New creates a Watcher for targetPath.
func New(targetPath string, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	target := filepath.Clean(targetPath)

	return &Watcher{
		targetPath: target,
		parentPath: filepath.Dir(target),
		onChange:   onChange,
		watcher:    fsw,
		ctx:        ctx,
		cancel:     cancel,
		debounce:   DefaultDebounce,
	}, nil
}

// SetDebounce overrides the event coalescing interval. Call before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Start begins watching.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addWatch(); err != nil {
		log.Warn().Err(err).Str("path", w.parentPath).Msg("Failed to add initial watch")
	}

	go w.watchLoop()
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.running = false
	w.cancel()
	return w.watcher.Close()
}

func (w *Watcher) addWatch() error {
	if _, err := os.Stat(w.parentPath); err != nil {
		return err
	}
	return w.watcher.Add(w.parentPath)
}

func (w *Watcher) watchLoop() {
	var timer *time.Timer
	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

	for {
		select {
		case <-w.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.targetPath || event.Op&relevant == 0 {
				continue
			}

			log.Debug().Str("path", w.targetPath).Str("op", event.Op.String()).Msg("Watched file changed")
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.fire)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) fire() {
	if w.ctx.Err() != nil {
		return
	}
	log.Info().Str("path", w.targetPath).Msg("Triggering change callback")
	if w.onChange != nil {
		w.onChange()
	}
}
