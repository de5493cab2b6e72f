// Package watch reports settled changes to deck files.
package watch

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultExtensions are the files a deck reload depends on.
var DefaultExtensions = []string{".yaml", ".yaml.tmpl", ".json"}

// shortest interval between pending-batch checks
const minTick = time.Millisecond

// ChangeFunc receives every path that settled in one debounce window, sorted.
type ChangeFunc func(ctx context.Context, paths []string)

// Stats counts watcher activity.
type Stats struct {
	Events  int
	Batches int
	Errors  int
}

// Watcher debounces fsnotify events on a set of directories.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	dirs     []string
	exts     []string
	onChange ChangeFunc
	logger   zerolog.Logger

	pending  map[string]time.Time
	debounce time.Duration
	tick     time.Duration

	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
	stopOnce sync.Once
	stats    Stats
}

func New(dirs, exts []string, onChange ChangeFunc, logger zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	return &Watcher{
		watcher:  fw,
		dirs:     dirs,
		exts:     exts,
		onChange: onChange,
		logger:   logger.With().Str("component", "watch").Logger(),
		pending:  make(map[string]time.Time),
		debounce: 300 * time.Millisecond, // editors write in bursts
		tick:     50 * time.Millisecond,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// SetDebounce changes the settle window. Call before Start.
// Non-positive values deliver a batch on the next tick.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = max(d, 0)
	if d < w.tick {
		w.tick = max(d, minTick)
	}
}

// Start watches the directories in a background goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	for _, dir := range w.dirs {
		if _, err := os.Stat(dir); err != nil {
			w.logger.Warn().Err(err).Str("dir", dir).Msg("not watching")
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			return err
		}
		w.logger.Info().Str("dir", dir).Msg("watching")
	}

	go w.run(ctx)
	return nil
}

// Stop ends the event loop and releases the fsnotify watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		running := w.running
		w.running = false
		w.mu.Unlock()

		if running {
			close(w.stopCh)
			<-w.doneCh
		}
		if err := w.watcher.Close(); err != nil {
			w.logger.Error().Err(err).Msg("closing watcher")
		}
	})
}

func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	w.mu.Lock()
	ticker := time.NewTicker(w.tick)
	w.mu.Unlock()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("watch error")
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	if !w.relevant(event.Name) {
		return
	}

	w.logger.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("change")

	w.mu.Lock()
	w.stats.Events++
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) relevant(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range w.exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// flush delivers the batch once every pending path has been quiet for the
// debounce window.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	now := time.Now()
	for _, at := range w.pending {
		if now.Sub(at) < w.debounce {
			w.mu.Unlock()
			return
		}
	}

	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]time.Time)
	w.stats.Batches++
	w.mu.Unlock()

	sort.Strings(paths)
	if w.onChange != nil {
		w.onChange(ctx, paths)
	}
}
