package scanner

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/platinummonkey/flowindex/pkg/observability"
)

// DefaultDebounce is the quiet period a Watcher waits for before notifying
const DefaultDebounce = 2 * time.Second

// ChangeFunc receives the filenames that changed during one quiet period
type ChangeFunc func(ctx context.Context, changed []string)

// Watcher watches a workflows directory and reports debounced changes to
// matching documents. Creates, writes, removes and renames all count.
type Watcher struct {
	dir      string
	scanner  *Scanner
	debounce time.Duration
	onChange ChangeFunc
	logger   *observability.Logger

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
}

// NewWatcher creates a watcher for dir. It does not start watching until Run.
func NewWatcher(dir string, scanner *Scanner, debounce time.Duration, onChange ChangeFunc, logger *observability.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	return &Watcher{
		dir:      dir,
		scanner:  scanner,
		debounce: debounce,
		onChange: onChange,
		logger:   logger.WithField("component", "watcher"),
		watcher:  fw,
		pending:  make(map[string]struct{}),
	}, nil
}

// Run processes events until ctx is cancelled, then closes the watcher
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	w.logger.WithField("dir", w.dir).Info("Watching workflows directory")

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			if !w.scanner.Matches(event.Name) {
				continue
			}
			w.enqueue(ctx, filepath.Base(event.Name))

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("Watcher error")
		}
	}
}

func (w *Watcher) enqueue(ctx context.Context, filename string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[filename] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { w.flush(ctx) })
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	changed := make([]string, 0, len(w.pending))
	for name := range w.pending {
		changed = append(changed, name)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	if ctx.Err() != nil {
		return
	}

	sort.Strings(changed)
	w.logger.WithField("files", len(changed)).Debug("Workflow files changed")
	w.onChange(ctx, changed)
}
