// Package watch feeds image files dropped into a directory to a handler, one at a time.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/brunocoulet-rtm/portraits/internal/logging"
	"github.com/brunocoulet-rtm/portraits/internal/utils"
)

// DefaultDebounce is how long a file must stay quiet before it is handled
const DefaultDebounce = 500 * time.Millisecond

// Handler processes one file. A returned error stops the watcher.
type Handler func(ctx context.Context, path string) error

// Watcher monitors a directory for new or rewritten image files
type Watcher struct {
	dir      string
	debounce time.Duration
	handle   Handler
	watcher  *fsnotify.Watcher
}

// New starts watching dir. Events are only consumed once Run is called.
func New(dir string, debounce time.Duration, handle Handler) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch folder %s: %w", dir, err)
	}
	logging.Printf("watching folder: %s", dir)
	return &Watcher{dir: dir, debounce: debounce, handle: handle, watcher: fw}, nil
}

// Run dispatches settled files to the handler until ctx is done or the handler fails
func (w *Watcher) Run(ctx context.Context) error {
	ready := make(chan string, 64)

	var mu sync.Mutex
	timers := make(map[string]*time.Timer)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}

			name := event.Name
			mu.Lock()
			if t, exists := timers[name]; exists {
				t.Stop()
			}
			timers[name] = time.AfterFunc(w.debounce, func() {
				mu.Lock()
				delete(timers, name)
				mu.Unlock()
				select {
				case ready <- name:
				case <-ctx.Done():
				}
			})
			mu.Unlock()

		case path := <-ready:
			if !utils.FileExists(path) {
				continue
			}
			if err := w.handle(ctx, path); err != nil {
				return err
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logging.Printf("watcher error: %v", err)
		}
	}
}

// Close stops watching
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".part") {
		return false
	}
	return utils.IsImageFile(base)
}
