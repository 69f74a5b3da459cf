// Package watcher re-triggers work when an inventory file changes.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher watches a file for changes
type Watcher struct {
	path     string
	onChange func()
	debounce time.Duration
}

// New creates a new file watcher
func New(path string, onChange func()) *Watcher {
	return &Watcher{
		path:     path,
		onChange: onChange,
		debounce: 500 * time.Millisecond,
	}
}

// WithDebounce sets the debounce duration
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Watch starts watching the file for changes.
// It blocks until the context is cancelled or an error occurs. onChange never
// runs concurrently with itself; changes arriving while it runs are coalesced
// into one more call.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory containing the file
	// This handles cases where the file is replaced (e.g., by editors)
	dir := filepath.Dir(w.path)
	filename := filepath.Base(w.path)

	if err := watcher.Add(dir); err != nil {
		return err
	}

	log.Info().Str("path", w.path).Msg("Watching inventory for changes")

	var (
		debounceTimer *time.Timer
		mu            sync.Mutex
		running       bool
		pending       bool
		wg            sync.WaitGroup
	)
	defer wg.Wait()

	// fire runs onChange, or marks a rerun if another fire is already running.
	// The running fire loops until no rerun is pending.
	fire := func() {
		defer wg.Done()

		mu.Lock()
		if running {
			pending = true
			mu.Unlock()
			return
		}
		running = true
		mu.Unlock()

		for {
			if ctx.Err() == nil {
				log.Info().Str("path", w.path).Msg("Inventory changed")
				w.onChange()
			}

			mu.Lock()
			if !pending || ctx.Err() != nil {
				running, pending = false, false
				mu.Unlock()
				return
			}
			pending = false
			mu.Unlock()
		}
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			// Check if this event is for our file
			if filepath.Base(event.Name) != filename {
				continue
			}

			// Handle write, create and rename-into-place events
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				// Debounce rapid changes
				if debounceTimer != nil && debounceTimer.Stop() {
					wg.Done()
				}
				wg.Add(1)
				debounceTimer = time.AfterFunc(w.debounce, fire)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Watcher error")

		case <-ctx.Done():
			if debounceTimer != nil && debounceTimer.Stop() {
				wg.Done()
			}
			return ctx.Err()
		}
	}
}
