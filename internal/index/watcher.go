package index

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes a data directory and reports when the index file
// changes on disk. It is a read-only convenience for presentation layers
// (e.g. a live-updating listing); it never touches the index locks.
type Watcher struct {
	watcher   *fsnotify.Watcher
	indexPath string

	// Callback invoked after a change to the index file settles.
	onChange func()

	mu     sync.Mutex
	stopCh chan struct{}
}

// NewWatcher creates a Watcher over the given data directory. The callback
// fires after writes to the index file, debounced so that a burst of
// events from one persist produces a single notification.
func NewWatcher(dataDir string, onChange func()) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory, not the file: atomic persists replace the index
	// via rename, which would drop a watch on the file itself.
	if err := watcher.Add(dataDir); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	return &Watcher{
		watcher:   watcher,
		indexPath: filepath.Join(dataDir, indexFileName),
		onChange:  onChange,
		stopCh:    make(chan struct{}),
	}, nil
}

// Start begins watching for index changes.
func (w *Watcher) Start() {
	go w.watchLoop()
}

// Stop stops the watcher and cleans up resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	select {
	case <-w.stopCh:
		// already stopped
	default:
		close(w.stopCh)
		_ = w.watcher.Close()
	}
}

// watchLoop processes filesystem events.
func (w *Watcher) watchLoop() {
	// Debounce events - one persist produces create+rename+write bursts
	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C // drain initial timer

	pending := false

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if event.Name != w.indexPath {
				continue
			}

			pending = true
			debounceTimer.Reset(50 * time.Millisecond)

		case <-debounceTimer.C:
			if pending {
				pending = false
				w.onChange()
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}
