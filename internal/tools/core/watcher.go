package core

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"codeassist/internal/logging"
)

// FileWatcher evicts loaded-file cache entries when the file changes on disk
// behind the assistant's back. It watches the parent directory of every
// cached file.
type FileWatcher struct {
	mu      sync.Mutex
	watcher *fsnotify.Watcher
	ws      *Workspace
	dirs    map[string]bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool

	// evicted is signalled after each eviction; tests use it to synchronize.
	evicted chan string
}

// NewFileWatcher creates a watcher for ws and attaches it.
func NewFileWatcher(ws *Workspace) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	fw := &FileWatcher{
		watcher: w,
		ws:      ws,
		dirs:    make(map[string]bool),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		evicted: make(chan string, 16),
	}
	ws.AttachWatcher(fw)
	return fw, nil
}

// Watch starts watching the directory containing abs.
func (fw *FileWatcher) Watch(abs string) {
	dir := filepath.Dir(abs)
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.dirs[dir] {
		return
	}
	if err := fw.watcher.Add(dir); err != nil {
		logging.ToolsWarn("FileWatcher: cannot watch %s: %v", dir, err)
		return
	}
	fw.dirs[dir] = true
	logging.ToolsDebug("FileWatcher: watching %s", dir)
}

// Start runs the event loop in a goroutine until ctx ends or Stop is called.
func (fw *FileWatcher) Start(ctx context.Context) {
	fw.mu.Lock()
	if fw.running {
		fw.mu.Unlock()
		return
	}
	fw.running = true
	fw.mu.Unlock()

	go fw.run(ctx)
}

// Stop stops the loop and closes the underlying watcher.
func (fw *FileWatcher) Stop() {
	fw.mu.Lock()
	wasRunning := fw.running
	fw.running = false
	fw.mu.Unlock()

	if wasRunning {
		close(fw.stopCh)
		<-fw.doneCh
	}
	if err := fw.watcher.Close(); err != nil {
		logging.ToolsWarn("FileWatcher: close: %v", err)
	}
}

func (fw *FileWatcher) run(ctx context.Context) {
	defer close(fw.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.stopCh:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handle(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.ToolsWarn("FileWatcher error: %v", err)
		}
	}
}

func (fw *FileWatcher) handle(event fsnotify.Event) {
	abs := filepath.Clean(event.Name)
	var evicted bool
	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		evicted = fw.ws.Forget(abs)
	case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		// Our own writes leave the cache in sync with disk.
		data, err := os.ReadFile(abs)
		if err != nil {
			evicted = fw.ws.Forget(abs)
		} else {
			evicted = fw.ws.forgetStale(abs, data)
		}
	}

	if evicted {
		logging.Tools("FileWatcher: evicted %s after external %s", abs, event.Op)
		select {
		case fw.evicted <- abs:
		default:
		}
	}
}
