package kernels

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/vortex/engine/containers"
	"github.com/spaghettifunk/vortex/engine/core"
)

// Editors tend to emit several write events per save; changed paths sit
// in the queue for one debounce interval and duplicates collapse into a
// single reload.
const (
	watcherQueueSize = 256
	debounceInterval = 100 * time.Millisecond
)

// Watcher reloads kernel binaries when they change on disk. Intended
// for development: a recompiled .spv is re-registered under the same
// name, so the next shader-cache miss picks it up. Each reload fires
// EVENT_CODE_KERNEL_RELOADED with the kernel name.
type Watcher struct {
	registry *Registry
	fsnotify *fsnotify.Watcher
	pending  *containers.RingQueue[string]
	done     chan struct{}

	mutex    sync.Mutex
	isClosed bool
}

// NewWatcher starts watching dir for .spv changes, loading the current
// contents first.
func NewWatcher(registry *Registry, dir string) (*Watcher, error) {
	if err := registry.LoadDir(dir); err != nil {
		return nil, err
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		registry: registry,
		fsnotify: fsWatch,
		pending:  containers.NewRingQueue[string](watcherQueueSize),
		done:     make(chan struct{}),
	}
	if err := fsWatch.Add(dir); err != nil {
		fsWatch.Close()
		return nil, err
	}
	go w.start()
	return w, nil
}

func (w *Watcher) start() {
	ticker := time.NewTicker(debounceInterval)
	defer ticker.Stop()
	for {
		select {
		case event, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".spv") {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if w.pending.IsFull() {
				w.drain()
			}
			if err := w.pending.Enqueue(event.Name); err != nil {
				core.LogWarn("kernel watcher dropped event for %s: %s", event.Name, err.Error())
			}
		case <-ticker.C:
			w.drain()
		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("kernel watcher: %s", err.Error())
		case <-w.done:
			return
		}
	}
}

// drain reloads every queued path once, no matter how many events it
// accumulated during the debounce interval.
func (w *Watcher) drain() {
	seen := make(map[string]bool)
	for !w.pending.IsEmpty() {
		path, err := w.pending.Dequeue()
		if err != nil {
			return
		}
		if seen[path] {
			continue
		}
		seen[path] = true

		if err := w.registry.loadFile(path); err != nil {
			core.LogWarn("kernel reload failed: %s", err.Error())
			continue
		}
		name := kernelName(path)
		core.LogInfo("reloaded kernel binary '%s'", name)

		ctx := core.EventContext{}
		ctx.Data.C[0] = name
		core.EventFire(core.EVENT_CODE_KERNEL_RELOADED, w, ctx)
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.isClosed {
		return errors.New("kernels: watcher already closed")
	}
	w.isClosed = true
	close(w.done)
	return w.fsnotify.Close()
}
