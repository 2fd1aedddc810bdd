// Package watch observes loaded root directories for filesystem changes and
// forwards them to the workspace so token totals stay fresh.
package watch

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/askrepo/askrepo/internal/types"
	"github.com/askrepo/askrepo/internal/utils"
)

const DefaultSettleInterval = 500 * time.Millisecond

// Sink receives change notifications. The workspace satisfies it.
type Sink interface {
	InvalidateFile(absolutePath string)
}

// Watcher follows every directory under the registered roots. Write events
// invalidate the changed file; create and remove events mark the tree stale
// and fire OnTreeChanged after a settle interval.
type Watcher struct {
	fileWatcher *fsnotify.Watcher
	sink        Sink
	// OnTreeChanged runs after structural events settle. Nil disables it.
	OnTreeChanged func()
	// OnError receives watch failures. Nil disables reporting.
	OnError func(watchError error)

	mutex          sync.Mutex
	watched        map[string]struct{}
	settleTimer    *time.Timer
	settleInterval time.Duration
	closed         bool
}

// NewWatcher builds a watcher delivering invalidations to the sink.
func NewWatcher(sink Sink, settleInterval time.Duration) (*Watcher, error) {
	fileWatcher, watcherError := fsnotify.NewWatcher()
	if watcherError != nil {
		return nil, watcherError
	}
	if settleInterval <= 0 {
		settleInterval = DefaultSettleInterval
	}
	built := &Watcher{
		fileWatcher:    fileWatcher,
		sink:           sink,
		watched:        map[string]struct{}{},
		settleInterval: settleInterval,
	}
	go built.run()
	return built, nil
}

// AddRoot registers the root and all of its subdirectories.
func (treeWatcher *Watcher) AddRoot(rootPath string) error {
	return filepath.WalkDir(rootPath, func(walkedPath string, entry os.DirEntry, walkError error) error {
		if walkError != nil {
			return walkError
		}
		if !entry.IsDir() {
			return nil
		}
		return treeWatcher.watchDirectory(walkedPath)
	})
}

// RemoveRoot unregisters the root and every watched directory beneath it.
func (treeWatcher *Watcher) RemoveRoot(rootPath string) {
	cleanRoot := filepath.Clean(rootPath)
	treeWatcher.mutex.Lock()
	defer treeWatcher.mutex.Unlock()
	for watchedPath := range treeWatcher.watched {
		if utils.HasPathPrefix(watchedPath, cleanRoot) {
			_ = treeWatcher.fileWatcher.Remove(watchedPath)
			delete(treeWatcher.watched, watchedPath)
		}
	}
}

// Close stops event delivery. Safe to call more than once.
func (treeWatcher *Watcher) Close() error {
	treeWatcher.mutex.Lock()
	if treeWatcher.closed {
		treeWatcher.mutex.Unlock()
		return nil
	}
	treeWatcher.closed = true
	if treeWatcher.settleTimer != nil {
		treeWatcher.settleTimer.Stop()
	}
	treeWatcher.mutex.Unlock()
	return treeWatcher.fileWatcher.Close()
}

func (treeWatcher *Watcher) watchDirectory(directoryPath string) error {
	cleanDirectory := filepath.Clean(directoryPath)
	treeWatcher.mutex.Lock()
	defer treeWatcher.mutex.Unlock()
	if _, alreadyWatched := treeWatcher.watched[cleanDirectory]; alreadyWatched {
		return nil
	}
	if addError := treeWatcher.fileWatcher.Add(cleanDirectory); addError != nil {
		return types.NewError(types.ErrorKindAccessDenied, cleanDirectory, addError)
	}
	treeWatcher.watched[cleanDirectory] = struct{}{}
	return nil
}

func (treeWatcher *Watcher) run() {
	for {
		select {
		case event, open := <-treeWatcher.fileWatcher.Events:
			if !open {
				return
			}
			treeWatcher.handleEvent(event)
		case watchError, open := <-treeWatcher.fileWatcher.Errors:
			if !open {
				return
			}
			if treeWatcher.OnError != nil {
				treeWatcher.OnError(watchError)
			}
		}
	}
}

func (treeWatcher *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op.Has(fsnotify.Write) {
		treeWatcher.sink.InvalidateFile(event.Name)
		return
	}
	if event.Op.Has(fsnotify.Create) {
		if pathInformation, statError := os.Stat(event.Name); statError == nil && pathInformation.IsDir() {
			_ = treeWatcher.watchDirectory(event.Name)
		}
		treeWatcher.markTreeStale()
		return
	}
	if event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
		treeWatcher.sink.InvalidateFile(event.Name)
		treeWatcher.mutex.Lock()
		if _, wasWatched := treeWatcher.watched[filepath.Clean(event.Name)]; wasWatched {
			delete(treeWatcher.watched, filepath.Clean(event.Name))
		}
		treeWatcher.mutex.Unlock()
		treeWatcher.markTreeStale()
	}
}

func (treeWatcher *Watcher) markTreeStale() {
	treeWatcher.mutex.Lock()
	defer treeWatcher.mutex.Unlock()
	if treeWatcher.closed || treeWatcher.OnTreeChanged == nil {
		return
	}
	if treeWatcher.settleTimer != nil {
		treeWatcher.settleTimer.Stop()
	}
	treeWatcher.settleTimer = time.AfterFunc(treeWatcher.settleInterval, treeWatcher.OnTreeChanged)
}
