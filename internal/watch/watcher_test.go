package watch_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/askrepo/askrepo/internal/watch"
)

type recordingSink struct {
	mutex       sync.Mutex
	invalidated []string
}

func (sink *recordingSink) InvalidateFile(absolutePath string) {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	sink.invalidated = append(sink.invalidated, absolutePath)
}

func (sink *recordingSink) contains(absolutePath string) bool {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	for _, invalidatedPath := range sink.invalidated {
		if invalidatedPath == absolutePath {
			return true
		}
	}
	return false
}

func waitUntil(testingHandle *testing.T, description string, predicate func() bool) {
	testingHandle.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if predicate() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	testingHandle.Fatalf("timed out waiting for %s", description)
}

func TestWriteEventInvalidatesFile(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	watchedFile := filepath.Join(rootDirectory, "tracked.txt")
	if writeError := os.WriteFile(watchedFile, []byte("before\n"), 0o644); writeError != nil {
		testingHandle.Fatalf("write file: %v", writeError)
	}

	sink := &recordingSink{}
	treeWatcher, watcherError := watch.NewWatcher(sink, 50*time.Millisecond)
	if watcherError != nil {
		testingHandle.Fatalf("create watcher: %v", watcherError)
	}
	defer treeWatcher.Close()
	if addError := treeWatcher.AddRoot(rootDirectory); addError != nil {
		testingHandle.Fatalf("add root: %v", addError)
	}

	if writeError := os.WriteFile(watchedFile, []byte("after, with more text\n"), 0o644); writeError != nil {
		testingHandle.Fatalf("rewrite file: %v", writeError)
	}
	waitUntil(testingHandle, "write invalidation", func() bool { return sink.contains(watchedFile) })
}

func TestCreateEventFiresTreeChanged(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()

	sink := &recordingSink{}
	treeWatcher, watcherError := watch.NewWatcher(sink, 20*time.Millisecond)
	if watcherError != nil {
		testingHandle.Fatalf("create watcher: %v", watcherError)
	}
	defer treeWatcher.Close()

	var changeMutex sync.Mutex
	treeChanged := false
	treeWatcher.OnTreeChanged = func() {
		changeMutex.Lock()
		treeChanged = true
		changeMutex.Unlock()
	}
	if addError := treeWatcher.AddRoot(rootDirectory); addError != nil {
		testingHandle.Fatalf("add root: %v", addError)
	}

	if writeError := os.WriteFile(filepath.Join(rootDirectory, "new.txt"), []byte("fresh\n"), 0o644); writeError != nil {
		testingHandle.Fatalf("create file: %v", writeError)
	}
	waitUntil(testingHandle, "tree change notification", func() bool {
		changeMutex.Lock()
		defer changeMutex.Unlock()
		return treeChanged
	})
}

func TestRemoveRootStopsDelivery(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	watchedFile := filepath.Join(rootDirectory, "tracked.txt")
	if writeError := os.WriteFile(watchedFile, []byte("before\n"), 0o644); writeError != nil {
		testingHandle.Fatalf("write file: %v", writeError)
	}

	sink := &recordingSink{}
	treeWatcher, watcherError := watch.NewWatcher(sink, 20*time.Millisecond)
	if watcherError != nil {
		testingHandle.Fatalf("create watcher: %v", watcherError)
	}
	defer treeWatcher.Close()
	if addError := treeWatcher.AddRoot(rootDirectory); addError != nil {
		testingHandle.Fatalf("add root: %v", addError)
	}
	treeWatcher.RemoveRoot(rootDirectory)

	if writeError := os.WriteFile(watchedFile, []byte("after\n"), 0o644); writeError != nil {
		testingHandle.Fatalf("rewrite file: %v", writeError)
	}
	time.Sleep(200 * time.Millisecond)
	if sink.contains(watchedFile) {
		testingHandle.Fatal("expected no invalidation after root removal")
	}
}
