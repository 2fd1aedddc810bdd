// Package accounting keeps incremental token counts over the selection set.
// Bulk recomputation runs in sequential fixed-size batches whose members are
// processed concurrently, bounding peak file-handle usage while keeping the
// observable running total fresh after every batch.
package accounting

import (
	"context"
	"os"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/askrepo/askrepo/internal/tokenizer"
	"github.com/askrepo/askrepo/internal/utils"
)

// DefaultBatchSize bounds how many files are read concurrently per batch.
const DefaultBatchSize = 10

// Cache maps file path to the last computed token count. Mutations happen
// under the cache mutex; background batches only compute values and hand
// them back for commit.
type Cache struct {
	mutex      sync.Mutex
	entries    map[string]int
	pending    map[string]struct{}
	generation uint64
	batchSize  int

	// Estimate computes the token count for file content. Overridable in tests.
	Estimate func(text string) int
	// OnProgress, when set, observes the aggregate total after each committed batch.
	OnProgress func(total int)
}

// NewCache constructs a cache with the provided batch size; sizes below one
// fall back to DefaultBatchSize.
func NewCache(batchSize int) *Cache {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Cache{
		entries:   make(map[string]int),
		pending:   make(map[string]struct{}),
		batchSize: batchSize,
		Estimate:  tokenizer.EstimateText,
	}
}

// Get returns the cached token count for path when present.
func (cache *Cache) Get(path string) (int, bool) {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	tokens, present := cache.entries[path]
	return tokens, present
}

// GetOrCompute returns a cached value immediately on a hit. On a miss it
// schedules a background computation and reports absence; the value becomes
// observable through Get or Total once committed.
func (cache *Cache) GetOrCompute(path string) (int, bool) {
	cache.mutex.Lock()
	if tokens, present := cache.entries[path]; present {
		cache.mutex.Unlock()
		return tokens, true
	}
	if _, alreadyPending := cache.pending[path]; alreadyPending {
		cache.mutex.Unlock()
		return 0, false
	}
	cache.pending[path] = struct{}{}
	cache.mutex.Unlock()

	go func() {
		tokens := cache.computeFileTokens(path)
		cache.mutex.Lock()
		delete(cache.pending, path)
		cache.entries[path] = tokens
		cache.mutex.Unlock()
	}()
	return 0, false
}

// Invalidate discards the entry for a path whose content changed.
func (cache *Cache) Invalidate(path string) {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	delete(cache.entries, path)
}

// Total returns the sum of all cached token counts.
func (cache *Cache) Total() int {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	return cache.totalLocked()
}

func (cache *Cache) totalLocked() int {
	total := 0
	for _, tokens := range cache.entries {
		total += tokens
	}
	return total
}

// RecomputeAll brings the cache in line with selectedPaths: missing entries
// are computed in sequential batches of concurrent reads, the running total
// grows monotonically across batch boundaries, and entries for paths outside
// the selection are pruned at the end. A newer pass supersedes this one; a
// superseded pass stops committing. The final total is returned.
func (cache *Cache) RecomputeAll(ctx context.Context, selectedPaths []string) int {
	cache.mutex.Lock()
	cache.generation++
	passGeneration := cache.generation

	selectedSet := make(map[string]struct{}, len(selectedPaths))
	var missingPaths []string
	for _, selectedPath := range selectedPaths {
		selectedSet[selectedPath] = struct{}{}
		if _, present := cache.entries[selectedPath]; !present {
			missingPaths = append(missingPaths, selectedPath)
		}
	}
	cache.mutex.Unlock()
	sort.Strings(missingPaths)

	for batchStart := 0; batchStart < len(missingPaths); batchStart += cache.batchSize {
		batchEnd := batchStart + cache.batchSize
		if batchEnd > len(missingPaths) {
			batchEnd = len(missingPaths)
		}
		batchPaths := missingPaths[batchStart:batchEnd]

		batchResults := make([]int, len(batchPaths))
		group, groupCtx := errgroup.WithContext(ctx)
		for batchIndex, batchPath := range batchPaths {
			batchIndex, batchPath := batchIndex, batchPath
			group.Go(func() error {
				select {
				case <-groupCtx.Done():
					return groupCtx.Err()
				default:
				}
				batchResults[batchIndex] = cache.computeFileTokens(batchPath)
				return nil
			})
		}
		if waitError := group.Wait(); waitError != nil {
			return cache.Total()
		}

		cache.mutex.Lock()
		if cache.generation != passGeneration {
			cache.mutex.Unlock()
			return cache.Total()
		}
		for batchIndex, batchPath := range batchPaths {
			cache.entries[batchPath] = batchResults[batchIndex]
		}
		runningTotal := cache.totalLocked()
		cache.mutex.Unlock()

		if cache.OnProgress != nil {
			cache.OnProgress(runningTotal)
		}
	}

	cache.mutex.Lock()
	if cache.generation == passGeneration {
		for cachedPath := range cache.entries {
			if _, stillSelected := selectedSet[cachedPath]; !stillSelected {
				delete(cache.entries, cachedPath)
			}
		}
	}
	finalTotal := cache.totalLocked()
	cache.mutex.Unlock()
	return finalTotal
}

// computeFileTokens reads a file and estimates its token count. Unreadable
// or binary files count as zero rather than failing the pass.
func (cache *Cache) computeFileTokens(path string) int {
	data, readError := os.ReadFile(path)
	if readError != nil {
		return 0
	}
	if utils.IsBinary(data) {
		return 0
	}
	return cache.Estimate(string(data))
}
