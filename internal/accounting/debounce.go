package accounting

import (
	"sync"
	"time"

	"github.com/askrepo/askrepo/internal/tokenizer"
)

// DefaultQuietPeriod is the debounce delay applied to prompt-text edits.
const DefaultQuietPeriod = 300 * time.Millisecond

// Debouncer recomputes the token count of free-form text after a quiet
// period. Each Schedule call supersedes any in-flight estimation; only the
// most recent scheduled task may commit its result. Supersession is
// implemented with a monotonically increasing generation counter, so a
// cancelled task produces no observable side effect even while running.
type Debouncer struct {
	mutex       sync.Mutex
	generation  uint64
	quietPeriod time.Duration
	timer       *time.Timer

	// Estimate computes the token count for text. Overridable in tests.
	Estimate func(text string) int
}

// NewDebouncer constructs a debouncer; non-positive quiet periods fall back
// to DefaultQuietPeriod.
func NewDebouncer(quietPeriod time.Duration) *Debouncer {
	if quietPeriod <= 0 {
		quietPeriod = DefaultQuietPeriod
	}
	return &Debouncer{
		quietPeriod: quietPeriod,
		Estimate:    tokenizer.EstimateText,
	}
}

// Schedule cancels any pending estimation and arms a new one for text. After
// the quiet period the token count is computed and, if the task is still
// current, handed to commit.
func (debouncer *Debouncer) Schedule(text string, commit func(tokens int)) {
	debouncer.mutex.Lock()
	debouncer.generation++
	taskGeneration := debouncer.generation
	if debouncer.timer != nil {
		debouncer.timer.Stop()
	}
	debouncer.timer = time.AfterFunc(debouncer.quietPeriod, func() {
		if !debouncer.isCurrent(taskGeneration) {
			return
		}
		tokens := debouncer.Estimate(text)
		if !debouncer.isCurrent(taskGeneration) {
			return
		}
		commit(tokens)
	})
	debouncer.mutex.Unlock()
}

// Cancel invalidates any pending or running estimation without scheduling a
// replacement.
func (debouncer *Debouncer) Cancel() {
	debouncer.mutex.Lock()
	debouncer.generation++
	if debouncer.timer != nil {
		debouncer.timer.Stop()
		debouncer.timer = nil
	}
	debouncer.mutex.Unlock()
}

func (debouncer *Debouncer) isCurrent(taskGeneration uint64) bool {
	debouncer.mutex.Lock()
	defer debouncer.mutex.Unlock()
	return debouncer.generation == taskGeneration
}
