// Package tokenizer estimates token counts for text destined for a model prompt.
// It offers a cheap synchronous heuristic and a precise count backed by one
// lazily constructed tiktoken encoder shared for the process lifetime.
package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter estimates token counts for text content.
type Counter interface {
	Name() string
	CountString(input string) (int, error)
}

// Config captures tokenizer selection parameters provided by the CLI.
type Config struct {
	Model string
}

const (
	// DefaultModel is the model whose encoding is used when none is configured.
	DefaultModel        = "gpt-4o"
	defaultEncodingName = "cl100k_base"

	// heuristicCharactersPerToken drives the synchronous estimate. Roughly
	// four characters per token holds for English prose and most source code.
	heuristicCharactersPerToken = 4

	errorInitializeFallbackFormat = "initialize fallback tokenizer: %w"
)

type tiktokenCounter struct {
	encoding *tiktoken.Tiktoken
	name     string
}

func (counter tiktokenCounter) Name() string {
	return counter.name
}

func (counter tiktokenCounter) CountString(input string) (int, error) {
	if counter.encoding == nil {
		return 0, fmt.Errorf("nil tiktoken encoder")
	}
	tokenIDs := counter.encoding.Encode(input, nil, nil)
	return len(tokenIDs), nil
}

// NewCounter returns a Counter for the requested model along with the name of
// the encoding actually resolved. Unknown models fall back to the default
// encoding rather than failing.
func NewCounter(cfg Config) (Counter, string, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	lowerModel := strings.ToLower(model)

	encoding, encodingError := tiktoken.EncodingForModel(lowerModel)
	if encodingError == nil && encoding != nil {
		return tiktokenCounter{encoding: encoding, name: lowerModel}, model, nil
	}

	fallback, fallbackError := tiktoken.GetEncoding(defaultEncodingName)
	if fallbackError != nil {
		return nil, "", fmt.Errorf(errorInitializeFallbackFormat, fallbackError)
	}
	return tiktokenCounter{encoding: fallback, name: defaultEncodingName}, defaultEncodingName, nil
}

var (
	sharedCounterOnce sync.Once
	sharedCounter     Counter
	sharedCounterErr  error
)

// SharedCounter returns the process-wide counter for the default model,
// constructing it on first use.
func SharedCounter() (Counter, error) {
	sharedCounterOnce.Do(func() {
		sharedCounter, _, sharedCounterErr = NewCounter(Config{})
	})
	return sharedCounter, sharedCounterErr
}

// EstimateSync returns a fast, deterministic, approximate token count. It
// returns 0 for empty input and at least 1 for any non-empty input.
func EstimateSync(text string) int {
	characterCount := len([]rune(text))
	if characterCount == 0 {
		return 0
	}
	estimated := (characterCount + heuristicCharactersPerToken - 1) / heuristicCharactersPerToken
	if estimated < 1 {
		return 1
	}
	return estimated
}

// EstimateText returns a precise token count using the shared encoder. If the
// encoder cannot be constructed or encoding fails, it falls back to the
// synchronous heuristic rather than propagating the error.
func EstimateText(text string) int {
	counter, counterError := SharedCounter()
	if counterError != nil || counter == nil {
		return EstimateSync(text)
	}
	tokens, countError := counter.CountString(text)
	if countError != nil {
		return EstimateSync(text)
	}
	return tokens
}
