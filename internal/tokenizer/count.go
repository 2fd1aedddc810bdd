package tokenizer

import (
	"errors"
	"os"
	"unicode/utf8"

	"github.com/askrepo/askrepo/internal/utils"
)

// CountResult captures the outcome of counting a file or byte slice.
type CountResult struct {
	Tokens  int
	Counted bool
}

// CountBytes estimates tokens for the provided data using counter. Binary or
// non-UTF-8 data is reported as not counted rather than an error.
func CountBytes(counter Counter, data []byte) (CountResult, error) {
	if counter == nil {
		return CountResult{}, errors.New("nil tokenizer counter")
	}
	if len(data) == 0 {
		return CountResult{Tokens: 0, Counted: true}, nil
	}
	if utils.IsBinary(data) || !utf8.Valid(data) {
		return CountResult{Counted: false}, nil
	}
	tokens, countError := counter.CountString(string(data))
	if countError != nil {
		return CountResult{}, countError
	}
	return CountResult{Tokens: tokens, Counted: true}, nil
}

// CountFile reads the file at path and estimates its token count.
func CountFile(counter Counter, path string) (CountResult, error) {
	if counter == nil {
		return CountResult{}, errors.New("nil tokenizer counter")
	}
	data, readError := os.ReadFile(path)
	if readError != nil {
		return CountResult{}, readError
	}
	return CountBytes(counter, data)
}
