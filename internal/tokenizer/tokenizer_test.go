package tokenizer

import (
	"errors"
	"testing"
)

type stubCounter struct{}

func (stubCounter) Name() string { return "stub" }

func (stubCounter) CountString(input string) (int, error) { return len([]rune(input)), nil }

type failingCounter struct{}

func (failingCounter) Name() string { return "failing" }

func (failingCounter) CountString(string) (int, error) { return 0, errors.New("boom") }

// TestEstimateSyncBounds verifies the heuristic contract: zero for empty
// input, at least one token otherwise.
func TestEstimateSyncBounds(testingHandle *testing.T) {
	if tokens := EstimateSync(""); tokens != 0 {
		testingHandle.Fatalf("expected 0 tokens for empty input, got %d", tokens)
	}
	if tokens := EstimateSync("a"); tokens < 1 {
		testingHandle.Fatalf("expected at least 1 token for single character, got %d", tokens)
	}
	if tokens := EstimateSync("abcdefgh"); tokens != 2 {
		testingHandle.Fatalf("expected 2 tokens for eight characters, got %d", tokens)
	}
}

// TestEstimateTextPrecise verifies the shared encoder produces positive counts.
func TestEstimateTextPrecise(testingHandle *testing.T) {
	if tokens := EstimateText("hello world"); tokens <= 0 {
		testingHandle.Fatalf("expected positive token count, got %d", tokens)
	}
	if tokens := EstimateText(""); tokens != 0 {
		testingHandle.Fatalf("expected 0 tokens for empty input, got %d", tokens)
	}
}

// TestNewCounterResolvesModel verifies model resolution and the unknown-model fallback.
func TestNewCounterResolvesModel(testingHandle *testing.T) {
	counter, resolvedModel, counterError := NewCounter(Config{Model: "gpt-4o"})
	if counterError != nil {
		testingHandle.Fatalf("NewCounter error: %v", counterError)
	}
	if resolvedModel != "gpt-4o" {
		testingHandle.Fatalf("expected model gpt-4o, got %q", resolvedModel)
	}
	tokens, countError := counter.CountString("hello world")
	if countError != nil {
		testingHandle.Fatalf("CountString error: %v", countError)
	}
	if tokens <= 0 {
		testingHandle.Fatalf("expected positive token count, got %d", tokens)
	}

	_, fallbackModel, fallbackError := NewCounter(Config{Model: "made-up-model"})
	if fallbackError != nil {
		testingHandle.Fatalf("NewCounter fallback error: %v", fallbackError)
	}
	if fallbackModel != "cl100k_base" {
		testingHandle.Fatalf("expected fallback encoding cl100k_base, got %q", fallbackModel)
	}
}

// TestCountBytes verifies text, empty, and binary handling.
func TestCountBytes(testingHandle *testing.T) {
	textResult, textError := CountBytes(stubCounter{}, []byte("hello"))
	if textError != nil {
		testingHandle.Fatalf("CountBytes error: %v", textError)
	}
	if !textResult.Counted || textResult.Tokens != 5 {
		testingHandle.Fatalf("unexpected result for text: %+v", textResult)
	}

	emptyResult, emptyError := CountBytes(stubCounter{}, nil)
	if emptyError != nil {
		testingHandle.Fatalf("CountBytes empty error: %v", emptyError)
	}
	if !emptyResult.Counted || emptyResult.Tokens != 0 {
		testingHandle.Fatalf("unexpected result for empty data: %+v", emptyResult)
	}

	binaryResult, binaryError := CountBytes(stubCounter{}, []byte{0x00, 0x01})
	if binaryError != nil {
		testingHandle.Fatalf("CountBytes binary error: %v", binaryError)
	}
	if binaryResult.Counted {
		testingHandle.Fatalf("expected binary data to be skipped")
	}

	if _, countError := CountBytes(failingCounter{}, []byte("hello")); countError == nil {
		testingHandle.Fatalf("expected counter failure to propagate")
	}
	if _, nilError := CountBytes(nil, []byte("hello")); nilError == nil {
		testingHandle.Fatalf("expected nil counter to be rejected")
	}
}
