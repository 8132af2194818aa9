package model

import (
	"errors"
	"testing"
)

func TestClassifyContextOverflow(t *testing.T) {
	err := NewError("anthropic", errors.New("prompt is too long: maximum context length is 200000 tokens"))
	if !IsContextOverflow(err) {
		t.Fatalf("expected context overflow classification, got %v", err.Kind)
	}
}

func TestClassifyRateLimit(t *testing.T) {
	err := NewError("anthropic", errors.New("429 too many requests"))
	if !IsRetryable(err) {
		t.Fatalf("expected rate limit error to be retryable")
	}
}

func TestClassifyDefault(t *testing.T) {
	err := NewError("anthropic", errors.New("something unexpected happened"))
	if err.Kind != KindModelError {
		t.Fatalf("Kind = %v, want KindModelError", err.Kind)
	}
	if IsRetryable(err) {
		t.Fatalf("expected generic model error not to be retryable")
	}
}
