package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCategorizeTurnError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureCategory
	}{
		{"rate limit", errors.New("OpenAI API error (status 429): rate limit exceeded"), FailureRateLimit},
		{"quota", errors.New("Gemini API error (status 429, RESOURCE_EXHAUSTED): quota exceeded"), FailureRateLimit},
		{"auth", errors.New("OpenAI API error (status 401): invalid api key"), FailureAuth},
		{"timeout", errors.New("failed to send request: context deadline exceeded (Client.Timeout exceeded)"), FailureTimeout},
		{"deadline sentinel", fmt.Errorf("model call failed: %w", context.DeadlineExceeded), FailureTimeout},
		{"provider unavailable", fmt.Errorf("provider selection failed: %w", ErrProviderUnavailable), FailureConfig},
		{"loop cap", fmt.Errorf("conversation 9: %w", ErrToolLoopExceeded), FailureConfig},
		{"unknown", errors.New("something odd happened"), FailureUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategorizeTurnError(tt.err); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestApologyForAlwaysReturnsText(t *testing.T) {
	for _, err := range []error{
		errors.New("rate limit"),
		errors.New("unexplainable"),
		ErrProviderUnavailable,
	} {
		if msg := ApologyFor(err); msg == "" {
			t.Errorf("expected apology text for %v", err)
		}
	}
}
