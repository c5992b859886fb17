package ai

import (
	"context"
	"errors"
	"strings"
)

// FailureCategory classifies a turn-fatal error for the apology message
type FailureCategory string

const (
	FailureRateLimit FailureCategory = "rate_limit"
	FailureAuth      FailureCategory = "auth"
	FailureTimeout   FailureCategory = "timeout"
	FailureConfig    FailureCategory = "config"
	FailureUnknown   FailureCategory = "unknown"
)

var apologyMessages = map[FailureCategory]string{
	FailureRateLimit: "I'm receiving a lot of messages right now. Please give me a moment and try again.",
	FailureAuth:      "I'm having trouble reaching my knowledge right now. The team has been notified, please try again later.",
	FailureTimeout:   "That took longer than expected and I couldn't finish my reply. Please try again.",
	FailureConfig:    "I'm not fully set up yet. Please contact the team directly while this gets fixed.",
	FailureUnknown:   "Something went wrong on my side while writing a reply. Please try again in a moment.",
}

// CategorizeTurnError maps a turn-fatal error onto a failure category
func CategorizeTurnError(err error) FailureCategory {
	if err == nil {
		return FailureUnknown
	}
	if errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrToolLoopExceeded) {
		return FailureConfig
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit") || strings.Contains(msg, "429") || strings.Contains(msg, "quota"):
		return FailureRateLimit
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "api key") || strings.Contains(msg, "unauthorized") || strings.Contains(msg, "permission"):
		return FailureAuth
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline") || strings.Contains(msg, "timed out"):
		return FailureTimeout
	case strings.Contains(msg, "credential") || strings.Contains(msg, "not configured") || strings.Contains(msg, "misconfig"):
		return FailureConfig
	default:
		return FailureUnknown
	}
}

// ApologyFor returns the single user-visible apology for a failed turn
func ApologyFor(err error) string {
	return apologyMessages[CategorizeTurnError(err)]
}
