package ratelimit

import (
	"context"
	"fmt"

	"github.com/evoagent/core/pkg/sessionlog"
)

// RateLimitedSessionLog wraps a SessionLog so every Append first checks and
// records usage against a limiter, keyed by session or user depending on
// scope. Reads and lifecycle operations (Load, Archive, Delete, ...) pass
// straight through; only event writes are metered.
type RateLimitedSessionLog struct {
	base    *sessionlog.SessionLog
	limiter RateLimiter
	scope   Scope
}

// NewRateLimitedSessionLog wraps base with limiter-enforced writes.
func NewRateLimitedSessionLog(base *sessionlog.SessionLog, limiter RateLimiter, scope Scope) *RateLimitedSessionLog {
	return &RateLimitedSessionLog{base: base, limiter: limiter, scope: scope}
}

// Append checks and records the limiter before appending event, rejecting
// the write with a *RateLimitError if the session (or user) is over quota.
func (s *RateLimitedSessionLog) Append(sessionID string, event sessionlog.Event) error {
	tokenCount := estimateEventTokens(event)

	result, err := s.limiter.CheckAndRecord(context.Background(), s.scope, sessionID, tokenCount, 1)
	if err != nil {
		return fmt.Errorf("rate limit check failed: %w", err)
	}
	if !result.Allowed {
		return NewRateLimitError(result)
	}

	return s.base.Append(sessionID, event)
}

// Create delegates to base (session creation is not metered).
func (s *RateLimitedSessionLog) Create(sessionID, userID string) error {
	return s.base.Create(sessionID, userID)
}

// Load delegates to base (reads are not metered).
func (s *RateLimitedSessionLog) Load(sessionID string) (*sessionlog.LoadResult, error) {
	return s.base.Load(sessionID)
}

// List delegates to base.
func (s *RateLimitedSessionLog) List() []sessionlog.Metadata {
	return s.base.List()
}

// Archive delegates to base and leaves accumulated usage untouched.
func (s *RateLimitedSessionLog) Archive(sessionID string) error {
	return s.base.Archive(sessionID)
}

// Delete delegates to base and resets the session's rate limit counters.
func (s *RateLimitedSessionLog) Delete(sessionID string) error {
	_ = s.limiter.Reset(context.Background(), s.scope, sessionID)
	return s.base.Delete(sessionID)
}

// GetRateLimitUsage returns current limiter usage for sessionID.
func (s *RateLimitedSessionLog) GetRateLimitUsage(sessionID string) ([]Usage, error) {
	return s.limiter.GetUsage(context.Background(), s.scope, sessionID)
}

// estimateEventTokens approximates token cost from an event's marshaled
// size, at roughly 4 characters per token.
func estimateEventTokens(event sessionlog.Event) int64 {
	var chars int64
	chars += int64(len(event.Type))
	chars += int64(len(event.UserID))
	for k, v := range event.Data {
		chars += int64(len(k))
		chars += int64(len(fmt.Sprint(v)))
	}
	tokens := chars / 4
	if tokens < 1 && chars > 0 {
		tokens = 1
	}
	return tokens
}
