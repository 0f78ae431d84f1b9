// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ratelimit

import (
	"context"
	"time"
)

// RateLimiter enforces per-session and per-user task admission quotas. The
// Gateway calls it once per inbound WebSocket request before a task is
// dispatched; RateLimitedSessionLog calls it once per session-event append
// so CLI-driven runs are metered the same way.
//
// Implementations must be thread-safe and support concurrent access.
type RateLimiter interface {
	// Check verifies whether a task or session write would be admitted
	// without recording it. Use this when you want to check limits before
	// committing to a potentially expensive dispatch.
	Check(ctx context.Context, scope Scope, identifier string) (*CheckResult, error)

	// Record records actual usage (estimated payload size and/or count)
	// after a task has already been admitted.
	Record(ctx context.Context, scope Scope, identifier string, tokenCount int64, requestCount int64) error

	// CheckAndRecord admits-or-rejects and records usage in a single atomic
	// operation. This is what Gateway.handleRequest and
	// RateLimitedSessionLog.Append both call — it prevents two concurrent
	// requests on the same session from both slipping in under the limit.
	CheckAndRecord(ctx context.Context, scope Scope, identifier string, tokenCount int64, requestCount int64) (*CheckResult, error)

	// GetUsage returns current usage statistics for a session or user.
	// Returns usage for all configured limits.
	GetUsage(ctx context.Context, scope Scope, identifier string) ([]Usage, error)

	// Reset clears usage for a session or user. RateLimitedSessionLog.Delete
	// calls this so a deleted session doesn't leave orphaned quota state.
	Reset(ctx context.Context, scope Scope, identifier string) error

	// ResetExpired removes expired usage records. Intended to be driven by
	// a periodic janitor alongside the sweep loops the rest of this module
	// already runs (gateway heartbeat sweep, consolidation scan).
	ResetExpired(ctx context.Context, before time.Time) error
}

// Store is the persistence layer backing a RateLimiter's window counters.
// MemoryStore is the zero-config default; SQLStore lets quota state survive
// process restarts and be shared between the gateway and CLI processes via
// the same database pool config.NewDBPool opens.
//
// Implementations must be thread-safe and support concurrent access.
type Store interface {
	// GetUsage gets current usage for a specific limit.
	// Returns the current amount, window end time, and any error.
	// If no usage exists, returns 0 with a new window end time.
	GetUsage(ctx context.Context, scope Scope, identifier string, limitType LimitType, window TimeWindow) (int64, time.Time, error)

	// IncrementUsage increments usage for a specific limit.
	// Returns the new amount, window end time, and any error.
	// If the window has expired, it resets and starts a new window.
	IncrementUsage(ctx context.Context, scope Scope, identifier string, limitType LimitType, window TimeWindow, amount int64) (int64, time.Time, error)

	// SetUsage sets usage for a specific limit.
	// Used for explicit resets or window rollovers.
	SetUsage(ctx context.Context, scope Scope, identifier string, limitType LimitType, window TimeWindow, amount int64, windowEnd time.Time) error

	// DeleteUsage deletes all usage records for a session or user, called
	// when a session is deleted.
	DeleteUsage(ctx context.Context, scope Scope, identifier string) error

	// DeleteExpired deletes all expired usage records.
	// Records with windowEnd before the specified time are deleted.
	DeleteExpired(ctx context.Context, before time.Time) error

	// Close closes the store and releases resources.
	Close() error
}

// Ensure interface compliance at compile time.
var (
	_ RateLimiter = (*DefaultRateLimiter)(nil)
	_ Store       = (*MemoryStore)(nil)
	_ Store       = (*SQLStore)(nil)
)
