// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// =============================================================================
// No-op Manager
// =============================================================================

// NoopManager returns a Manager with tracing and metrics both disabled.
func NoopManager() *Manager {
	return &Manager{}
}

// =============================================================================
// No-op Tracer
// =============================================================================

// NoopTracer is a TracerLike implementation that discards every span.
type NoopTracer struct{}

func (NoopTracer) Start(ctx context.Context, _ string, _ ...trace.SpanStartOption) (context.Context, trace.Span) {
	return ctx, noopSpan()
}

func (NoopTracer) StartLaneTask(ctx context.Context, _, _ string, _ int) (context.Context, trace.Span) {
	return ctx, noopSpan()
}

func (NoopTracer) StartGatewayRequest(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan()
}

func (NoopTracer) StartConsolidationRun(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan()
}

func (NoopTracer) StartKnowledgeSearch(ctx context.Context, _ string, _ int) (context.Context, trace.Span) {
	return ctx, noopSpan()
}

func (NoopTracer) AddPayload(_ trace.Span, _, _ string) {}

func (NoopTracer) RecordError(_ trace.Span, _ error) {}

func (NoopTracer) DebugExporter() *DebugExporter { return nil }

func (NoopTracer) Shutdown(_ context.Context) error { return nil }

// =============================================================================
// No-op Metrics
// =============================================================================

// NoopMetrics is a Recorder implementation that discards every recording.
type NoopMetrics struct{}

func (NoopMetrics) RecordLaneTask(_ string, _, _ time.Duration, _ bool) {}
func (NoopMetrics) SetLaneDepth(_ string, _, _ int)                     {}

func (NoopMetrics) RecordBusStats(_, _, _, _ int64) {}

func (NoopMetrics) SetGatewayConnections(_ int)    {}
func (NoopMetrics) RecordGatewayRequest(_ string)  {}
func (NoopMetrics) RecordGatewayRateLimited()      {}

func (NoopMetrics) RecordSessionEvent(_ string) {}

func (NoopMetrics) RecordHTTPRequest(_, _ string, _ int, _ time.Duration, _, _ int64) {}

func (NoopMetrics) RecordConsolidationRun(_ time.Duration, _ error) {}

func (NoopMetrics) RecordKnowledgeSearch(_ string, _ time.Duration, _ int) {}

// Handler returns a handler that reports metrics as unavailable.
func (NoopMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("metrics not enabled"))
	})
}

// =============================================================================
// Recorder Interface
// =============================================================================

// Recorder is the surface *Metrics exposes to callers that need to record
// events without caring whether metrics collection is enabled. Gateway,
// lane, and bus wiring accept a Recorder so a disabled Manager can hand out
// a NoopMetrics without special-casing nil at every call site.
type Recorder interface {
	RecordLaneTask(laneKind string, wait, exec time.Duration, failed bool)
	SetLaneDepth(laneKind string, pending, running int)

	RecordBusStats(delivered, handlerErrors, rejected, pending int64)

	SetGatewayConnections(n int)
	RecordGatewayRequest(status string)
	RecordGatewayRateLimited()

	RecordSessionEvent(eventType string)

	RecordHTTPRequest(method, path string, statusCode int, duration time.Duration, reqSize, respSize int64)

	RecordConsolidationRun(duration time.Duration, err error)
	RecordKnowledgeSearch(source string, duration time.Duration, resultCount int)

	Handler() http.Handler
}

var (
	_ Recorder = (*Metrics)(nil)
	_ Recorder = NoopMetrics{}
)
