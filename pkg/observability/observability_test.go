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
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	cfg := &MetricsConfig{Enabled: true, Namespace: "evoagent_test"}
	m, err := NewMetrics(cfg)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func TestMetricsDisabled(t *testing.T) {
	m, err := NewMetrics(&MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	if m != nil {
		t.Fatalf("expected nil Metrics when disabled, got %+v", m)
	}

	// A nil *Metrics must tolerate every recording call.
	m.RecordLaneTask("fast", 10*time.Millisecond, 50*time.Millisecond, false)
	m.SetLaneDepth("fast", 3, 1)
	m.RecordBusStats(1, 0, 0, 2)
	m.SetGatewayConnections(5)
	m.RecordGatewayRequest("accepted")
	m.RecordGatewayRateLimited()
	m.RecordSessionEvent("task_completed")
	m.RecordConsolidationRun(time.Second, nil)
	m.RecordKnowledgeSearch("vector", 5*time.Millisecond, 4)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 503 {
		t.Errorf("expected 503 from disabled metrics handler, got %d", rec.Code)
	}
}

func TestLaneMetricsRecording(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordLaneTask("fast", 10*time.Millisecond, 100*time.Millisecond, false)
	m.RecordLaneTask("fast", 20*time.Millisecond, 150*time.Millisecond, true)
	m.SetLaneDepth("fast", 2, 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	if !containsAll(body, "evoagent_test_lane_tasks_total", "evoagent_test_lane_task_errors_total", "evoagent_test_lane_pending") {
		t.Errorf("missing lane metric families in scrape output: %s", body)
	}
}

func TestBusMetricsRecording(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordBusStats(10, 1, 2, 3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	if !containsAll(body, "evoagent_test_bus_delivered_total", "evoagent_test_bus_rejected_total", "evoagent_test_bus_pending") {
		t.Errorf("missing bus metric families in scrape output: %s", body)
	}
}

func TestGatewayMetricsRecording(t *testing.T) {
	m := newTestMetrics(t)

	m.SetGatewayConnections(3)
	m.RecordGatewayRequest("accepted")
	m.RecordGatewayRequest("denied")
	m.RecordGatewayRateLimited()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	if !containsAll(body, "evoagent_test_gateway_connections", "evoagent_test_gateway_requests_total", "evoagent_test_gateway_rate_limited_total") {
		t.Errorf("missing gateway metric families in scrape output: %s", body)
	}
}

func TestSessionAndHTTPMetricsRecording(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordSessionEvent("task_completed")
	m.RecordHTTPRequest("GET", "/ws", 200, 5*time.Millisecond, 0, 128)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	if !containsAll(body, "evoagent_test_session_events_total", "evoagent_test_http_requests_total") {
		t.Errorf("missing session/http metric families in scrape output: %s", body)
	}
}

func TestConsolidationAndKnowledgeMetricsRecording(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordConsolidationRun(250*time.Millisecond, nil)
	m.RecordConsolidationRun(100*time.Millisecond, errTest)
	m.RecordKnowledgeSearch("vector", 8*time.Millisecond, 6)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	if !containsAll(body, "evoagent_test_consolidation_runs_total", "evoagent_test_consolidation_errors_total", "evoagent_test_knowledge_searches_total") {
		t.Errorf("missing consolidation/knowledge metric families in scrape output: %s", body)
	}
}

func TestStatusCodeLabel(t *testing.T) {
	cases := map[int]string{200: "2xx", 301: "3xx", 404: "4xx", 500: "5xx", 0: "unknown"}
	for code, want := range cases {
		if got := statusCodeLabel(code); got != want {
			t.Errorf("statusCodeLabel(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestNoopMetricsSatisfiesRecorder(t *testing.T) {
	var r Recorder = NoopMetrics{}
	r.RecordLaneTask("fast", time.Millisecond, time.Millisecond, false)
	r.SetGatewayConnections(1)
	r.RecordGatewayRequest("accepted")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 503 {
		t.Errorf("expected NoopMetrics handler to report 503, got %d", rec.Code)
	}
}

func TestNoopTracer(t *testing.T) {
	var tr NoopTracer
	ctx, span := tr.StartLaneTask(context.Background(), "fast", "task-1", 1)
	defer span.End()
	if ctx == nil {
		t.Fatal("expected non-nil context from noop tracer")
	}
	tr.RecordError(span, errTest)
	if tr.DebugExporter() != nil {
		t.Error("expected nil debug exporter from noop tracer")
	}
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Errorf("noop tracer Shutdown: %v", err)
	}
}

func TestNoopManager(t *testing.T) {
	m := NoopManager()
	if m.TracingEnabled() || m.MetricsEnabled() {
		t.Error("expected noop manager to report tracing and metrics disabled")
	}
	if err := m.Shutdown(context.Background()); err != nil {
		t.Errorf("noop manager Shutdown: %v", err)
	}
}

func containsAll(haystack string, needles ...string) bool {
	for _, n := range needles {
		if !strings.Contains(haystack, n) {
			return false
		}
	}
	return true
}

var errTest = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
