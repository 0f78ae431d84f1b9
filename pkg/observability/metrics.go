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
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics collection for the gateway process:
// lane task throughput, message bus queue depth, gateway connections and
// requests, consolidation run outcomes, and knowledge search latency.
type Metrics struct {
	config   *MetricsConfig
	registry *prometheus.Registry

	// Lane metrics
	laneTasksTotal *prometheus.CounterVec
	laneTaskWait   *prometheus.HistogramVec
	laneTaskExec   *prometheus.HistogramVec
	laneTaskErrors *prometheus.CounterVec
	lanePending    *prometheus.GaugeVec
	laneRunning    *prometheus.GaugeVec

	// Bus metrics
	busDelivered     prometheus.Counter
	busHandlerErrors prometheus.Counter
	busRejected      prometheus.Counter
	busPending       prometheus.Gauge

	// Gateway metrics
	gatewayConnections   prometheus.Gauge
	gatewayRequestsTotal *prometheus.CounterVec
	gatewayRateLimited   prometheus.Counter

	// Session metrics
	sessionEventsTotal *prometheus.CounterVec

	// HTTP metrics (the gateway's /ws, /healthz, /metrics surface)
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	httpRequestSize  *prometheus.HistogramVec
	httpResponseSize *prometheus.HistogramVec

	// Consolidation metrics
	consolidationRuns     *prometheus.CounterVec
	consolidationDuration prometheus.Histogram
	consolidationErrors   prometheus.Counter

	// Knowledge/vector search metrics
	knowledgeSearches   *prometheus.CounterVec
	knowledgeSearchDur  *prometheus.HistogramVec
	knowledgeSearchHits *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance from configuration.
func NewMetrics(cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	cfg.SetDefaults()

	m := &Metrics{
		config:   cfg,
		registry: prometheus.NewRegistry(),
	}

	m.initLaneMetrics()
	m.initBusMetrics()
	m.initGatewayMetrics()
	m.initSessionMetrics()
	m.initHTTPMetrics()
	m.initConsolidationMetrics()
	m.initKnowledgeMetrics()

	return m, nil
}

func (m *Metrics) initLaneMetrics() {
	m.laneTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "lane",
			Name:      "tasks_total",
			Help:      "Total number of tasks completed per lane",
		},
		[]string{"lane_kind"},
	)

	m.laneTaskWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "lane",
			Name:      "task_wait_seconds",
			Help:      "Time a task spent queued before it started running",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to 16s
		},
		[]string{"lane_kind"},
	)

	m.laneTaskExec = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "lane",
			Name:      "task_exec_seconds",
			Help:      "Task execution duration once running",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 15), // 10ms to 163s
		},
		[]string{"lane_kind"},
	)

	m.laneTaskErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "lane",
			Name:      "task_errors_total",
			Help:      "Total number of tasks that failed (including retries)",
		},
		[]string{"lane_kind"},
	)

	m.lanePending = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.config.Namespace,
			Subsystem: "lane",
			Name:      "pending",
			Help:      "Number of tasks queued but not yet running, per lane",
		},
		[]string{"lane_kind"},
	)

	m.laneRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.config.Namespace,
			Subsystem: "lane",
			Name:      "running",
			Help:      "Number of tasks currently running, per lane",
		},
		[]string{"lane_kind"},
	)

	m.registry.MustRegister(m.laneTasksTotal, m.laneTaskWait, m.laneTaskExec, m.laneTaskErrors, m.lanePending, m.laneRunning)
}

func (m *Metrics) initBusMetrics() {
	m.busDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "bus",
		Name:      "delivered_total",
		Help:      "Total number of messages delivered to a subscription handler",
	})

	m.busHandlerErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "bus",
		Name:      "handler_errors_total",
		Help:      "Total number of subscription handler errors or panics",
	})

	m.busRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "bus",
		Name:      "rejected_total",
		Help:      "Total number of messages rejected (validation, full queue, no subscriber)",
	})

	m.busPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.config.Namespace,
		Subsystem: "bus",
		Name:      "pending",
		Help:      "Messages enqueued but not yet processed by a subscription",
	})

	m.registry.MustRegister(m.busDelivered, m.busHandlerErrors, m.busRejected, m.busPending)
}

func (m *Metrics) initGatewayMetrics() {
	m.gatewayConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.config.Namespace,
		Subsystem: "gateway",
		Name:      "connections",
		Help:      "Number of currently connected WebSocket clients",
	})

	m.gatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Total number of task requests admitted by the gateway",
		},
		[]string{"status"},
	)

	m.gatewayRateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "gateway",
		Name:      "rate_limited_total",
		Help:      "Total number of requests denied by the rate limiter",
	})

	m.registry.MustRegister(m.gatewayConnections, m.gatewayRequestsTotal, m.gatewayRateLimited)
}

func (m *Metrics) initSessionMetrics() {
	m.sessionEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "session",
			Name:      "events_total",
			Help:      "Total number of session log events appended",
		},
		[]string{"event_type"},
	)

	m.registry.MustRegister(m.sessionEventsTotal)
}

func (m *Metrics) initHTTPMetrics() {
	m.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	m.httpRequestSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "http",
			Name:      "request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 7), // 100B to 100MB
		},
		[]string{"method", "path"},
	)

	m.httpResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 7), // 100B to 100MB
		},
		[]string{"method", "path"},
	)

	m.registry.MustRegister(m.httpRequests, m.httpDuration, m.httpRequestSize, m.httpResponseSize)
}

func (m *Metrics) initConsolidationMetrics() {
	m.consolidationRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "consolidation",
			Name:      "runs_total",
			Help:      "Total number of consolidation loop passes, by outcome",
		},
		[]string{"outcome"},
	)

	m.consolidationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.config.Namespace,
		Subsystem: "consolidation",
		Name:      "duration_seconds",
		Help:      "Consolidation pass duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 15),
	})

	m.consolidationErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "consolidation",
		Name:      "errors_total",
		Help:      "Total number of consolidation passes that returned an error",
	})

	m.registry.MustRegister(m.consolidationRuns, m.consolidationDuration, m.consolidationErrors)
}

func (m *Metrics) initKnowledgeMetrics() {
	m.knowledgeSearches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "knowledge",
			Name:      "searches_total",
			Help:      "Total number of hybrid knowledge/vector searches",
		},
		[]string{"source"},
	)

	m.knowledgeSearchDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "knowledge",
			Name:      "search_duration_seconds",
			Help:      "Hybrid search duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to 2s
		},
		[]string{"source"},
	)

	m.knowledgeSearchHits = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "knowledge",
			Name:      "search_results_count",
			Help:      "Number of fused results returned by a hybrid search",
			Buckets:   prometheus.LinearBuckets(0, 5, 11),
		},
		[]string{"source"},
	)

	m.registry.MustRegister(m.knowledgeSearches, m.knowledgeSearchDur, m.knowledgeSearchHits)
}

// =============================================================================
// Lane Metrics
// =============================================================================

// RecordLaneTask records one task leaving the lane scheduler (completed or
// failed), along with how long it waited and how long it ran.
func (m *Metrics) RecordLaneTask(laneKind string, wait, exec time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.laneTasksTotal.WithLabelValues(laneKind).Inc()
	m.laneTaskWait.WithLabelValues(laneKind).Observe(wait.Seconds())
	m.laneTaskExec.WithLabelValues(laneKind).Observe(exec.Seconds())
	if failed {
		m.laneTaskErrors.WithLabelValues(laneKind).Inc()
	}
}

// SetLaneDepth records the current pending/running counts for one lane.
func (m *Metrics) SetLaneDepth(laneKind string, pending, running int) {
	if m == nil {
		return
	}
	m.lanePending.WithLabelValues(laneKind).Set(float64(pending))
	m.laneRunning.WithLabelValues(laneKind).Set(float64(running))
}

// =============================================================================
// Bus Metrics
// =============================================================================

// RecordBusStats mirrors a bus.Stats snapshot into the registry.
func (m *Metrics) RecordBusStats(delivered, handlerErrors, rejected, pending int64) {
	if m == nil {
		return
	}
	m.busDelivered.Add(float64(delivered))
	m.busHandlerErrors.Add(float64(handlerErrors))
	m.busRejected.Add(float64(rejected))
	m.busPending.Set(float64(pending))
}

// =============================================================================
// Gateway Metrics
// =============================================================================

// SetGatewayConnections records the current WebSocket client count.
func (m *Metrics) SetGatewayConnections(n int) {
	if m == nil {
		return
	}
	m.gatewayConnections.Set(float64(n))
}

// RecordGatewayRequest records a task request's admission outcome.
func (m *Metrics) RecordGatewayRequest(status string) {
	if m == nil {
		return
	}
	m.gatewayRequestsTotal.WithLabelValues(status).Inc()
}

// RecordGatewayRateLimited records one request denied by the rate limiter.
func (m *Metrics) RecordGatewayRateLimited() {
	if m == nil {
		return
	}
	m.gatewayRateLimited.Inc()
}

// =============================================================================
// Session Metrics
// =============================================================================

// RecordSessionEvent records a session log append.
func (m *Metrics) RecordSessionEvent(eventType string) {
	if m == nil {
		return
	}
	m.sessionEventsTotal.WithLabelValues(eventType).Inc()
}

// =============================================================================
// HTTP Metrics
// =============================================================================

// RecordHTTPRequest records an HTTP request against the gateway's router.
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration, reqSize, respSize int64) {
	if m == nil {
		return
	}
	status := statusCodeLabel(statusCode)
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	if reqSize > 0 {
		m.httpRequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	}
	if respSize > 0 {
		m.httpResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
	}
}

// statusCodeLabel converts a status code to a label string.
func statusCodeLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// =============================================================================
// Consolidation Metrics
// =============================================================================

// RecordConsolidationRun records one consolidation loop pass.
func (m *Metrics) RecordConsolidationRun(duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		m.consolidationErrors.Inc()
	}
	m.consolidationRuns.WithLabelValues(outcome).Inc()
	m.consolidationDuration.Observe(duration.Seconds())
}

// =============================================================================
// Knowledge Metrics
// =============================================================================

// RecordKnowledgeSearch records one hybrid search against a named source
// ("vector", "knowledge", ...).
func (m *Metrics) RecordKnowledgeSearch(source string, duration time.Duration, resultCount int) {
	if m == nil {
		return
	}
	m.knowledgeSearches.WithLabelValues(source).Inc()
	m.knowledgeSearchDur.WithLabelValues(source).Observe(duration.Seconds())
	m.knowledgeSearchHits.WithLabelValues(source).Observe(float64(resultCount))
}

// =============================================================================
// HTTP Handler
// =============================================================================

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
