package observability

const (
	AttrServiceName    = "service.name"
	AttrServiceVersion = "service.version"
	AttrErrorType      = "error.type"
	AttrErrorMessage   = "error.message"

	AttrLaneKind    = "lane.kind"
	AttrTaskID      = "task.id"
	AttrTaskPriority = "task.priority"

	AttrGatewaySessionID = "gateway.session_id"
	AttrGatewayTaskID    = "gateway.task_id"

	AttrConsolidationRunID = "consolidation.run_id"

	AttrKnowledgeQuery = "knowledge.query"
	AttrKnowledgeTopK  = "knowledge.top_k"

	AttrHTTPMethod       = "http.method"
	AttrHTTPPath         = "http.path"
	AttrHTTPStatusCode   = "http.status_code"
	AttrHTTPResponseSize = "http.response_size"

	AttrEventID = "evoagent.event_id"

	SpanLaneTask         = "lane.task"
	SpanGatewayRequest   = "gateway.request"
	SpanConsolidationRun = "consolidation.run"
	SpanKnowledgeSearch  = "knowledge.search"
	SpanHTTPRequest      = "http.request"

	DefaultServiceName = "evoagent"

	// DefaultMetricsPath is the HTTP path metrics are exposed on.
	DefaultMetricsPath = "/metrics"

	// DefaultSamplingRate samples every trace unless overridden.
	DefaultSamplingRate = 1.0

	// DefaultOTLPEndpoint is the local collector address assumed in development.
	DefaultOTLPEndpoint = "localhost:4317"
)
