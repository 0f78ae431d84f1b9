// Package gateway implements the client-facing WebSocket surface:
// per-client connection state machine, request validation and
// rate-limiting, asynchronous task dispatch with streamed lifecycle
// events, and a heartbeat sweep that terminates stale connections.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/evoagent/core/pkg/observability"
	"github.com/evoagent/core/pkg/ratelimit"
	"github.com/evoagent/core/pkg/sessionlog"
)

// Config tunes the Gateway's HTTP surface and heartbeat policy.
type Config struct {
	// HeartbeatTimeout is the maximum allowed gap since a client's last
	// pong before the heartbeat sweep forcibly closes it.
	HeartbeatTimeout time.Duration
	// SweepInterval is how often the heartbeat sweep runs.
	SweepInterval time.Duration
}

// SetDefaults fills zero-valued fields with production defaults.
func (c *Config) SetDefaults() {
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = 90 * time.Second
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 30 * time.Second
	}
}

// Gateway is the WebSocket-facing server. Collaborators (Dispatcher,
// rate limiter, session log) are all injected, matching the rest of
// this codebase's "caller wires real logic, tests wire a fake" style.
type Gateway struct {
	cfg        Config
	dispatcher Dispatcher
	limiter    ratelimit.RateLimiter
	sessions   *sessionlog.SessionLog
	logger     *slog.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*client

	stopCh chan struct{}
	doneCh chan struct{}

	metricsHandler http.Handler
	tracer         *observability.Tracer
	metrics        *observability.Metrics
}

// SetObservability wires the gateway to an observability.Manager's tracer
// and metrics. Call before Router or Run; either argument may be nil to
// leave the corresponding signal disabled. Also mounts metrics.Handler()
// at /metrics; left unset, /metrics responds 404.
func (g *Gateway) SetObservability(tracer *observability.Tracer, metrics *observability.Metrics) {
	g.tracer = tracer
	g.metrics = metrics
	if metrics != nil {
		g.metricsHandler = metrics.Handler()
	}
}

// New creates a Gateway. limiter may be nil to disable rate limiting.
func New(cfg Config, dispatcher Dispatcher, limiter ratelimit.RateLimiter, sessions *sessionlog.SessionLog, logger *slog.Logger) *Gateway {
	cfg.SetDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		cfg:        cfg,
		dispatcher: dispatcher,
		limiter:    limiter,
		sessions:   sessions,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*client),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Router builds the chi router exposing /ws, /healthz, and /metrics.
func (g *Gateway) Router() http.Handler {
	r := chi.NewRouter()
	if g.tracer != nil || g.metrics != nil {
		r.Use(observability.HTTPMiddleware(g.tracer, g.metrics))
	}
	r.Get("/ws", g.handleWS)
	r.Get("/healthz", g.handleHealthz)
	if g.metricsHandler != nil {
		r.Handle("/metrics", g.metricsHandler)
	}
	return r
}

func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := newClient(conn, g, g.logger)
	g.register(c)

	go c.writePump()
	c.readPump(r.Context())
}

func (g *Gateway) handleHealthz(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	n := len(g.clients)
	g.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "clients": n})
}

func (g *Gateway) register(c *client) {
	g.mu.Lock()
	g.clients[c.id] = c
	n := len(g.clients)
	g.mu.Unlock()
	g.metrics.SetGatewayConnections(n)
}

func (g *Gateway) unregister(c *client) {
	g.mu.Lock()
	delete(g.clients, c.id)
	n := len(g.clients)
	g.mu.Unlock()
	g.metrics.SetGatewayConnections(n)
	c.close()
}

// handleRequest implements the on-request sequence.
func (g *Gateway) handleRequest(ctx context.Context, c *client, req Envelope) {
	if strings.TrimSpace(req.Input) == "" {
		c.sendEnvelope(Envelope{Type: MsgError, TaskID: req.TaskID, Error: "input is required"})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	c.mu.Lock()
	c.sessionID = sessionID
	c.mu.Unlock()

	if g.sessions != nil {
		if _, err := g.sessions.Load(sessionID); err != nil {
			if err := g.sessions.Create(sessionID, ""); err != nil {
				g.logger.Warn("failed to create session", "session_id", sessionID, "error", err)
			}
		}
	}

	if g.limiter != nil {
		result, err := g.limiter.CheckAndRecord(ctx, ratelimit.ScopeSession, sessionID, 0, 1)
		if err == nil && !result.Allowed {
			g.metrics.RecordGatewayRateLimited()
			g.metrics.RecordGatewayRequest("denied")
			c.sendEnvelope(Envelope{
				Type:       MsgError,
				SessionID:  sessionID,
				Error:      "rate limit exceeded",
				RetryAfter: result.RetryAfter,
			})
			return
		}
	}

	taskID := uuid.New().String()
	c.mu.Lock()
	c.activeTask = taskID
	c.state = stateServing
	c.mu.Unlock()

	g.metrics.RecordGatewayRequest("accepted")
	c.sendEnvelope(Envelope{Type: MsgResponse, TaskID: taskID, SessionID: sessionID, Status: TaskPending})

	g.appendSessionEvent(sessionID, "task.started", map[string]any{"task_id": taskID})

	go g.runTask(ctx, c, taskID, sessionID, req.Input)
}

func (g *Gateway) runTask(ctx context.Context, c *client, taskID, sessionID, input string) {
	ctx, span := g.tracer.StartGatewayRequest(ctx, sessionID, taskID)
	defer span.End()

	emit := func(evt LifecycleEvent) {
		c.sendEnvelope(Envelope{Type: evt.Type, TaskID: taskID, SessionID: sessionID, Data: evt.Data})
	}

	result := g.dispatcher(ctx, taskID, sessionID, input, emit)
	if result.Status == TaskFailed {
		g.tracer.RecordError(span, fmt.Errorf("%s", result.Error))
	}

	c.mu.Lock()
	c.activeTask = ""
	c.state = stateIdle
	c.mu.Unlock()

	final := Envelope{
		Type:      MsgResponse,
		TaskID:    taskID,
		SessionID: sessionID,
		Status:    result.Status,
		Result:    result.Result,
		Error:     result.Error,
		Artifacts: result.Artifacts,
	}
	c.sendEnvelope(final)

	eventType := "task.completed"
	if result.Status == TaskFailed {
		eventType = "task.failed"
	}
	g.appendSessionEvent(sessionID, eventType, map[string]any{"task_id": taskID, "status": string(result.Status)})
}

func (g *Gateway) appendSessionEvent(sessionID, eventType string, data map[string]any) {
	g.metrics.RecordSessionEvent(eventType)
	if g.sessions == nil {
		return
	}
	if err := g.sessions.Append(sessionID, sessionlog.Event{
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Data:      data,
	}); err != nil {
		g.logger.Warn("failed to append session event", "session_id", sessionID, "event", eventType, "error", err)
	}
}

// Sweep closes every client whose last pong exceeds cfg.HeartbeatTimeout.
// Exported for direct unit testing as well as internal periodic use.
func (g *Gateway) Sweep() {
	g.mu.Lock()
	stale := make([]*client, 0)
	for _, c := range g.clients {
		if c.staleSince() > g.cfg.HeartbeatTimeout {
			stale = append(stale, c)
		}
	}
	g.mu.Unlock()

	for _, c := range stale {
		g.logger.Warn("closing stale client", "client_id", c.id)
		_ = c.conn.Close()
	}
}

// Run starts the heartbeat sweep loop; it returns when ctx is
// cancelled or Stop is called.
func (g *Gateway) Run(ctx context.Context) {
	defer close(g.doneCh)
	ticker := time.NewTicker(g.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			g.Sweep()
		case <-g.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop signals Run to exit and waits for it to finish.
func (g *Gateway) Stop() {
	close(g.stopCh)
	<-g.doneCh
}
