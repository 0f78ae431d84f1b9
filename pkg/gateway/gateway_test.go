package gateway

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/evoagent/core/pkg/ratelimit"
)

func testGateway(t *testing.T, dispatcher Dispatcher, limiter ratelimit.RateLimiter) (*Gateway, *httptest.Server) {
	t.Helper()
	gw := New(Config{}, dispatcher, limiter, nil, nil)
	srv := httptest.NewServer(gw.Router())
	t.Cleanup(srv.Close)
	return gw, srv
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestGateway_RequestResponseFlow(t *testing.T) {
	dispatcher := func(ctx context.Context, taskID, sessionID, input string, emit func(LifecycleEvent)) TaskResult {
		emit(LifecycleEvent{Type: MsgProgress, Data: map[string]any{"pct": 50}})
		return TaskResult{Status: TaskCompleted, Result: "done"}
	}
	_, srv := testGateway(t, dispatcher, nil)
	conn := dialWS(t, srv)

	if err := conn.WriteJSON(Envelope{Type: MsgRequest, Input: "do the thing"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var pending Envelope
	if err := conn.ReadJSON(&pending); err != nil {
		t.Fatalf("read pending: %v", err)
	}
	if pending.Status != TaskPending {
		t.Fatalf("first response status = %v, want pending", pending.Status)
	}

	var progress Envelope
	if err := conn.ReadJSON(&progress); err != nil {
		t.Fatalf("read progress: %v", err)
	}
	if progress.Type != MsgProgress {
		t.Fatalf("expected progress frame, got %v", progress.Type)
	}

	var final Envelope
	if err := conn.ReadJSON(&final); err != nil {
		t.Fatalf("read final: %v", err)
	}
	if final.Status != TaskCompleted || final.Result != "done" {
		t.Fatalf("final = %+v, want completed/done", final)
	}
}

func TestGateway_RejectsEmptyInput(t *testing.T) {
	dispatcher := func(ctx context.Context, taskID, sessionID, input string, emit func(LifecycleEvent)) TaskResult {
		t.Fatal("dispatcher should not run for empty input")
		return TaskResult{}
	}
	_, srv := testGateway(t, dispatcher, nil)
	conn := dialWS(t, srv)

	if err := conn.WriteJSON(Envelope{Type: MsgRequest, Input: "   "}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var resp Envelope
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Type != MsgError {
		t.Fatalf("Type = %v, want error", resp.Type)
	}
}

type denyingLimiter struct{}

func (denyingLimiter) Check(ctx context.Context, scope ratelimit.Scope, id string) (*ratelimit.CheckResult, error) {
	return &ratelimit.CheckResult{Allowed: true}, nil
}
func (denyingLimiter) Record(ctx context.Context, scope ratelimit.Scope, id string, tokens, count int64) error {
	return nil
}
func (denyingLimiter) CheckAndRecord(ctx context.Context, scope ratelimit.Scope, id string, tokens, count int64) (*ratelimit.CheckResult, error) {
	retryAfter := 2 * time.Second
	return &ratelimit.CheckResult{Allowed: false, Reason: "too many requests", RetryAfter: &retryAfter}, nil
}
func (denyingLimiter) GetUsage(ctx context.Context, scope ratelimit.Scope, id string) ([]ratelimit.Usage, error) {
	return nil, nil
}
func (denyingLimiter) Reset(ctx context.Context, scope ratelimit.Scope, id string) error { return nil }
func (denyingLimiter) ResetExpired(ctx context.Context, before time.Time) error          { return nil }

func TestGateway_RateLimitDenied(t *testing.T) {
	dispatcher := func(ctx context.Context, taskID, sessionID, input string, emit func(LifecycleEvent)) TaskResult {
		t.Fatal("dispatcher should not run when rate limited")
		return TaskResult{}
	}
	_, srv := testGateway(t, dispatcher, denyingLimiter{})
	conn := dialWS(t, srv)

	if err := conn.WriteJSON(Envelope{Type: MsgRequest, Input: "do the thing"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var resp Envelope
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Type != MsgError || resp.RetryAfter == nil {
		t.Fatalf("resp = %+v, want error with retry_after", resp)
	}
}

func TestGateway_SweepClosesStaleClient(t *testing.T) {
	dispatcher := func(ctx context.Context, taskID, sessionID, input string, emit func(LifecycleEvent)) TaskResult {
		return TaskResult{Status: TaskCompleted}
	}
	gw, srv := testGateway(t, dispatcher, nil)
	gw.cfg.HeartbeatTimeout = time.Millisecond

	conn := dialWS(t, srv)
	time.Sleep(20 * time.Millisecond) // let readPump register the client

	gw.Sweep()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected connection to be closed by the heartbeat sweep")
	}
}
