package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evoagent/core/pkg/config"
	"github.com/evoagent/core/pkg/gateway"
	"github.com/evoagent/core/pkg/logger"
	"github.com/evoagent/core/pkg/observability"
	"github.com/evoagent/core/pkg/planner"
	"github.com/evoagent/core/pkg/ratelimit"
	"github.com/evoagent/core/pkg/vector"
)

// ServeCmd starts the gateway's WebSocket-facing HTTP server, wiring it
// to the session log, rate limiter, and a planning-only dispatcher.
type ServeCmd struct {
	Host string `help:"Override the configured listen host."`
	Port int    `help:"Override the configured listen port."`
}

func (cmd *ServeCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	if cmd.Host != "" {
		cfg.Server.Host = cmd.Host
	}
	if cmd.Port != 0 {
		cfg.Server.Port = cmd.Port
	}

	log := logger.GetLogger()

	sessions, err := openSessionLog(cfg)
	if err != nil {
		return fmt.Errorf("open session log: %w", err)
	}

	vs, provider, err := openVectorStore(cfg)
	if err != nil {
		return err
	}
	defer provider.Close()

	pool := config.NewDBPool()
	defer pool.Close()
	limiter, err := ratelimit.NewRateLimiterFromConfig(cfg, pool)
	if err != nil {
		return fmt.Errorf("build rate limiter: %w", err)
	}

	p := planner.New(vector.NewHybridSearch(nil), vs, log)

	dispatcher := func(ctx context.Context, taskID, sessionID, input string, emit func(gateway.LifecycleEvent)) gateway.TaskResult {
		emit(gateway.LifecycleEvent{Type: gateway.MsgProgress, Data: map[string]any{"phase": "planning"}})
		plan, err := p.Plan(ctx, input)
		if err != nil {
			return gateway.TaskResult{Status: gateway.TaskFailed, Error: err.Error()}
		}
		emit(gateway.LifecycleEvent{Type: gateway.MsgProgress, Data: map[string]any{"phase": "planned", "plan_id": plan.ID}})
		return gateway.TaskResult{Status: gateway.TaskCompleted, Result: fmt.Sprintf("plan %s with %d steps", plan.ID, len(plan.Steps))}
	}

	gwCfg := gateway.Config{}
	gwCfg.SetDefaults()
	gw := gateway.New(gwCfg, dispatcher, limiter, sessions, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	obsMgr, err := observability.NewManager(ctx, cfg.Server.Observability)
	if err != nil {
		return fmt.Errorf("build observability manager: %w", err)
	}
	defer obsMgr.Shutdown(context.Background())
	gw.SetObservability(obsMgr.Tracer(), obsMgr.Metrics())

	go gw.Run(ctx)

	addr := cfg.Server.Address()
	log.Info("gateway listening", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: gw.Router()}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		gw.Stop()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
