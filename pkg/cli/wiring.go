package cli

import (
	"fmt"
	"time"

	"github.com/evoagent/core/pkg/bus"
	"github.com/evoagent/core/pkg/config"
	"github.com/evoagent/core/pkg/consolidation"
	"github.com/evoagent/core/pkg/knowledge"
	"github.com/evoagent/core/pkg/lane"
	"github.com/evoagent/core/pkg/logger"
	"github.com/evoagent/core/pkg/ratelimit"
	"github.com/evoagent/core/pkg/registry"
	"github.com/evoagent/core/pkg/sessionlog"
	"github.com/evoagent/core/pkg/vector"
)

// eventSink is the narrow interface CLI commands append session events
// through, satisfied by both a plain SessionLog and a rate-limited one.
type eventSink interface {
	Append(sessionID string, event sessionlog.Event) error
}

// loadConfig resolves the config-type flag and loads the config file the
// root CLI was pointed at, applying defaults and validation.
func loadConfig(c *CLI) (*config.Config, error) {
	ctype, err := config.ParseConfigType(c.ConfigType)
	if err != nil {
		return nil, err
	}
	return config.LoadConfig(config.LoaderOptions{Type: ctype, Path: c.Config})
}

// openSessionLog opens the session store rooted at cfg.Storage.SessionDir.
func openSessionLog(cfg *config.Config) (*sessionlog.SessionLog, error) {
	return sessionlog.New(cfg.Storage.SessionDir, logger.GetLogger())
}

// openKnowledgeStore opens the knowledge tree rooted at cfg.Storage.KnowledgeDir.
func openKnowledgeStore(cfg *config.Config) (*knowledge.Store, error) {
	return knowledge.New(cfg.Storage.KnowledgeDir)
}

// openVectorStore builds the vector provider named by cfg.VectorProvider
// and wraps it in a VectorStore. When no real embedding collaborator has
// been wired in, a LocalEmbedder stands in so the store still operates
// end to end for local development and testing.
func openVectorStore(cfg *config.Config) (*vector.VectorStore, vector.Provider, error) {
	pcfg := cfg.VectorProvider
	if pcfg == nil {
		pcfg = &vector.ProviderConfig{Type: vector.ProviderChromem}
	}
	provider, err := vector.NewProvider(pcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create vector provider: %w", err)
	}
	return vector.NewVectorStore(vector.NewLocalEmbedder(0), provider), provider, nil
}

// openRegistry builds an AgentRegistry with a 90s heartbeat timeout and
// a 30s sweep interval, matching the gateway's own default windows.
func openRegistry() *registry.AgentRegistry {
	return registry.NewAgentRegistry(90*time.Second, 30*time.Second, logger.GetLogger())
}

// openLaneQueue builds a LaneQueue from the configured lane topology and
// an executor that drives tasks through fn.
func openLaneQueue(cfg *config.Config, fn lane.Executor) *lane.LaneQueue {
	lanes := make([]lane.Config, 0, len(cfg.Lanes))
	for _, l := range cfg.Lanes {
		lanes = append(lanes, lane.Config{Kind: l.Kind, MaxConcurrent: l.MaxConcurrent, Priority: l.Priority})
	}
	return lane.New(lanes, fn, time.Second, 200*time.Millisecond, logger.GetLogger())
}

// openMessageBus builds a MessageBus sized for interactive CLI usage.
func openMessageBus() *bus.MessageBus {
	return bus.NewMessageBus(1024, logger.GetLogger())
}

// openConsolidationLoop wires the consolidation loop's three read/write
// collaborators from already-open stores.
func openConsolidationLoop(cfg *config.Config, sessions *sessionlog.SessionLog, store *knowledge.Store, vs *vector.VectorStore) *consolidation.Loop {
	ccfg := consolidation.Config{}
	if cfg.Consolidation != nil {
		ccfg = *cfg.Consolidation
	}
	return consolidation.New(ccfg, sessions, store, vs, logger.GetLogger())
}

func warnf(format string, args ...any) {
	logger.GetLogger().Warn(fmt.Sprintf(format, args...))
}

// openEventSink wraps sessions in a rate-limited append path when
// cfg.RateLimiting is configured, so CLI-driven agent runs are metered the
// same way the gateway meters client-driven ones. Without rate limiting
// configured it returns sessions unchanged. The returned closer releases
// any database pool opened for a SQL-backed limiter.
func openEventSink(cfg *config.Config, sessions *sessionlog.SessionLog) (eventSink, func(), error) {
	if cfg.RateLimiting == nil {
		return sessions, func() {}, nil
	}
	pool := config.NewDBPool()
	limiter, err := ratelimit.NewRateLimiterFromConfig(cfg, pool)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("build rate limiter: %w", err)
	}
	if limiter == nil {
		pool.Close()
		return sessions, func() {}, nil
	}
	wrapped := ratelimit.NewRateLimitedSessionLog(sessions, limiter, ratelimit.ScopeSession)
	return wrapped, func() { pool.Close() }, nil
}
