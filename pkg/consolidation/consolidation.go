// Package consolidation implements the periodic ConsolidationLoop: it
// scans mature, successful sessions, extracts recurring pattern
// candidates, and promotes the ones that cross an occurrence threshold
// into the knowledge store and vector store.
package consolidation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/evoagent/core/pkg/knowledge"
	"github.com/evoagent/core/pkg/sessionlog"
	"github.com/evoagent/core/pkg/vector"
)

// Config bounds which sessions are scanned and which candidates are
// promoted.
type Config struct {
	MinAge         time.Duration `yaml:"min_age,omitempty"`
	MinSuccessRate float64       `yaml:"min_success_rate,omitempty"`
	MinOccurrences int           `yaml:"min_occurrences,omitempty"`
	ScanInterval   time.Duration `yaml:"scan_interval,omitempty"`
}

// SetDefaults fills zero-valued fields with production defaults.
func (c *Config) SetDefaults() {
	if c.MinAge <= 0 {
		c.MinAge = time.Hour
	}
	if c.MinSuccessRate <= 0 {
		c.MinSuccessRate = 0.8
	}
	if c.MinOccurrences <= 0 {
		c.MinOccurrences = 3
	}
	if c.ScanInterval <= 0 {
		c.ScanInterval = 15 * time.Minute
	}
}

// Validate checks the consolidation configuration for errors.
func (c *Config) Validate() error {
	if c.MinSuccessRate < 0 || c.MinSuccessRate > 1 {
		return fmt.Errorf("min_success_rate must be between 0 and 1")
	}
	if c.MinOccurrences < 0 {
		return fmt.Errorf("min_occurrences must be non-negative")
	}
	if c.MinAge < 0 || c.ScanInterval < 0 {
		return fmt.Errorf("min_age and scan_interval must be non-negative")
	}
	return nil
}

// Loop periodically runs one consolidation pass.
type Loop struct {
	cfg       Config
	sessions  *sessionlog.SessionLog
	knowledge *knowledge.Store
	vector    *vector.VectorStore
	logger    *slog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a Loop. vector may be nil to skip vector-entry insertion.
func New(cfg Config, sessions *sessionlog.SessionLog, store *knowledge.Store, vs *vector.VectorStore, logger *slog.Logger) *Loop {
	cfg.SetDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		cfg:       cfg,
		sessions:  sessions,
		knowledge: store,
		vector:    vs,
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Run blocks, running RunOnce every cfg.ScanInterval, until ctx is
// cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.doneCh)
	ticker := time.NewTicker(l.cfg.ScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n, err := l.RunOnce(ctx); err != nil {
				l.logger.Error("consolidation pass failed", "error", err)
			} else if n > 0 {
				l.logger.Info("consolidation created knowledge items", "count", n)
			}
		case <-l.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop signals Run to exit and waits for it to finish.
func (l *Loop) Stop() {
	close(l.stopCh)
	<-l.doneCh
}

// RunOnce performs a single consolidation pass and returns the number
// of new knowledge items it created.
func (l *Loop) RunOnce(ctx context.Context) (int, error) {
	eligible := l.eligibleSessions()

	var allCandidates []candidate
	for _, sessionID := range eligible {
		result, err := l.sessions.Load(sessionID)
		if err != nil {
			l.logger.Warn("failed to load session during consolidation", "session_id", sessionID, "error", err)
			continue
		}
		allCandidates = append(allCandidates, extractCandidates(sessionID, result.Events)...)
	}

	aggregated := aggregate(allCandidates)

	created := 0
	for _, agg := range aggregated {
		if agg.Occurrences < l.cfg.MinOccurrences {
			continue
		}
		ok, err := l.promote(ctx, agg)
		if err != nil {
			l.logger.Warn("failed to promote consolidation candidate", "title", agg.Title, "error", err)
			continue
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// eligibleSessions returns the ids of sessions satisfying
// age >= MinAge and successRate >= MinSuccessRate.
func (l *Loop) eligibleSessions() []string {
	now := time.Now()
	var ids []string
	for _, meta := range l.sessions.List() {
		if now.Sub(meta.CreatedAt) < l.cfg.MinAge {
			continue
		}
		result, err := l.sessions.Load(meta.SessionID)
		if err != nil {
			continue
		}
		if successRate(result.Events) < l.cfg.MinSuccessRate {
			continue
		}
		ids = append(ids, meta.SessionID)
	}
	return ids
}

// successRate computes completed/(completed+failed) across a session's
// task.* events, treating a session with no terminal task events as
// fully successful (nothing to disqualify it).
func successRate(events []sessionlog.Event) float64 {
	var completed, failed int
	for _, evt := range events {
		switch evt.Type {
		case "task.completed":
			completed++
		case "task.failed":
			failed++
		}
	}
	total := completed + failed
	if total == 0 {
		return 1
	}
	return float64(completed) / float64(total)
}

// promote writes agg as an auto knowledge item (unless a similarly
// titled/slugged item already exists) and inserts a matching vector
// entry.
func (l *Loop) promote(ctx context.Context, agg aggregatedCandidate) (bool, error) {
	slug := slugify(agg.Title)

	if l.hasSimilar(agg.Category, slug, agg.Title) {
		return false, nil
	}

	item := knowledge.Item{
		Category: agg.Category,
		Slug:     slug,
		FrontMatter: knowledge.FrontMatter{
			Title:              agg.Title,
			Tags:               agg.Tokens,
			Discovered:         time.Now(),
			Occurrences:        agg.Occurrences,
			ReflectorCanUpdate: true,
		},
		Body: agg.Title,
	}

	written, err := l.knowledge.WriteAuto(item)
	if err != nil {
		return false, err
	}
	if !written {
		return false, nil
	}

	if l.vector != nil {
		_, err := l.vector.Add(ctx, vector.VectorEntry{
			Collection: "knowledge",
			Content:    agg.Title,
			Metadata: map[string]any{
				"category": string(agg.Category),
				"slug":     slug,
			},
		})
		if err != nil {
			l.logger.Warn("failed to insert vector entry for consolidated item", "slug", slug, "error", err)
		}
	}
	return true, nil
}

// hasSimilar reports whether an existing knowledge item already shares
// this exact (category, slug) key or title.
func (l *Loop) hasSimilar(category knowledge.Category, slug, title string) bool {
	if _, err := l.knowledge.Read(category, slug); err == nil {
		return true
	}
	matches, err := l.knowledge.SearchByFilename(title)
	if err != nil {
		return false
	}
	return len(matches) > 0
}
