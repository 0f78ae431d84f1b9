package checkpoint

import (
	"log/slog"

	"github.com/evoagent/core/pkg/errs"
)

// TerminalCheck reports whether runID has already reached a terminal
// state. Restoring a checkpoint for a terminal run is refused — a
// checkpoint never resurrects a finished run.
type TerminalCheck func(runID string) bool

// ResumeCallback is invoked once per recovered checkpoint during
// RecoverOnStartup.
type ResumeCallback func(state *State)

// Manager is the orchestration-facing entry point for checkpointing:
// save/restore plus optional startup recovery.
type Manager struct {
	cfg      Config
	storage  *Storage
	logger   *slog.Logger
	terminal TerminalCheck
	resume   ResumeCallback
}

// NewManager creates a Manager backed by file storage at cfg.Dir.
func NewManager(cfg Config, logger *slog.Logger) (*Manager, error) {
	cfg.SetDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	storage, err := NewStorage(cfg.Dir)
	if err != nil {
		return nil, err
	}
	return &Manager{cfg: cfg, storage: storage, logger: logger}, nil
}

// SetTerminalCheck installs the predicate Restore uses to refuse
// resurrecting a terminal run.
func (m *Manager) SetTerminalCheck(fn TerminalCheck) { m.terminal = fn }

// SetResumeCallback installs the callback RecoverOnStartup invokes per
// recovered checkpoint.
func (m *Manager) SetResumeCallback(fn ResumeCallback) { m.resume = fn }

// Create saves a new checkpoint for runID at progress, carrying opaque
// state, replacing any prior checkpoint for the same run.
func (m *Manager) Create(runID string, progress float64, opaque map[string]any) (*State, error) {
	state := New(runID, progress, opaque)
	if err := m.storage.Save(state); err != nil {
		return nil, err
	}
	return state, nil
}

// Restore loads runID's current checkpoint. It refuses to return a
// checkpoint for a run already in a terminal state.
func (m *Manager) Restore(runID string) (*State, error) {
	if m.terminal != nil && m.terminal(runID) {
		return nil, errs.NewPreconditionFailed("run %q is already terminal, refusing to restore", runID)
	}
	state, err := m.storage.Load(runID)
	if err != nil {
		return nil, err
	}
	if m.cfg.IsExpired(state.Timestamp) {
		return nil, errs.NewPreconditionFailed("checkpoint for run %q has expired", runID)
	}
	return state, nil
}

// Clear removes runID's checkpoint, typically called on run completion.
func (m *Manager) Clear(runID string) error {
	return m.storage.Clear(runID)
}

// RecoverOnStartup scans storage for checkpoints and invokes the resume
// callback for each non-expired, non-terminal one. Errors recovering an
// individual checkpoint are logged and skipped, never fatal.
func (m *Manager) RecoverOnStartup() error {
	if !m.cfg.AutoResume || m.resume == nil {
		return nil
	}
	states, err := m.storage.ListAll()
	if err != nil {
		return err
	}
	for _, state := range states {
		if m.terminal != nil && m.terminal(state.RunID) {
			continue
		}
		if m.cfg.IsExpired(state.Timestamp) {
			m.logger.Warn("skipping expired checkpoint on recovery", "run_id", state.RunID)
			continue
		}
		m.resume(state)
	}
	return nil
}
