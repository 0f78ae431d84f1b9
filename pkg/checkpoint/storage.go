package checkpoint

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/evoagent/core/pkg/errs"
)

// Storage is a file-backed checkpoint store. Each run-id has at most one
// current checkpoint file; a new Save for the same run-id overwrites it.
type Storage struct {
	dir string
	mu  sync.Mutex
}

// NewStorage opens (creating if absent) checkpoint storage at dir.
func NewStorage(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errs.Wrap(errs.Internal, "create checkpoint directory", err)
	}
	return &Storage{dir: dir}, nil
}

func (s *Storage) path(runID string) string {
	return filepath.Join(s.dir, runID+".json")
}

// Save persists state, replacing any existing checkpoint for its run-id.
func (s *Storage) Save(state *State) error {
	if state == nil || state.RunID == "" {
		return errs.NewValidation("checkpoint requires a non-empty run-id")
	}
	data, err := state.serialize()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tmp := s.path(state.RunID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errs.Wrap(errs.Internal, "write checkpoint file", err)
	}
	return os.Rename(tmp, s.path(state.RunID))
}

// Load retrieves the current checkpoint for runID.
func (s *Storage) Load(runID string) (*State, error) {
	data, err := os.ReadFile(s.path(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.NewNotFound("no checkpoint for run %q", runID)
		}
		return nil, errs.Wrap(errs.Internal, "read checkpoint file", err)
	}
	return deserialize(data)
}

// Clear removes runID's checkpoint, if any.
func (s *Storage) Clear(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(runID)); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.Internal, "delete checkpoint file", err)
	}
	return nil
}

// ListAll returns every stored checkpoint, sorted by run-id, for startup
// recovery scans.
func (s *Storage) ListAll() ([]*State, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "list checkpoint directory", err)
	}

	var runIDs []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		runIDs = append(runIDs, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(runIDs)

	states := make([]*State, 0, len(runIDs))
	for _, id := range runIDs {
		state, err := s.Load(id)
		if err != nil {
			continue
		}
		states = append(states, state)
	}
	return states, nil
}
