// Package sessionlog implements the append-only per-session event log:
// one line-delimited record file per session plus a metadata index,
// with single-writer ordering per session.
package sessionlog

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/evoagent/core/pkg/errs"
)

// Status is a session's lifecycle stage.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
	StatusPruned   Status = "pruned"
)

// Event is one append-only record.
type Event struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id"`
	Timestamp time.Time      `json:"timestamp"`
	UserID    string         `json:"user_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Metadata tracks a session's summary state.
type Metadata struct {
	SessionID     string     `json:"session_id"`
	UserID        string     `json:"user_id,omitempty"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	MessageCount  int        `json:"message_count"`
	AgentRunCount int        `json:"agent_run_count"`
	ByteSize      int64      `json:"byte_size"`
	KeepForever   bool       `json:"keep_forever"`
	ValueScore    *float64   `json:"value_score,omitempty"`
}

// LoadResult is the outcome of a full session read.
type LoadResult struct {
	Metadata     Metadata
	Events       []Event
	SkippedLines int
}

// CleanupOptions bounds SessionLog.Cleanup.
type CleanupOptions struct {
	MaxAge      time.Duration
	MaxSessions int
	KeepActive  bool
}

// SessionLog is the append-only session store.
type SessionLog struct {
	dir    string
	logger *slog.Logger

	mu    sync.Mutex // protects index and writeLocks maps
	index map[string]*Metadata

	writeLocksMu sync.Mutex
	writeLocks   map[string]*sync.Mutex
}

// New opens (or creates) a SessionLog rooted at dir, rebuilding its index
// from disk if missing or malformed.
func New(dir string, logger *slog.Logger) (*SessionLog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errs.Wrap(errs.Internal, "create session log directory", err)
	}
	sl := &SessionLog{
		dir:        dir,
		logger:     logger,
		index:      make(map[string]*Metadata),
		writeLocks: make(map[string]*sync.Mutex),
	}
	if err := sl.loadIndex(); err != nil {
		sl.logger.Warn("session index missing or malformed, rebuilding from disk", "error", err)
		if err := sl.rebuildIndex(); err != nil {
			return nil, err
		}
	}
	return sl, nil
}

func (sl *SessionLog) indexPath() string  { return filepath.Join(sl.dir, ".index.json") }
func (sl *SessionLog) eventPath(id string) string { return filepath.Join(sl.dir, id+".jsonl") }

func (sl *SessionLog) lockFor(sessionID string) *sync.Mutex {
	sl.writeLocksMu.Lock()
	defer sl.writeLocksMu.Unlock()
	l, ok := sl.writeLocks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		sl.writeLocks[sessionID] = l
	}
	return l
}

func (sl *SessionLog) loadIndex() error {
	data, err := os.ReadFile(sl.indexPath())
	if err != nil {
		return err
	}
	var idx map[string]*Metadata
	if err := json.Unmarshal(data, &idx); err != nil {
		return err
	}
	sl.mu.Lock()
	sl.index = idx
	sl.mu.Unlock()
	return nil
}

// persistIndexLocked writes the index to disk. Caller must hold sl.mu.
func (sl *SessionLog) persistIndexLocked() error {
	data, err := json.MarshalIndent(sl.index, "", "  ")
	if err != nil {
		return errs.Wrap(errs.Internal, "marshal session index", err)
	}
	tmp := sl.indexPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errs.Wrap(errs.Internal, "write session index", err)
	}
	return os.Rename(tmp, sl.indexPath())
}

// Create registers a new session and writes its initial session.created
// event. Fails with Conflict if sessionID already exists.
func (sl *SessionLog) Create(sessionID, userID string) error {
	lock := sl.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sl.mu.Lock()
	if _, exists := sl.index[sessionID]; exists {
		sl.mu.Unlock()
		return errs.New(errs.Conflict, "session "+sessionID+" already exists")
	}
	now := time.Now()
	meta := &Metadata{
		SessionID: sessionID,
		UserID:    userID,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	sl.index[sessionID] = meta
	sl.mu.Unlock()

	return sl.appendLocked(sessionID, Event{
		Type:      "session.created",
		SessionID: sessionID,
		Timestamp: now,
		UserID:    userID,
	})
}

// Append writes event to sessionID's log, updates its metadata, and
// flushes the index. Fails with NotFound if sessionID is unknown.
func (sl *SessionLog) Append(sessionID string, event Event) error {
	lock := sl.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sl.mu.Lock()
	if _, exists := sl.index[sessionID]; !exists {
		sl.mu.Unlock()
		return errs.NewNotFound("session %q not found", sessionID)
	}
	sl.mu.Unlock()

	if event.SessionID == "" {
		event.SessionID = sessionID
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return sl.appendLocked(sessionID, event)
}

// appendLocked performs the atomic single-line write and metadata update.
// Caller must hold the per-session write lock.
func (sl *SessionLog) appendLocked(sessionID string, event Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return errs.Wrap(errs.Internal, "marshal session event", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(sl.eventPath(sessionID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errs.Wrap(errs.Internal, "open session file", err)
	}
	defer f.Close()
	n, err := f.Write(line)
	if err != nil {
		return errs.Wrap(errs.Internal, "append session event", err)
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	meta, ok := sl.index[sessionID]
	if !ok {
		meta = &Metadata{SessionID: sessionID, Status: StatusActive, CreatedAt: event.Timestamp}
		sl.index[sessionID] = meta
	}
	meta.MessageCount++
	meta.UpdatedAt = event.Timestamp
	meta.ByteSize += int64(n)
	if event.Type == "agent.run.completed" {
		meta.AgentRunCount++
	}
	if event.Type == "session.completed" || event.Type == "session.archived" {
		meta.Status = StatusArchived
		completedAt := event.Timestamp
		meta.CompletedAt = &completedAt
	}
	return sl.persistIndexLocked()
}

// Load streams sessionID's event file, skipping malformed lines rather
// than failing.
func (sl *SessionLog) Load(sessionID string) (*LoadResult, error) {
	sl.mu.Lock()
	meta, ok := sl.index[sessionID]
	var metaCopy Metadata
	if ok {
		metaCopy = *meta
	}
	sl.mu.Unlock()
	if !ok {
		return nil, errs.NewNotFound("session %q not found", sessionID)
	}

	f, err := os.Open(sl.eventPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return &LoadResult{Metadata: metaCopy}, nil
		}
		return nil, errs.Wrap(errs.Internal, "open session file", err)
	}
	defer f.Close()

	result := &LoadResult{Metadata: metaCopy}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			sl.logger.Warn("skipping malformed session log line", "session_id", sessionID, "error", err)
			result.SkippedLines++
			continue
		}
		result.Events = append(result.Events, event)
	}
	return result, nil
}

// List returns a snapshot of every session's metadata.
func (sl *SessionLog) List() []Metadata {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	out := make([]Metadata, 0, len(sl.index))
	for _, m := range sl.index {
		out = append(out, *m)
	}
	return out
}

// Archive flips sessionID to StatusArchived.
func (sl *SessionLog) Archive(sessionID string) error {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	meta, ok := sl.index[sessionID]
	if !ok {
		return errs.NewNotFound("session %q not found", sessionID)
	}
	meta.Status = StatusArchived
	meta.UpdatedAt = time.Now()
	return sl.persistIndexLocked()
}

// KeepForever sets sessionID's retention flag, exempting it from Cleanup.
func (sl *SessionLog) KeepForever(sessionID string, keep bool) error {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	meta, ok := sl.index[sessionID]
	if !ok {
		return errs.NewNotFound("session %q not found", sessionID)
	}
	meta.KeepForever = keep
	return sl.persistIndexLocked()
}

// Delete removes sessionID's event file and index entry.
func (sl *SessionLog) Delete(sessionID string) error {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if _, ok := sl.index[sessionID]; !ok {
		return errs.NewNotFound("session %q not found", sessionID)
	}
	if err := os.Remove(sl.eventPath(sessionID)); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.Internal, "delete session file", err)
	}
	delete(sl.index, sessionID)
	return sl.persistIndexLocked()
}

// Cleanup deletes sessions in ascending updatedAt order, skipping
// keepForever sessions and, if requested, active ones.
func (sl *SessionLog) Cleanup(opts CleanupOptions) (int, error) {
	sl.mu.Lock()
	candidates := make([]*Metadata, 0, len(sl.index))
	for _, m := range sl.index {
		candidates = append(candidates, m)
	}
	sl.mu.Unlock()

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].UpdatedAt.Before(candidates[j].UpdatedAt) })

	now := time.Now()
	deleted := 0
	remaining := len(candidates)
	for _, m := range candidates {
		if m.KeepForever {
			continue
		}
		if opts.KeepActive && m.Status == StatusActive {
			continue
		}
		ageExceeded := opts.MaxAge > 0 && now.Sub(m.UpdatedAt) >= opts.MaxAge
		overCount := opts.MaxSessions > 0 && remaining > opts.MaxSessions
		if !ageExceeded && !overCount {
			continue
		}
		if err := sl.Delete(m.SessionID); err != nil {
			return deleted, err
		}
		deleted++
		remaining--
	}
	return deleted, nil
}
