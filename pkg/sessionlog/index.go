package sessionlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// rebuildIndex scans dir for session files and reconstructs the metadata
// index when it is missing or malformed: it scans the directory, reads
// the first line of each file (gives createdAt/userId), and records size
// and line count.
func (sl *SessionLog) rebuildIndex() error {
	entries, err := os.ReadDir(sl.dir)
	if err != nil {
		return err
	}

	index := make(map[string]*Metadata)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		sessionID := strings.TrimSuffix(entry.Name(), ".jsonl")
		meta, err := rebuildOneSession(filepath.Join(sl.dir, entry.Name()), sessionID)
		if err != nil {
			sl.logger.Warn("failed to rebuild session index entry, skipping", "session_id", sessionID, "error", err)
			continue
		}
		index[sessionID] = meta
	}

	sl.mu.Lock()
	sl.index = index
	err = sl.persistIndexLocked()
	sl.mu.Unlock()
	return err
}

func rebuildOneSession(path, sessionID string) (*Metadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	meta := &Metadata{
		SessionID: sessionID,
		Status:    StatusActive,
		CreatedAt: info.ModTime(),
		UpdatedAt: info.ModTime(),
		ByteSize:  info.Size(),
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lines := 0
	first := true
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		lines++
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}
		if first {
			meta.CreatedAt = event.Timestamp
			meta.UserID = event.UserID
			first = false
		}
		meta.UpdatedAt = event.Timestamp
		if event.Type == "agent.run.completed" {
			meta.AgentRunCount++
		}
		if event.Type == "session.completed" || event.Type == "session.archived" {
			meta.Status = StatusArchived
			completedAt := event.Timestamp
			meta.CompletedAt = &completedAt
		}
	}
	meta.MessageCount = lines
	return meta, nil
}
