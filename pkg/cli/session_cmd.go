package cli

import (
	"fmt"
	"time"

	"github.com/evoagent/core/pkg/sessionlog"
)

// SessionCmd groups session-log inspection and lifecycle operations.
type SessionCmd struct {
	List    SessionListCmd    `cmd:"" help:"List sessions."`
	Get     SessionGetCmd     `cmd:"" help:"Print a session's events."`
	Delete  SessionDeleteCmd  `cmd:"" help:"Delete a session permanently."`
	Archive SessionArchiveCmd `cmd:"" help:"Mark a session archived."`
	Keep    SessionKeepCmd    `cmd:"" help:"Exempt (or unexempt) a session from cleanup."`
	Cleanup SessionCleanupCmd `cmd:"" help:"Delete old sessions past retention limits."`
	Stats   SessionStatsCmd   `cmd:"" help:"Print aggregate session counts."`
}

type SessionListCmd struct {
	Status string `help:"Filter by status (active, archived, pruned)."`
}

func (cmd *SessionListCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	sessions, err := openSessionLog(cfg)
	if err != nil {
		return err
	}
	for _, m := range sessions.List() {
		if cmd.Status != "" && string(m.Status) != cmd.Status {
			continue
		}
		fmt.Printf("%-28s %-10s msgs=%-4d updated=%s\n", m.SessionID, m.Status, m.MessageCount, m.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

type SessionGetCmd struct {
	ID string `arg:"" help:"Session ID."`
}

func (cmd *SessionGetCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	sessions, err := openSessionLog(cfg)
	if err != nil {
		return err
	}
	result, err := sessions.Load(cmd.ID)
	if err != nil {
		return err
	}
	fmt.Printf("session %s (%s), %d event(s), %d skipped line(s)\n", result.Metadata.SessionID, result.Metadata.Status, len(result.Events), result.SkippedLines)
	for _, e := range result.Events {
		fmt.Printf("  [%s] %s %v\n", e.Timestamp.Format(time.RFC3339), e.Type, e.Data)
	}
	return nil
}

type SessionDeleteCmd struct {
	ID string `arg:"" help:"Session ID."`
}

func (cmd *SessionDeleteCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	sessions, err := openSessionLog(cfg)
	if err != nil {
		return err
	}
	return sessions.Delete(cmd.ID)
}

type SessionArchiveCmd struct {
	ID string `arg:"" help:"Session ID."`
}

func (cmd *SessionArchiveCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	sessions, err := openSessionLog(cfg)
	if err != nil {
		return err
	}
	return sessions.Archive(cmd.ID)
}

type SessionKeepCmd struct {
	ID    string `arg:"" help:"Session ID."`
	Value bool   `help:"Whether to keep the session forever." default:"true"`
}

func (cmd *SessionKeepCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	sessions, err := openSessionLog(cfg)
	if err != nil {
		return err
	}
	return sessions.KeepForever(cmd.ID, cmd.Value)
}

type SessionCleanupCmd struct {
	MaxAge      time.Duration `help:"Delete sessions last updated before now minus this." default:"720h"`
	MaxSessions int           `help:"Cap the total number of retained sessions (0 = unbounded)."`
	KeepActive  bool          `help:"Never delete active sessions regardless of age." default:"true"`
}

func (cmd *SessionCleanupCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	sessions, err := openSessionLog(cfg)
	if err != nil {
		return err
	}
	deleted, err := sessions.Cleanup(sessionlog.CleanupOptions{
		MaxAge:      cmd.MaxAge,
		MaxSessions: cmd.MaxSessions,
		KeepActive:  cmd.KeepActive,
	})
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d session(s)\n", deleted)
	return nil
}

type SessionStatsCmd struct{}

func (cmd *SessionStatsCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	sessions, err := openSessionLog(cfg)
	if err != nil {
		return err
	}

	var active, archived, pruned int
	var totalMessages, totalBytes int64
	for _, m := range sessions.List() {
		switch m.Status {
		case sessionlog.StatusActive:
			active++
		case sessionlog.StatusArchived:
			archived++
		case sessionlog.StatusPruned:
			pruned++
		}
		totalMessages += int64(m.MessageCount)
		totalBytes += m.ByteSize
	}

	fmt.Printf("active=%d archived=%d pruned=%d messages=%d bytes=%d\n", active, archived, pruned, totalMessages, totalBytes)
	return nil
}
