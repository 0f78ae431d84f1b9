package cli

import (
	"context"
	"fmt"
)

// ReflectCmd runs one consolidation pass immediately instead of waiting
// for the loop's scan interval, useful after a batch of sessions needs
// its lessons promoted right away.
type ReflectCmd struct{}

func (cmd *ReflectCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}

	sessions, err := openSessionLog(cfg)
	if err != nil {
		return fmt.Errorf("open session log: %w", err)
	}
	store, err := openKnowledgeStore(cfg)
	if err != nil {
		return fmt.Errorf("open knowledge store: %w", err)
	}
	vs, provider, err := openVectorStore(cfg)
	if err != nil {
		return err
	}
	defer provider.Close()

	loop := openConsolidationLoop(cfg, sessions, store, vs)
	promoted, err := loop.RunOnce(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("promoted %d knowledge item(s)\n", promoted)
	return nil
}
