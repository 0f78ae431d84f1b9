package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/evoagent/core/pkg/config"
)

// InitCmd scaffolds a starter config file and the workspace directories
// it points at.
type InitCmd struct {
	Name  string `help:"Name to give the new project." default:"evoagent"`
	Force bool   `help:"Overwrite an existing config file." short:"f"`
}

func (cmd *InitCmd) Run(cli *CLI) error {
	if _, err := os.Stat(cli.Config); err == nil && !cmd.Force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", cli.Config)
	}

	cfg := &config.Config{
		Version: "1",
		Name:    cmd.Name,
	}
	cfg.SetDefaults()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(cli.Config, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", cli.Config, err)
	}

	for _, dir := range []string{cfg.Storage.SessionDir, cfg.Storage.KnowledgeDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	fmt.Printf("wrote %s\n", cli.Config)
	fmt.Printf("session dir:   %s\n", cfg.Storage.SessionDir)
	fmt.Printf("knowledge dir: %s\n", cfg.Storage.KnowledgeDir)
	return nil
}
