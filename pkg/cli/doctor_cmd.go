package cli

import (
	"fmt"
	"os"
)

// DoctorCmd runs a battery of cheap, local health checks: config loads
// and validates, storage directories are writable, and the configured
// vector provider can be constructed.
type DoctorCmd struct{}

func (cmd *DoctorCmd) Run(cli *CLI) error {
	checks := []struct {
		name string
		fn   func(cli *CLI) error
	}{
		{"config loads and validates", func(cli *CLI) error { _, err := loadConfig(cli); return err }},
		{"session directory is writable", checkSessionDir},
		{"knowledge directory is writable", checkKnowledgeDir},
		{"vector provider constructs", checkVectorProvider},
	}

	failed := 0
	for _, c := range checks {
		if err := c.fn(cli); err != nil {
			fmt.Printf("FAIL  %-35s %v\n", c.name, err)
			failed++
			continue
		}
		fmt.Printf("OK    %s\n", c.name)
	}

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func checkSessionDir(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	return writableDir(cfg.Storage.SessionDir)
}

func checkKnowledgeDir(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	return writableDir(cfg.Storage.KnowledgeDir)
}

func checkVectorProvider(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	_, provider, err := openVectorStore(cfg)
	if err != nil {
		return err
	}
	return provider.Close()
}

func writableDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	probe := dir + "/.doctor-probe"
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return err
	}
	return os.Remove(probe)
}
