package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoader_File_Load(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "test.yaml")

	configYAML := `
version: "1"
name: "test-config"
llm:
  provider: openai
  model: gpt-4
  api_key: test-key
lanes:
  - kind: shell
    max_concurrent: 3
`
	if err := os.WriteFile(configFile, []byte(configYAML), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	loader, err := NewLoader(LoaderOptions{
		Type: ConfigTypeFile,
		Path: configFile,
	})
	if err != nil {
		t.Fatalf("failed to create loader: %v", err)
	}
	defer loader.Stop()

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Version != "1" {
		t.Errorf("expected version 1, got %s", cfg.Version)
	}
	if cfg.Name != "test-config" {
		t.Errorf("expected name 'test-config', got %s", cfg.Name)
	}
	if cfg.LLM == nil || cfg.LLM.Model != "gpt-4" {
		t.Fatalf("expected llm.model gpt-4, got %+v", cfg.LLM)
	}
	if len(cfg.Lanes) != 1 || cfg.Lanes[0].MaxConcurrent != 3 {
		t.Fatalf("expected one lane with max_concurrent 3, got %+v", cfg.Lanes)
	}
	// Defaults fill in the rest of the lane topology only when no lanes
	// are configured at all, so a single explicit lane stays alone.
}

func TestLoader_File_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "minimal.yaml")

	if err := os.WriteFile(configFile, []byte("name: minimal\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	cfg, err := LoadConfig(LoaderOptions{Type: ConfigTypeFile, Path: configFile})
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Storage.SessionDir == "" || cfg.Storage.KnowledgeDir == "" {
		t.Errorf("expected storage defaults to be filled, got %+v", cfg.Storage)
	}
	if len(cfg.Lanes) == 0 {
		t.Errorf("expected default lane topology when none configured")
	}
}

func TestLoader_File_EnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "override.yaml")

	configYAML := `
name: override-test
server:
  port: 1111
`
	if err := os.WriteFile(configFile, []byte(configYAML), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	t.Setenv("EVOAGENT_SERVER_PORT", "9999")

	cfg, err := LoadConfig(LoaderOptions{Type: ConfigTypeFile, Path: configFile})
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("expected EVOAGENT_SERVER_PORT override to win, got %d", cfg.Server.Port)
	}
}

func TestParseConfigType(t *testing.T) {
	cases := map[string]ConfigType{
		"file":      ConfigTypeFile,
		"consul":    ConfigTypeConsul,
		"etcd":      ConfigTypeEtcd,
		"zookeeper": ConfigTypeZookeeper,
		"zk":        ConfigTypeZookeeper,
	}
	for in, want := range cases {
		got, err := ParseConfigType(in)
		if err != nil {
			t.Fatalf("ParseConfigType(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseConfigType(%q) = %q, want %q", in, got, want)
		}
	}

	if _, err := ParseConfigType("bogus"); err == nil {
		t.Error("expected error for unknown config type")
	}
}
