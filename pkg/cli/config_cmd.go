package cli

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/evoagent/core/pkg/config"
)

// ConfigCmd groups operations on the config file itself, as opposed to
// the live, validated config a running process holds.
type ConfigCmd struct {
	List     ConfigListCmd     `cmd:"" help:"Print the fully-defaulted config as YAML."`
	Get      ConfigGetCmd      `cmd:"" help:"Print one dotted config key."`
	Set      ConfigSetCmd      `cmd:"" help:"Set one dotted config key and rewrite the file."`
	Reset    ConfigResetCmd    `cmd:"" help:"Overwrite the config file with defaults."`
	Validate ConfigValidateCmd `cmd:"" help:"Validate the config file without running anything."`
	Edit     ConfigEditCmd     `cmd:"" help:"Open the config file in $EDITOR."`
}

type ConfigListCmd struct{}

func (cmd *ConfigListCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}

type ConfigGetCmd struct {
	Key string `arg:"" help:"Dotted path, e.g. server.port."`
}

func (cmd *ConfigGetCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	raw, err := toRawMap(cfg)
	if err != nil {
		return err
	}
	val, ok := lookupDotted(raw, cmd.Key)
	if !ok {
		return fmt.Errorf("key %q not found", cmd.Key)
	}
	fmt.Printf("%v\n", val)
	return nil
}

type ConfigSetCmd struct {
	Key   string `arg:"" help:"Dotted path, e.g. server.port."`
	Value string `arg:"" help:"New value, parsed as YAML scalar."`
}

func (cmd *ConfigSetCmd) Run(cli *CLI) error {
	raw, err := readRawFile(cli.Config)
	if err != nil {
		return err
	}

	var typed any = cmd.Value
	if b, perr := strconv.ParseBool(cmd.Value); perr == nil {
		typed = b
	} else if i, perr := strconv.ParseInt(cmd.Value, 10, 64); perr == nil {
		typed = i
	} else if f, perr := strconv.ParseFloat(cmd.Value, 64); perr == nil {
		typed = f
	}

	setDotted(raw, cmd.Key, typed)

	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	if err := os.WriteFile(cli.Config, data, 0644); err != nil {
		return err
	}

	// Round-trip through the real loader to confirm the edit still
	// validates before the caller relies on it.
	if _, err := loadConfig(cli); err != nil {
		return fmt.Errorf("config no longer validates after set: %w", err)
	}
	fmt.Printf("set %s = %v\n", cmd.Key, typed)
	return nil
}

type ConfigResetCmd struct {
	Name string `help:"Name to give the reset project." default:"evoagent"`
}

func (cmd *ConfigResetCmd) Run(cli *CLI) error {
	cfg := &config.Config{Version: "1", Name: cmd.Name}
	cfg.SetDefaults()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(cli.Config, data, 0644)
}

type ConfigValidateCmd struct{}

func (cmd *ConfigValidateCmd) Run(cli *CLI) error {
	if _, err := loadConfig(cli); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

type ConfigEditCmd struct{}

func (cmd *ConfigEditCmd) Run(cli *CLI) error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}
	c := exec.Command(editor, cli.Config)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return err
	}
	_, err := loadConfig(cli)
	return err
}

func toRawMap(cfg *config.Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func readRawFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

func lookupDotted(raw map[string]any, key string) (any, bool) {
	parts := strings.Split(key, ".")
	var cur any = raw
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func setDotted(raw map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	cur := raw
	for i, p := range parts {
		if i == len(parts)-1 {
			cur[p] = value
			return
		}
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
}
