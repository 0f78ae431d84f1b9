// Package cli implements the command-line surface: init, execute, serve,
// reflect, knowledge, doctor, session, config and agent. Each subcommand
// loads its own slice of wiring from a shared config file rather than
// standing up the full pipeline, except execute/serve/agent run which
// need the planner, orchestrator, and gateway together.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/evoagent/core/pkg/errs"
	"github.com/evoagent/core/pkg/logger"
)

// CLI is the root command set parsed by kong.
type CLI struct {
	Config    string `help:"Path to the config file." default:"evoagent.yaml" short:"c"`
	ConfigType string `help:"Config backend: file, consul, etcd, or zookeeper." default:"file"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info" enum:"debug,info,warn,error"`
	LogFormat string `help:"Log output format (simple, verbose)." default:"simple" enum:"simple,verbose"`
	LogFile   string `help:"Write logs to this file instead of stderr."`

	Init      InitCmd      `cmd:"" help:"Scaffold a new config file and workspace directories."`
	Execute   ExecuteCmd   `cmd:"" help:"Run a single requirement through the planner and orchestrator."`
	Serve     ServeCmd     `cmd:"" help:"Start the gateway server."`
	Reflect   ReflectCmd   `cmd:"" help:"Run one consolidation pass over recent sessions."`
	Knowledge KnowledgeCmd `cmd:"" help:"Inspect and edit the curated knowledge store."`
	Doctor    DoctorCmd    `cmd:"" help:"Check configuration and storage health."`
	Session   SessionCmd   `cmd:"" help:"Inspect and manage session logs."`
	Config    ConfigCmd    `cmd:"" help:"Inspect and edit the configuration file."`
	Agent     AgentCmd     `cmd:"" help:"Inspect and control running agents."`
}

// Run parses os.Args and executes the matched subcommand, returning the
// process exit code: 0 on success, 2 on a validation error, 1 otherwise.
func Run(version string) int {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("evoagent"),
		kong.Description("Agent execution core: sessions, knowledge, planning and orchestration for autonomous coding agents."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	kctx, err := parser.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	cli.initLogging()

	if err := kctx.Run(&cli); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if errs.KindOf(err) == errs.Validation {
			return 2
		}
		return 1
	}
	return 0
}

func (c *CLI) initLogging() {
	level, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}

	output := os.Stderr
	if c.LogFile != "" {
		f, _, err := logger.OpenLogFile(c.LogFile)
		if err == nil {
			output = f
		}
	}

	logger.Init(level, output, c.LogFormat)
}
