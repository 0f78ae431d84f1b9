// Command evoagent is the command-line entrypoint for the agent
// execution core: session logs, the knowledge store, planning and
// orchestration, the client-facing gateway, and background
// consolidation.
package main

import (
	"os"

	"github.com/evoagent/core/pkg/cli"
)

var version = "dev"

func main() {
	os.Exit(cli.Run(version))
}
