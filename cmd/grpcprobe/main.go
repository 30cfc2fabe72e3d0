// grpcprobe - Command-line explorer and caller for a tree of proto schemas
package main

import (
	"os"

	"github.com/getmockd/grpcprobe/pkg/cli"
)

// Build-time variables set via ldflags
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cli.Version = Version
	cli.Commit = Commit
	cli.BuildDate = BuildDate
	os.Exit(cli.Main())
}
