// Command topodraw turns nmap XML scan reports into draw.io network diagrams.
package main

import (
	"github.com/anstrom/topodraw/cmd/cli"
)

// Build information, set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
