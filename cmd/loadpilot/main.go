// cmd/loadpilot/main.go
package main

import (
	loadpilot "github.com/mwiater/loadpilot/internal/commands"
)

// Build information, set with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	setVersionInfo = loadpilot.SetVersionInfo
	executeCmd     = loadpilot.Execute
)

// main injects the build information and hands over to the cobra root
// command.
func main() {
	setVersionInfo(version, commit, date)
	executeCmd()
}
