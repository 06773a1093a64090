// Package main provides the entry point for the adjudex CLI tool.
package main

import "github.com/adjudex/adjudex/cmd/adjudex/cmd"

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.Execute(version, commit, date)
}
