package main

import (
	"os"

	"github.com/wonny/p2pex/backend/cmd/p2pex/commands"
)

// main is the entry point for the p2pex CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/p2pex [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
