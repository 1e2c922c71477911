package main

import (
	"os"

	"github.com/klogins-hash/livekit-mcp-agent/cmd/lkagent/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
