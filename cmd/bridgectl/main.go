package main

import (
	"os"

	"github.com/converso-labs/chatbridge/internal/bridgectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
