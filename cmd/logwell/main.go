package main

import (
	"os"

	"github.com/logwell-systems/logwell/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
