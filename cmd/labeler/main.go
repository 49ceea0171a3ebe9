package main

import (
	"os"

	"github.com/ghelleks/email-labeler-agent-sub001/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
