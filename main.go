package main

import (
	"github.com/rakimsSpiritual/tpsc-final/cmd"
	"github.com/rakimsSpiritual/tpsc-final/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	cmd.Execute()
}
