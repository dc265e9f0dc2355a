package main

import (
	"fmt"
	"os"

	"chronicle/discuss/internal/cli"
	"chronicle/discuss/internal/config"
	"chronicle/discuss/internal/logger"
)

func main() {
	cfg := config.Load()
	// the CLI only logs warnings and failures of background deletes
	log, err := logger.New("prod")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	code := cli.Execute(cli.New(cfg, log))
	log.Sync()
	os.Exit(code)
}
