package main

import (
	"context"
	"flag"
	"log"

	"glossa/internal/config"
	"glossa/internal/daemon"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// glossad runs the daemon in the foreground for service managers. The same
// loop is reachable through the CLI's hidden daemon command; this binary
// exists so deployments do not need the full CLI on the daemon host.
func main() {
	configPath := flag.String("config", "", "Configuration file path")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemon.Run(context.Background(), cfg, version); err != nil {
		log.Fatalf("glossad: %v", err)
	}
}
