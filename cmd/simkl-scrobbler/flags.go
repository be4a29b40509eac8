package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
)

// cliConfig holds flag values common to every subcommand, prior to
// translation into the concrete collaborators main.go wires up.
type cliConfig struct {
	appDataDir string
	clientID   string
	statusAddr string
	logLevel   string
}

func parseFlags(subcommand string, args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("simkl-scrobbler "+subcommand, flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	fs.StringVar(&cfg.appDataDir, "app-data-dir", defaultAppDataDir(), "directory for cache/backlog/credentials/log files")
	fs.StringVar(&cfg.clientID, "client-id", os.Getenv("SIMKL_CLIENT_ID"), "Simkl API client ID (defaults to $SIMKL_CLIENT_ID)")
	fs.StringVar(&cfg.statusAddr, "status-addr", "127.0.0.1:0", "loopback address for the read-only status HTTP endpoint")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "log level: debug|info|warn|error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch cfg.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q", cfg.logLevel)
	}

	if cfg.appDataDir == "" {
		return nil, errors.New("app-data-dir must not be empty")
	}

	return cfg, nil
}

func defaultAppDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + "/simkl-scrobbler"
	}
	return ".simkl-scrobbler"
}
