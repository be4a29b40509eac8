// Command simkl-scrobbler is the core binary's CLI surface (spec.md
// §6.4): init, start, tray. OS window enumeration, per-player network
// reachability, tray icon rendering, and autostart installation are all
// external collaborators outside the core's scope (spec.md §1) — this
// binary wires the core components together and leaves those specific
// integration points as documented seams.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"simklscrobbler/config"
	"simklscrobbler/internal/backlog"
	"simklscrobbler/internal/credentials"
	"simklscrobbler/internal/engine"
	"simklscrobbler/internal/mediacache"
	"simklscrobbler/internal/notify"
	"simklscrobbler/internal/playbacklog"
	"simklscrobbler/internal/probes"
	"simklscrobbler/internal/resolver"
	"simklscrobbler/internal/simklapi"
	"simklscrobbler/internal/statusserver"
	"simklscrobbler/internal/syncworker"
	"simklscrobbler/internal/tracker"
	"simklscrobbler/internal/watchhistory"
	"simklscrobbler/models"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: simkl-scrobbler <init|start|tray> [flags]")
		os.Exit(1)
	}

	subcommand := os.Args[1]
	cfg, err := parseFlags(subcommand, os.Args[2:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var runErr error
	switch subcommand {
	case "init":
		runErr = runInit(cfg)
	case "start":
		runErr = runStart(cfg, false)
	case "tray":
		runErr = runStart(cfg, true)
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", subcommand)
		os.Exit(1)
	}

	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
	os.Exit(0)
}

// runInit drives the interactive device-code authentication flow and
// persists the resulting access token, per spec.md §6.4's `init`.
func runInit(cfg *cliConfig) error {
	if cfg.clientID == "" {
		return fmt.Errorf("configuration error: a Simkl client ID is required (-client-id or $SIMKL_CLIENT_ID)")
	}

	fs := afero.NewOsFs()
	if err := fs.MkdirAll(cfg.appDataDir, 0o755); err != nil {
		return fmt.Errorf("fatal: create app data dir: %w", err)
	}

	client := simklapi.NewClient(cfg.clientID)
	store, err := credentials.New(fs, cfg.appDataDir)
	if err != nil {
		return fmt.Errorf("fatal: prepare credential store: %w", err)
	}

	ctx := context.Background()
	pin, err := client.StartDeviceAuth(ctx)
	if err != nil {
		return fmt.Errorf("authentication error: %w", err)
	}

	fmt.Printf("Go to %s and enter code: %s\n", pin.VerificationURL, pin.UserCode)

	interval := time.Duration(pin.Interval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	deadline := time.Now().Add(time.Duration(pin.ExpiresIn) * time.Second)

	for time.Now().Before(deadline) {
		time.Sleep(interval)

		token, err := client.PollDeviceAuth(ctx, pin.UserCode)
		if err != nil {
			return fmt.Errorf("authentication error: %w", err)
		}
		if token == nil {
			continue // still pending
		}

		if err := store.Save(credentials.Token{AccessToken: token.AccessToken}); err != nil {
			return fmt.Errorf("fatal: persist credentials: %w", err)
		}
		fmt.Println("Authentication successful.")
		return nil
	}

	return fmt.Errorf("authentication error: device code expired before authorization completed")
}

// runStart builds every core component and runs the poll/sync loop until
// SIGINT/SIGTERM. foreground distinguishes `tray` from `start`; the only
// difference is that `start` logs that autostart installation is skipped.
// No autostart entry is installed and no tray icon is rendered.
func runStart(cfg *cliConfig, foreground bool) error {
	fs := afero.NewOsFs()
	if err := fs.MkdirAll(cfg.appDataDir, 0o755); err != nil {
		return fmt.Errorf("fatal: create app data dir: %w", err)
	}

	opLog := log.New(os.Stderr, "", log.LstdFlags)

	configManager, err := config.NewManager(fs, cfg.appDataDir)
	if err != nil {
		return fmt.Errorf("fatal: %w", err)
	}
	settings, err := configManager.Load()
	if err != nil {
		return fmt.Errorf("fatal: load settings: %w", err)
	}

	clientID := cfg.clientID
	if clientID == "" {
		clientID = settings.SimklClientID
	}
	if clientID == "" {
		return fmt.Errorf("configuration error: no Simkl client ID configured; run `simkl-scrobbler init` first")
	}

	credStore, err := credentials.New(fs, cfg.appDataDir)
	if err != nil {
		return fmt.Errorf("fatal: prepare credential store: %w", err)
	}
	token, err := credStore.Load()
	if err != nil {
		return fmt.Errorf("configuration error: no access token found; run `simkl-scrobbler init` first: %w", err)
	}

	client := simklapi.NewClient(clientID)
	accessToken := func() string { return token.AccessToken }

	cache, err := mediacache.New(fs, cfg.appDataDir)
	if err != nil {
		return fmt.Errorf("fatal: %w", err)
	}
	backlogs, err := backlog.New(fs, cfg.appDataDir)
	if err != nil {
		return fmt.Errorf("fatal: %w", err)
	}
	history, err := watchhistory.New(fs, cfg.appDataDir)
	if err != nil {
		return fmt.Errorf("fatal: %w", err)
	}

	res, err := resolver.New(cache, client, client, accessToken)
	if err != nil {
		return fmt.Errorf("fatal: %w", err)
	}

	events := playbacklog.New(cfg.appDataDir + "/playback_log.jsonl")
	defer events.Close()

	notifier := notify.NewLoggingSink(opLog)

	trk := tracker.New(cache, backlogs, history, res, client, client, accessToken, settings.Threshold(), settings.BacklogCooldown(), events, notifier)

	sw := syncworker.New(backlogs, client, client, accessToken, settings.SyncInterval(), opLog)

	registry := probes.NewRegistry(opLog, settings.PlayerPorts.VLC, settings.PlayerPorts.MPCHC, mpvDefaultSocketPath())

	eng := engine.New(noWindowEnumerator{}, registry, trk, sw, settings.PollInterval(), opLog)

	status := statusserver.New(cfg.statusAddr, trk, backlogs)
	go func() {
		if err := status.ListenAndServe(); err != nil {
			opLog.Printf("[main] status server stopped: %v", err)
		}
	}()
	defer status.Close()

	if !foreground {
		opLog.Printf("[main] autostart installation is a platform-specific, out-of-scope integration; skipping")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opLog.Printf("[main] scrobbling engine started (app data dir: %s)", cfg.appDataDir)
	eng.Run(ctx)
	opLog.Printf("[main] scrobbling engine stopped")

	return nil
}

// noWindowEnumerator is the default WindowEnumerator when no platform
// window-enumeration backend is wired in: it reports no foreground
// player window, ever. Real deployments inject a platform-specific
// implementation (per spec.md §1's "out of scope" list) in its place.
type noWindowEnumerator struct{}

func (noWindowEnumerator) ActiveWindow(ctx context.Context) (*models.Window, error) {
	return nil, nil
}

func mpvDefaultSocketPath() string {
	if runtime.GOOS == "windows" {
		return `\\.\pipe\mpv-socket`
	}
	return "/tmp/mpv-socket"
}
