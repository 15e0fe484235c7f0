// Command manifestcheck fetches the update manifest and reports whether it
// advertises a build newer than the given version code.
//
// Exit status is 0 when up to date, 10 when an update is available and 1 on
// failure.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"Distributor/internal/config"
	"Distributor/internal/manifest"
)

const (
	exitUpToDate        = 0
	exitFailure         = 1
	exitUpdateAvailable = 10
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("manifestcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "override config path (optional)")
	manifestURL := fs.String("url", "", "manifest URL (defaults to the configured one)")
	current := fs.Int("current", -1, "installed versionCode (defaults to the configured one)")
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "manifestcheck: %v\n", err)
		return exitFailure
	}
	if *manifestURL != "" {
		cfg.ManifestURL = *manifestURL
	}
	if *current >= 0 {
		cfg.VersionCode = *current
	}

	v, err := manifest.NewClient(cfg.ManifestURL).Fetch(ctx)
	if err != nil {
		fmt.Fprintln(stdout, renderFailure(cfg.ManifestURL, err))
		return exitFailure
	}
	fmt.Fprintln(stdout, renderReport(cfg.ManifestURL, cfg.VersionCode, v))
	if v.NewerThan(cfg.VersionCode) {
		return exitUpdateAvailable
	}
	return exitUpToDate
}
