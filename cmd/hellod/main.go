// Package main is the entry point for hellod: the greeting responder and its watchdog
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"hellod/internal/config"
	"hellod/internal/greeter"
	"hellod/internal/logging"
	"hellod/internal/server"
	"hellod/internal/telemetry"
	"hellod/internal/version"
	"hellod/internal/watchdog"
)

const usage = `Usage: hellod [command]

Commands:
  serve      answer every HTTP request with a greeting (default)
  watchdog   check the responder and restart its container when it stops answering
  version    print version information
`

func main() {
	// A missing .env is normal outside development
	if err := godotenv.Load(); err != nil {
		logging.Debugf("No .env file found or error loading it: %v", err)
	}

	if os.Getenv("HELLOD_ENV") == "development" || os.Getenv("DEBUG") == "true" {
		if err := logging.Initialize("./logs"); err != nil {
			logging.Warnf("Failed to initialize file logging: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	if err := logging.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close log file: %v\n", err)
	}
	os.Exit(code)
}

// run dispatches the command line and returns the process exit status
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := "serve"
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "serve":
		return runServer(ctx)
	case "watchdog":
		return runWatchdog(ctx)
	case "version", "--version", "-version":
		if err := version.Get().Write(stdout); err != nil {
			return 1
		}
		return 0
	case "help", "--help", "-h":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}
}

func runServer(ctx context.Context) int {
	cfg, err := config.Load()
	if err != nil {
		logging.Errorf("Failed to load configuration: %v", err)
		return 1
	}

	srv := server.New(cfg, greeter.Handler())
	if err := srv.Start(ctx); err != nil {
		logging.Errorf("Server error: %v", err)
		return 1
	}
	return 0
}

func runWatchdog(ctx context.Context) int {
	cfg, err := config.LoadWatchdog()
	if err != nil {
		logging.Errorf("Failed to load watchdog configuration: %v", err)
		return 1
	}

	shutdown, err := telemetry.InitializeFromEnv(ctx, version.Get().Version)
	if err != nil {
		logging.Warnf("Failed to initialize telemetry: %v", err)
	} else {
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logging.Errorf("Error shutting down telemetry: %v", err)
			}
		}()
	}

	opts := []watchdog.Option{
		watchdog.WithNotifier(watchdog.NewSMTPNotifier(cfg.SMTP)),
	}

	restarter, err := watchdog.NewDockerRestarter(ctx)
	if err != nil {
		logging.Warnf("Could not initialize Docker client; container restarts are disabled. "+
			"Mount /var/run/docker.sock to enable them: %v", err)
	} else {
		defer func() {
			if err := restarter.Close(); err != nil {
				logging.Errorf("Failed to close Docker client: %v", err)
			}
		}()
		opts = append(opts, watchdog.WithRestarter(restarter))
	}

	if err := watchdog.New(cfg, opts...).Run(ctx); err != nil {
		logging.Errorf("Watchdog error: %v", err)
		return 1
	}
	return 0
}
