package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"unipi-control/pkg/builder"
	"unipi-control/pkg/config"
	"unipi-control/pkg/logger"
)

const version = "1.0.0"

// cliFlags holds the parsed command line, mirroring spec §6's CLI
// contract: -c/--config, -l/--log, -v (repeatable), --version.
type cliFlags struct {
	configPath string
	logTarget  string
	verbosity  int
	showVer    bool
}

func parseFlags(args []string) (*cliFlags, error) {
	f := &cliFlags{configPath: "/etc/unipi", logTarget: "stdout"}

	for i := 0; i < len(args); i++ {
		switch arg := args[i]; {
		case arg == "-c" || arg == "--config":
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("%s requires a path argument", arg)
			}
			f.configPath = args[i]
		case arg == "-l" || arg == "--log":
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("%s requires systemd|stdout", arg)
			}
			f.logTarget = args[i]
		case arg == "-v":
			f.verbosity++
		case strings.HasPrefix(arg, "-v") && !strings.HasPrefix(arg, "--"):
			f.verbosity += strings.Count(arg, "v")
		case arg == "--version":
			f.showVer = true
		case arg == "--help" || arg == "-h":
			return nil, fmt.Errorf("usage: %s [-c/--config path] [-l/--log systemd|stdout] [-v...] [--version]", os.Args[0])
		default:
			return nil, fmt.Errorf("unrecognized argument %q", arg)
		}
	}

	if f.logTarget != "stdout" && f.logTarget != "systemd" {
		return nil, fmt.Errorf("--log must be systemd or stdout, got %q", f.logTarget)
	}

	return f, nil
}

func verbosityToLevel(v int) string {
	switch {
	case v >= 2:
		return logger.LogLevelTrace
	case v == 1:
		return logger.LogLevelDebug
	default:
		return logger.LogLevelInfo
	}
}

func main() {
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if flags.showVer {
		fmt.Println("unipi-control " + version)
		return
	}

	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[CONFIG] %v\n", err)
		os.Exit(1)
	}

	if flags.verbosity > 0 || cfg.Logging.Level == "" {
		cfg.Logging.Level = verbosityToLevel(flags.verbosity)
	}
	if flags.logTarget == "systemd" {
		// pkg/logger writes through the standard log package (stderr), which
		// systemd captures into the service's journal; no separate writer is
		// used.
		cfg.Logging.File = ""
	}
	logger.GlobalLogging = &cfg.Logging
	logger.LogStartup("🔧 Logging initialized with level: %s", cfg.Logging.Level)

	app, err := builder.NewApplicationBuilder(cfg).Build()
	if err != nil {
		logger.LogError("❌ [CONFIG] failed to build application: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		sig := <-sigChan
		logger.LogInfo("📢 received signal %v, shutting down...", sig)
		cancel()
	}()

	logger.LogInfo("🚀 Starting Unipi Control bridge (config=%s)", flags.configPath)

	if err := app.Run(ctx); err != nil && ctx.Err() == nil {
		logger.LogError("❌ %v", err)
		os.Exit(1)
	}

	logger.LogInfo("✅ Unipi Control bridge stopped")
}
