// Package main is the entry point for ccm, a terminal monitor for LLM
// usage logs. It loads configuration, starts the ingestion pipeline and runs
// the Bubble Tea program, or performs a single scan with --once.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/AgentsMesh/CCMonitor/internal/app"
	"github.com/AgentsMesh/CCMonitor/internal/config"
	"github.com/AgentsMesh/CCMonitor/internal/logger"
	"github.com/AgentsMesh/CCMonitor/internal/services"
	"github.com/AgentsMesh/CCMonitor/internal/ui/tabs/dashboard"
	"github.com/AgentsMesh/CCMonitor/internal/ui/tabs/history"
	"github.com/AgentsMesh/CCMonitor/internal/ui/tabs/info"
	"github.com/AgentsMesh/CCMonitor/internal/ui/tabs/projects"
	"github.com/AgentsMesh/CCMonitor/internal/version"
)

type mode int

const (
	modeTUI mode = iota
	modeOnce
	modeVersion
	modeHelp
)

func parseArgs(args []string) (mode, error) {
	if len(args) == 0 {
		return modeTUI, nil
	}
	if len(args) > 1 {
		return modeTUI, fmt.Errorf("unexpected arguments: %v", args[1:])
	}
	switch args[0] {
	case "--once":
		return modeOnce, nil
	case "-v", "--version":
		return modeVersion, nil
	case "-h", "--help":
		return modeHelp, nil
	default:
		return modeTUI, fmt.Errorf("unknown flag: %s", args[0])
	}
}

func main() {
	md, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		printUsage(os.Stderr)
		os.Exit(2)
	}

	switch md {
	case modeVersion:
		fmt.Println(version.Info())
		return
	case modeHelp:
		printUsage(os.Stdout)
		return
	case modeOnce:
		err = runOnce()
	default:
		err = run()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runOnce scans every log file, saves state and prints a summary.
func runOnce() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Setup(os.Stderr, logger.ParseLevel(cfg.LogLevel))

	mgr, err := services.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if closeErr := mgr.Close(); closeErr != nil {
			logger.Warn("Error closing services", "error", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := mgr.RunOnce(ctx); err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	printSummary(os.Stdout, mgr.Dashboard(), mgr.Diagnostics())
	return nil
}

// run starts the pipeline and the TUI.
func run() error {
	// 1. Load configuration from .env files and environment variables
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Send logs to a file while the alternate screen owns the terminal
	logFile, err := os.OpenFile(cfg.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()
	logger.Setup(logFile, logger.ParseLevel(cfg.LogLevel))
	logger.Info("Starting", "version", version.GetVersion(), "roots", cfg.ClaudePaths)

	// 3. Start the ingestion pipeline
	mgr, err := services.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if closeErr := mgr.Close(); closeErr != nil {
			logger.Error("Error closing services", "error", closeErr)
			fmt.Fprintf(os.Stderr, "Warning: error closing services: %v\n", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	// 4. Create the root model and its tabs over shared state
	model := app.NewModel(mgr)
	state := model.GetState()
	model.SetTabs([]app.Tab{
		dashboard.New(state),
		projects.New(state),
		history.New(state),
		info.New(state, cfg),
	})

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	// 5. Quit the program on SIGINT/SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			p.Send(tea.Quit())
		case <-ctx.Done():
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `ccm - terminal monitor for LLM usage logs

Usage:
  ccm [flag]

Flags:
      --once      Scan all usage logs, save state, print a summary and exit
  -h, --help      Show this help message
  -v, --version   Show version information

Keyboard Shortcuts:
  1-4             Switch between tabs (Dashboard, Projects, History, Info)
  Tab/Shift+Tab   Navigate between tabs
  j/k, Up/Down    Scroll or move the selection
  /               Filter projects
  t               Switch history range
  r               Refresh data
  s               Save state now
  X               Reset all aggregated data
  ?               Toggle help
  q, Ctrl+C       Quit

Environment Variables:
  CLAUDE_CONFIG_DIR         Comma-separated log roots (default: ~/.config/claude, ~/.claude)
  CACHE_DIR                 Offsets, snapshot, pricing cache and log file
  DATABASE_PATH             SQLite usage store path
  PRICING_URL               Model price list URL
  PRICING_CACHE_MAX_AGE     Pricing cache freshness (default: 24h)
  PRICING_REFRESH_INTERVAL  Pricing reload interval (default: 24h)
  SESSION_DURATION          Session window (default: 5h)
  BURN_RATE_WINDOW          Burn-rate window (default: 30m)
  REFRESH_INTERVAL          Dashboard refresh interval (default: 1s)
  SAVE_INTERVAL             Periodic save interval (default: 300s)
  WATCH_LATENCY             File change coalescing (default: 500ms)
  DAILY_BUDGET              Daily budget in USD (default: 10)
  MONTHLY_BUDGET            Monthly budget in USD (default: 200)
  BUDGET_ALERTS             Desktop budget notifications (default: true)
  LOG_LEVEL                 debug, info, warn or error (default: info)

Configuration:
  The application looks for a .env file in the following locations:
  - Current directory
  - ~/.config/ccmonitor/.env
  - ~/.ccmonitor/.env
`)
}
