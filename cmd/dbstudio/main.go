// dbstudio is a terminal workspace for the database manager dashboard.
// It runs as an interactive TUI or, given a command, as a scriptable CLI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/johan-st/dbstudio/internal/api"
	"github.com/johan-st/dbstudio/internal/auth"
	"github.com/johan-st/dbstudio/internal/cli"
	"github.com/johan-st/dbstudio/internal/config"
	"github.com/johan-st/dbstudio/internal/storage"
	"github.com/johan-st/dbstudio/internal/tui"
	"github.com/johan-st/dbstudio/internal/worksheet"
	"github.com/uber-go/tally"
	"golang.org/x/term"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

const logFileName = "dbstudio.log"

func main() {
	configPath := flag.String("config", "", "path to config file (default: user config dir)")
	showVersion := flag.Bool("version", false, "show version information")
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		fmt.Printf("dbstudio %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built: %s\n", buildDate)
		os.Exit(0)
	}

	if err := run(*configPath, flag.Args()); err != nil {
		if !errors.Is(err, errCommandFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var errCommandFailed = errors.New("command failed")

func printUsage() {
	fmt.Println("dbstudio - terminal workspace for the database manager")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  dbstudio                     Interactive TUI")
	fmt.Println("  dbstudio <command> [args]    CLI mode (run and exit)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  dbstudio login ada@example.com")
	fmt.Println("  dbstudio worksheets ls")
	fmt.Println("  dbstudio whoami --format=json")
	fmt.Println()
	fmt.Println("Run 'dbstudio help' for all commands.")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
}

// app holds everything both modes share.
type app struct {
	cfg        *config.Config
	logger     *log.Logger
	local      *storage.Local
	client     *api.Client
	auth       *auth.Service
	worksheets *worksheet.Registry
	closers    []io.Closer
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("shutdown", "err", err)
		}
	}
}

func run(configPath string, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	interactive := len(args) == 0
	nav := tui.NewNavigator()

	a, err := setup(cfg, nav, interactive)
	if err != nil {
		return err
	}
	defer a.Close()

	watcher := startWatcher(a)
	if watcher != nil {
		defer watcher.Stop()
	}

	if !interactive {
		return runCLI(ctx, a, args)
	}
	return runTUI(a, nav)
}

// loadConfig loads the given file, or the per-user file when it exists.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if _, err := os.Stat(config.DefaultPath()); err == nil {
			path = config.DefaultPath()
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func setup(cfg *config.Config, nav *tui.Navigator, interactive bool) (*app, error) {
	a := &app{cfg: cfg}

	a.logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Level:           cfg.GetLogLevel(),
		Formatter:       cfg.GetLogFormatter(),
		Prefix:          "dbstudio",
	})

	dataDir := cfg.GetDataDir()
	if interactive {
		// The TUI owns the terminal; logs go to a file next to the data.
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(dataDir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		a.logger.SetOutput(f)
		a.closers = append(a.closers, f)
	}

	local, err := storage.OpenLocal(dataDir)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open local storage: %w", err)
	}
	a.local = local
	a.closers = append(a.closers, local)

	scope, closer := tally.NewRootScope(tally.ScopeOptions{
		Prefix: "dbstudio",
		Tags:   map[string]string{"version": version},
	}, time.Second)
	a.closers = append(a.closers, closer)

	var navigator api.Navigator = nav
	if !interactive {
		navigator = api.NavigatorFunc(func(route string) {
			a.logger.Warn("session expired, run 'dbstudio login' to continue", "route", route)
		})
	}

	a.client = api.NewClient(api.Options{
		BaseURL:     cfg.GetBaseURL(),
		Timeout:     cfg.GetAPITimeout(),
		ReauthRoute: cfg.GetReauthRoute(),
		Tokens:      api.NewTokens(local),
		Navigator:   navigator,
		Logger:      a.logger,
		Scope:       scope.SubScope("api"),
	})

	// Session storage lives as long as the process, like a browser tab.
	a.auth = auth.NewService(a.client, local, storage.NewMemory(), a.logger)

	a.worksheets, err = worksheet.Load(local, a.logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.logger.Debug("started", "version", version, "config", cfg.Path(), "data_dir", dataDir, "api", cfg.GetBaseURL())
	return a, nil
}

// startWatcher re-points the client and logger when the config file changes.
func startWatcher(a *app) *config.Watcher {
	if a.cfg.Path() == "" {
		return nil
	}
	w, err := config.NewWatcher(a.cfg, a.logger)
	if err != nil {
		a.logger.Warn("failed to create config watcher", "err", err)
		return nil
	}
	w.OnReload(func(cfg *config.Config) {
		a.client.Reconfigure(cfg.GetBaseURL(), cfg.GetAPITimeout())
		a.logger.SetLevel(cfg.GetLogLevel())
		a.logger.Info("config reloaded", "api", cfg.GetBaseURL())
	})
	if err := w.Start(); err != nil {
		a.logger.Warn("failed to start config watcher", "err", err)
		return nil
	}
	return w
}

func runCLI(ctx context.Context, a *app, args []string) error {
	handler := cli.NewHandler(cli.Deps{
		Auth:       a.auth,
		Worksheets: a.worksheets,
		Config:     a.cfg,
		Logger:     a.logger,
		Version:    version,
	})
	if err := handler.Run(ctx, args, os.Stdout, os.Stderr); err != nil {
		a.logger.Debug("command failed", "command", args[0], "err", err)
		return errCommandFailed
	}
	return nil
}

func runTUI(a *app, nav *tui.Navigator) error {
	width, height := 80, 24
	fd := int(os.Stdout.Fd())
	if term.IsTerminal(fd) {
		if w, h, err := term.GetSize(fd); err == nil {
			width, height = w, h
		}
	}

	model := tui.NewApp(tui.Options{
		Auth:              a.auth,
		Worksheets:        a.worksheets,
		Logger:            a.logger,
		DefaultConnection: a.cfg.GetDefaultConnection(),
		Width:             width,
		Height:            height,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	nav.Attach(p)
	defer nav.Detach()

	_, err := p.Run()
	return err
}
