package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/sucicfilip/ruby-lsp-rails/internal/core/config"
)

var (
	configPath  = flag.String("config", "./ruby-lsp-rails.toml", "Path to config file")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

const version = "1.0.0"

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("ruby-lsp-rails v%s\n", version)
		os.Exit(0)
	}

	// Stdout carries the LSP stream; all logging goes to stderr.
	logLevel := slog.LevelInfo
	verbosity := 0
	if *verbose {
		logLevel = slog.LevelDebug
		verbosity = 2
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	commonlog.Configure(verbosity, nil)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !flagWasSet("config") && errors.Is(err, fs.ErrNotExist) {
			cfg = config.DefaultConfig()
		} else {
			slog.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
	}
	cfg.Paths.WorkspaceRoot = resolveWorkspaceRoot(cfg.Paths.WorkspaceRoot)

	app, err := NewApp(cfg)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		slog.Error("failed to start components", "error", err)
		os.Exit(1)
	}

	if err := app.Server.RunStdio(); err != nil {
		slog.Error("server terminated", "error", err)
		os.Exit(1)
	}
}

func flagWasSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
