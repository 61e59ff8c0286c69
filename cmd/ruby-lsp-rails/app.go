package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sucicfilip/ruby-lsp-rails/internal/core/config"
	"github.com/sucicfilip/ruby-lsp-rails/internal/definition"
	"github.com/sucicfilip/ruby-lsp-rails/internal/index"
	"github.com/sucicfilip/ruby-lsp-rails/internal/lsp"
	"github.com/sucicfilip/ruby-lsp-rails/internal/runner"
	"github.com/sucicfilip/ruby-lsp-rails/internal/shared/observability"
	"github.com/sucicfilip/ruby-lsp-rails/internal/shared/util"
	"github.com/sucicfilip/ruby-lsp-rails/internal/watcher"
)

// App wires configuration into the running components: the method
// index, the runner client, the resolver and the LSP server.
type App struct {
	Config        *config.Config
	Server        *lsp.Server
	store         *index.Store
	scanner       *index.Scanner
	runner        *runner.Client
	watcher       *watcher.Watcher
	obsServe      *observability.Server
	traceShutdown func(context.Context) error

	baseCtx  context.Context
	rootOnce sync.Once
}

func NewApp(cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	var methodIndex definition.MethodIndex
	if cfg.Index.Enabled {
		dbPath := cfg.Index.DBPath
		if !filepath.IsAbs(dbPath) {
			dbPath = filepath.Join(cfg.Paths.WorkspaceRoot, cfg.Paths.StateDir, dbPath)
		}
		store, err := index.Open(dbPath)
		if err != nil {
			return nil, err
		}
		scanner, err := index.NewScanner(store, cfg.Index.ExcludeDirs, cfg.Index.ExcludeFiles)
		if err != nil {
			store.Close()
			return nil, err
		}
		app.store = store
		app.scanner = scanner
		methodIndex = store
	}

	var runtime definition.RuntimeClient
	if cfg.Runner.Enabled {
		var limiter *util.Limiter
		if cfg.Runner.RequestsPerMinute > 0 {
			limiter = util.NewLimiter(float64(cfg.Runner.RequestsPerMinute)/60, cfg.Runner.Burst)
		}
		client, err := runner.NewClient(runner.Options{
			Command: cfg.Runner.Command,
			Dir:     cfg.Paths.WorkspaceRoot,
			Timeout: cfg.Runner.Timeout,
			Limiter: limiter,
		})
		if err != nil {
			app.Close()
			return nil, err
		}
		app.runner = client
		runtime = client
	}

	vocab := definition.NewVocabulary(definition.Extensions{
		Associations:   cfg.DSL.ExtraAssociations,
		Callbacks:      cfg.DSL.ExtraCallbacks,
		Validations:    cfg.DSL.ExtraValidations,
		RouteDeclarers: cfg.DSL.ExtraRouteDeclarers,
	})
	resolver, err := definition.NewResolver(vocab, methodIndex, runtime, cfg.Routes.FilePatterns)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Server = lsp.NewServer(resolver, version, app.onWorkspaceRoot)
	return app, nil
}

// Start runs the observability endpoint and the trace exporter. The
// index scan and the file watcher wait for the client's initialize
// request, which carries the workspace root; the LSP server itself is
// run by the caller.
func (a *App) Start(ctx context.Context) error {
	a.baseCtx = ctx

	if a.Config.Observability.Enabled {
		a.obsServe = observability.NewServer(a.Config.Observability.Address, a)
		if err := a.obsServe.Start(ctx); err != nil {
			return err
		}
	}

	if endpoint := a.Config.Observability.TraceEndpoint; endpoint != "" {
		shutdown, err := observability.InitTracing(ctx, endpoint)
		if err != nil {
			slog.Warn("trace exporter unavailable", "endpoint", endpoint, "error", err)
		} else {
			a.traceShutdown = shutdown
		}
	}
	return nil
}

// onWorkspaceRoot fires once, when the LSP client completes initialize.
// The root the client sent wins over the configured one; a client that
// sends none falls back to the config. Indexing and watching start
// here so they cover the workspace the client actually opened.
func (a *App) onWorkspaceRoot(root string) {
	a.rootOnce.Do(func() {
		if root == "" {
			root = a.Config.Paths.WorkspaceRoot
		}
		ctx := a.baseCtx
		if ctx == nil {
			ctx = context.Background()
		}

		if a.scanner != nil {
			go func() {
				if err := a.scanner.Scan(ctx, root); err != nil {
					slog.Error("initial scan failed", "root", root, "error", err)
				}
			}()
		}

		if a.Config.Watch.Enabled && a.scanner != nil {
			w, err := watcher.NewWatcher(
				a.Config.Watch.Debounce,
				a.Config.Index.ExcludeDirs,
				a.Config.Index.ExcludeFiles,
				a.onFilesChanged,
			)
			if err != nil {
				slog.Warn("file watcher unavailable", "error", err)
				return
			}
			if err := w.Watch(root); err != nil {
				slog.Warn("failed to watch workspace", "root", root, "error", err)
				w.Close()
				return
			}
			a.watcher = w
		}
	})
}

func (a *App) onFilesChanged(changed, removed []string) {
	for _, path := range changed {
		if err := a.scanner.IndexFile(path); err != nil {
			slog.Warn("failed to re-index file", "path", path, "error", err)
		}
	}
	for _, path := range removed {
		if err := a.scanner.Remove(path); err != nil {
			slog.Warn("failed to drop removed file", "path", path, "error", err)
		}
	}
	if count, err := a.store.FileCount(); err == nil {
		observability.IndexedFiles.Set(float64(count))
	}
}

// Check implements observability.HealthChecker.
func (a *App) Check(ctx context.Context) observability.HealthStatus {
	components := make(map[string]string)
	status := "up"

	if a.store != nil {
		if _, err := a.store.FileCount(); err != nil {
			components["index"] = "down"
			status = "degraded"
		} else {
			components["index"] = "up"
		}
	}
	if a.runner != nil {
		components["runner"] = "up"
	}
	return observability.HealthStatus{Status: status, Components: components}
}

func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if a.traceShutdown != nil {
		if err := a.traceShutdown(ctx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}
	if a.obsServe != nil {
		if err := a.obsServe.Stop(ctx); err != nil {
			slog.Warn("failed to stop observability server", "error", err)
		}
	}
	if a.watcher != nil {
		a.watcher.Close()
	}
	if a.runner != nil {
		a.runner.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

// resolveWorkspaceRoot makes the configured workspace root absolute,
// falling back to the current directory.
func resolveWorkspaceRoot(root string) string {
	if root == "" {
		root = "."
	}
	if !filepath.IsAbs(root) {
		if cwd, err := os.Getwd(); err == nil {
			root = filepath.Join(cwd, root)
		}
	}
	return strings.TrimSuffix(root, string(filepath.Separator))
}
