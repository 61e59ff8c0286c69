package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"

	"github.com/sucicfilip/ruby-lsp-rails/internal/core/errors"
)

const currentVersion = 1

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// The wrapped error keeps fs.ErrNotExist reachable through
		// errors.Is for the caller's missing-file fallback.
		return nil, errors.AddContext(
			errors.Wrap(err, errors.CodeNotFound, "config file unreadable"),
			errors.CtxPath, path)
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DefaultConfig returns a config usable without any file on disk.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = currentVersion
	}

	if strings.TrimSpace(cfg.Paths.StateDir) == "" {
		cfg.Paths.StateDir = ".ruby-lsp-rails"
	}

	if strings.TrimSpace(cfg.Index.DBPath) == "" {
		cfg.Index.DBPath = "index.db"
	}
	if cfg.Index.ExcludeDirs == nil {
		cfg.Index.ExcludeDirs = []string{"**/node_modules", "**/tmp", "**/log", "**/vendor", "**/.git"}
	}

	if len(cfg.Runner.Command) == 0 {
		cfg.Runner.Command = []string{"bin/rails", "runner", "-"}
	}
	if cfg.Runner.Timeout <= 0 {
		cfg.Runner.Timeout = 5 * time.Second
	}
	if cfg.Runner.RequestsPerMinute <= 0 {
		cfg.Runner.RequestsPerMinute = 300
	}
	if cfg.Runner.Burst <= 0 {
		cfg.Runner.Burst = 20
	}

	if len(cfg.Routes.FilePatterns) == 0 {
		cfg.Routes.FilePatterns = []string{"**/config/routes.rb", "**/config/routes/**/*.rb"}
	}

	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}

	if strings.TrimSpace(cfg.Observability.Address) == "" {
		cfg.Observability.Address = "127.0.0.1:9464"
	}
}

func validate(cfg *Config) error {
	if cfg.Version != currentVersion {
		return fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, currentVersion)
	}

	for _, pattern := range cfg.Routes.FilePatterns {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("invalid route file pattern %q: %w", pattern, err)
		}
	}
	for _, pattern := range append(append([]string{}, cfg.Index.ExcludeDirs...), cfg.Index.ExcludeFiles...) {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
	}

	if cfg.Runner.Enabled && len(cfg.Runner.Command) == 0 {
		return fmt.Errorf("runner enabled but no command configured")
	}

	return nil
}
