package config

import "time"

type Config struct {
	Version       int           `toml:"version"`
	Paths         Paths         `toml:"paths"`
	Index         Index         `toml:"index"`
	Runner        Runner        `toml:"runner"`
	Routes        Routes        `toml:"routes"`
	DSL           DSL           `toml:"dsl"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`
}

type Paths struct {
	WorkspaceRoot string `toml:"workspace_root"`
	StateDir      string `toml:"state_dir"`
}

type Index struct {
	Enabled      bool     `toml:"enabled"`
	DBPath       string   `toml:"db_path"`
	ExcludeDirs  []string `toml:"exclude_dirs"`
	ExcludeFiles []string `toml:"exclude_files"`
}

type Runner struct {
	Enabled           bool          `toml:"enabled"`
	Command           []string      `toml:"command"`
	Timeout           time.Duration `toml:"timeout"`
	RequestsPerMinute int           `toml:"requests_per_minute"`
	Burst             int           `toml:"burst"`
}

// Routes configures which files count as route definition files. Only
// strings inside these files are considered controller#action targets.
type Routes struct {
	FilePatterns []string `toml:"file_patterns"`
}

// DSL carries additive vocabulary entries. The built-in sets stay fixed;
// these extend them for applications that define their own macros.
type DSL struct {
	ExtraAssociations   []string `toml:"extra_associations"`
	ExtraCallbacks      []string `toml:"extra_callbacks"`
	ExtraValidations    []string `toml:"extra_validations"`
	ExtraRouteDeclarers []string `toml:"extra_route_declarers"`
}

type Watch struct {
	Enabled  bool          `toml:"enabled"`
	Debounce time.Duration `toml:"debounce"`
}

type Observability struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	// TraceEndpoint is an OTLP gRPC collector address; empty disables
	// trace export.
	TraceEndpoint string `toml:"trace_endpoint"`
}
