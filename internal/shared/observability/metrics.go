package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	DefinitionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ruby_lsp_rails_definition_requests_total",
		Help: "Definition resolutions attempted, labelled by DSL kind.",
	}, []string{"kind"})

	DefinitionResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ruby_lsp_rails_definition_results_total",
		Help: "Definition locations emitted, labelled by resolution path.",
	}, []string{"path"})

	ResolutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ruby_lsp_rails_resolution_seconds",
		Help:    "Time spent resolving one definition request.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	RunnerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ruby_lsp_rails_runner_requests_total",
		Help: "Round trips issued to the runtime query runner.",
	}, []string{"method"})

	RunnerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ruby_lsp_rails_runner_failures_total",
		Help: "Runner round trips that failed or timed out.",
	}, []string{"method"})

	IndexLookups = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ruby_lsp_rails_index_lookups_total",
		Help: "Method index lookups performed.",
	})

	IndexedFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ruby_lsp_rails_indexed_files_total",
		Help: "Number of Ruby files currently held in the method index.",
	})

	ParsingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ruby_lsp_rails_parsing_seconds",
		Help:    "Time spent parsing a Ruby document.",
		Buckets: prometheus.DefBuckets,
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ruby_lsp_rails_watcher_events_total",
		Help: "File system events received by the workspace watcher.",
	})
)
