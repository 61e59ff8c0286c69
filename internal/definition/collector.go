package definition

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/sucicfilip/ruby-lsp-rails/internal/shared/observability"
	"github.com/sucicfilip/ruby-lsp-rails/internal/shared/util"
)

// Collector turns resolved names into concrete locations, either
// through the method index or the runtime client, and reports them on
// the sink. Absence of a definition is a normal empty result
// everywhere in this file.
type Collector struct {
	index   MethodIndex
	runtime RuntimeClient
	sink    Sink
}

func NewCollector(index MethodIndex, runtime RuntimeClient, sink Sink) *Collector {
	return &Collector{index: index, runtime: runtime, sink: sink}
}

// CollectMethod resolves a method name in a fully-qualified lexical
// scope through the index and emits every definition found.
func (c *Collector) CollectMethod(ctx context.Context, name, scope string) {
	if c.index == nil || name == "" {
		return
	}
	observability.IndexLookups.Inc()

	entries, err := c.index.ResolveMethod(ctx, name, scope)
	if err != nil {
		slog.Debug("method index lookup failed", "method", name, "scope", scope, "error", err)
		return
	}
	for _, entry := range entries {
		c.sink.Add(Location{URI: entry.URI, Range: entry.NameRange})
		observability.DefinitionResults.WithLabelValues("index").Inc()
	}
}

// CollectAssociation resolves an association name on a model through
// the runtime client.
func (c *Collector) CollectAssociation(ctx context.Context, modelScope, association string) {
	if c.runtime == nil || modelScope == "" || association == "" {
		return
	}
	serialized, err := c.runtime.ResolveAssociation(ctx, modelScope, association)
	if err != nil {
		slog.Debug("association lookup failed", "model", modelScope, "association", association, "error", err)
		return
	}
	c.emitSerialized(serialized)
}

// CollectRouteHelper resolves a named route helper through the runtime
// client.
func (c *Collector) CollectRouteHelper(ctx context.Context, helper string) {
	if c.runtime == nil || helper == "" {
		return
	}
	serialized, err := c.runtime.ResolveRouteHelper(ctx, helper)
	if err != nil {
		slog.Debug("route helper lookup failed", "helper", helper, "error", err)
		return
	}
	c.emitSerialized(serialized)
}

// CollectControllerAction resolves a fully-qualified controller path
// and action through the runtime client. Malformed entries in the
// response are dropped individually; the rest still emit.
func (c *Collector) CollectControllerAction(ctx context.Context, controllerPath, action string) {
	if c.runtime == nil || controllerPath == "" || action == "" {
		return
	}
	serialized, err := c.runtime.ResolveControllerAction(ctx, controllerPath, action)
	if err != nil {
		slog.Debug("controller action lookup failed", "controller", controllerPath, "action", action, "error", err)
		return
	}
	for _, entry := range serialized {
		c.emitSerialized(entry)
	}
}

func (c *Collector) emitSerialized(serialized string) {
	if serialized == "" {
		return
	}
	loc, ok := ParseSerializedLocation(serialized)
	if !ok {
		slog.Debug("dropping malformed serialized location", "value", serialized)
		return
	}
	c.sink.Add(loc)
	observability.DefinitionResults.WithLabelValues("runner").Inc()
}

// path:line[:column[-endLine:endColumn]] with 1-based lines/columns.
var serializedLocationRe = regexp.MustCompile(`^(.+?):(\d+)(?::(\d+)(?:-(\d+):(\d+))?)?$`)

// ParseSerializedLocation parses the runtime client's location string
// form into a Location.
func ParseSerializedLocation(serialized string) (Location, bool) {
	m := serializedLocationRe.FindStringSubmatch(serialized)
	if m == nil {
		return Location{}, false
	}

	line, err := strconv.Atoi(m[2])
	if err != nil || line < 1 {
		return Location{}, false
	}

	loc := Location{
		URI: util.PathToURI(m[1]),
		Range: Range{
			StartLine: uint32(line - 1),
			EndLine:   uint32(line - 1),
		},
	}

	if m[3] != "" {
		column, err := strconv.Atoi(m[3])
		if err != nil || column < 1 {
			return Location{}, false
		}
		loc.Range.StartColumn = uint32(column - 1)
		loc.Range.EndColumn = uint32(column - 1)
	}
	if m[4] != "" {
		endLine, errLine := strconv.Atoi(m[4])
		endColumn, errColumn := strconv.Atoi(m[5])
		if errLine != nil || errColumn != nil || endLine < 1 || endColumn < 1 {
			return Location{}, false
		}
		loc.Range.EndLine = uint32(endLine - 1)
		loc.Range.EndColumn = uint32(endColumn - 1)
	}

	return loc, true
}
