package definition

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/gobwas/glob"
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/sucicfilip/ruby-lsp-rails/internal/ruby"
	"github.com/sucicfilip/ruby-lsp-rails/internal/shared/observability"
)

// Resolver is the DSL definition resolver. It is safe for concurrent
// use: all per-request state lives in the NodeContext and the sink.
type Resolver struct {
	vocab         *Vocabulary
	index         MethodIndex
	runtime       RuntimeClient
	routePatterns []glob.Glob
}

func NewResolver(vocab *Vocabulary, index MethodIndex, runtime RuntimeClient, routePatterns []string) (*Resolver, error) {
	compiled := make([]glob.Glob, 0, len(routePatterns))
	for _, pattern := range routePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, g)
	}
	return &Resolver{vocab: vocab, index: index, runtime: runtime, routePatterns: compiled}, nil
}

// OnNode classifies the focused node and, when it is a recognized DSL
// use-site, emits candidate definition locations on the sink. Nodes
// that do not look like resolvable DSL uses fall through silently;
// the enclosing traversal always stays live.
func (r *Resolver) OnNode(ctx context.Context, nctx *ruby.NodeContext, sink Sink) {
	if nctx == nil || nctx.Document() == nil || nctx.TargetNode() == nil {
		return
	}

	collector := NewCollector(r.index, r.runtime, sink)
	target := nctx.TargetNode()
	switch {
	case ruby.IsCall(target):
		r.onCall(ctx, nctx, collector, target)
	case ruby.IsIdentifier(target):
		r.onIdentifier(ctx, nctx, collector, target)
	case ruby.IsSymbolLiteral(target), ruby.IsStringLiteral(target):
		r.onLiteral(ctx, nctx, collector, target)
	}
}

// onCall handles the shape where the call itself is the use-site: a
// route helper reference with arguments, such as `users_path(1)`.
func (r *Resolver) onCall(ctx context.Context, nctx *ruby.NodeContext, collector *Collector, call *sitter.Node) {
	if ruby.HasExplicitReceiver(call) {
		return
	}
	message := nctx.Document().CallMessage(call)
	if r.vocab.Classify(message) != KindRouteHelper {
		return
	}

	defer r.observe(KindRouteHelper, time.Now())
	collector.CollectRouteHelper(ctx, message)
}

// onIdentifier handles the argument-less route helper form. A bare
// `users_path` parses as a plain identifier, not a call, including when
// it stands in an argument list (`redirect_to users_path`).
func (r *Resolver) onIdentifier(ctx context.Context, nctx *ruby.NodeContext, collector *Collector, ident *sitter.Node) {
	if !ruby.IsBareReference(ident) {
		return
	}
	name := nctx.Document().Text(ident)
	if r.vocab.Classify(name) != KindRouteHelper {
		return
	}

	defer r.observe(KindRouteHelper, time.Now())
	collector.CollectRouteHelper(ctx, name)
}

func (r *Resolver) onLiteral(ctx context.Context, nctx *ruby.NodeContext, collector *Collector, target *sitter.Node) {
	call := nctx.CallNode()
	if call == nil || ruby.SameNode(call, target) {
		return
	}
	// Explicit-receiver calls are never DSL use-sites.
	if ruby.HasExplicitReceiver(call) {
		return
	}

	message := nctx.Document().CallMessage(call)
	kind := r.vocab.Classify(message)

	switch kind {
	case KindAssociation:
		defer r.observe(kind, time.Now())
		r.handleAssociation(ctx, nctx, collector, call, target)
	case KindCallback, KindValidation:
		defer r.observe(kind, time.Now())
		r.handleMethodReference(ctx, nctx, collector, call, target)
		// Secondary, always-applied check: the focused symbol may be
		// an if:/unless: option value rather than a direct argument.
		r.handleConditionalOption(ctx, nctx, collector, call, target)
	case KindControllerRoute:
		defer r.observe(kind, time.Now())
		r.handleControllerRoute(ctx, nctx, collector, call, target)
	}
}

// handleAssociation resolves `belongs_to :user` style declarations. The
// association name is the first positional argument; the focused node
// must be that argument.
func (r *Resolver) handleAssociation(ctx context.Context, nctx *ruby.NodeContext, collector *Collector, call, target *sitter.Node) {
	args := ruby.CallArguments(call)
	if len(args) == 0 || !ruby.SameNode(args[0], target) {
		return
	}
	name, ok := nctx.Document().SymbolValue(target)
	if !ok || name == "" {
		return
	}
	collector.CollectAssociation(ctx, nctx.FullyQualifiedScope(), name)
}

// handleMethodReference resolves a focused symbol that is a direct
// positional argument of a callback or validation call. String
// arguments classify the call but are not themselves resolved.
func (r *Resolver) handleMethodReference(ctx context.Context, nctx *ruby.NodeContext, collector *Collector, call, target *sitter.Node) {
	if !ruby.IsSymbolLiteral(target) {
		return
	}
	if !isPositionalArgument(call, target) {
		return
	}
	name, ok := nctx.Document().SymbolValue(target)
	if !ok || name == "" {
		return
	}
	collector.CollectMethod(ctx, name, nctx.FullyQualifiedScope())
}

// handleConditionalOption resolves `if:`/`unless:` option values on
// callback and validation calls as method references.
func (r *Resolver) handleConditionalOption(ctx context.Context, nctx *ruby.NodeContext, collector *Collector, call, target *sitter.Node) {
	if !ruby.IsSymbolLiteral(target) {
		return
	}
	doc := nctx.Document()
	for _, pair := range ruby.CallKeywordPairs(call) {
		key := doc.PairKey(pair)
		if key != "if" && key != "unless" {
			continue
		}
		value := ruby.PairValue(pair)
		if !ruby.SameNode(value, target) {
			continue
		}
		name, ok := doc.SymbolValue(target)
		if !ok || name == "" {
			return
		}
		collector.CollectMethod(ctx, name, nctx.FullyQualifiedScope())
		return
	}
}

// handleControllerRoute resolves `"controller#action"` strings inside
// route definition files.
func (r *Resolver) handleControllerRoute(ctx context.Context, nctx *ruby.NodeContext, collector *Collector, call, target *sitter.Node) {
	doc := nctx.Document()
	if !ruby.IsStringLiteral(target) {
		return
	}
	if !r.isRouteFile(doc.Path) {
		return
	}
	if !isPositionalArgument(call, target) && !isKeywordValue(call, target) {
		return
	}

	value, ok := doc.StringValue(target)
	if !ok {
		return
	}
	controller, action, ok := splitControllerAction(value)
	if !ok {
		return
	}

	controllerPath, ok := qualifiedControllerPath(nctx, target, controller)
	if !ok {
		return
	}
	collector.CollectControllerAction(ctx, controllerPath, action)
}

func (r *Resolver) isRouteFile(path string) bool {
	candidate := filepath.ToSlash(path)
	for _, g := range r.routePatterns {
		if g.Match(candidate) {
			return true
		}
	}
	return false
}

func (r *Resolver) observe(kind Kind, start time.Time) {
	observability.DefinitionRequests.WithLabelValues(kind.String()).Inc()
	observability.ResolutionDuration.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())
}

func isPositionalArgument(call, target *sitter.Node) bool {
	for _, arg := range ruby.CallArguments(call) {
		if ruby.SameNode(arg, target) {
			return true
		}
	}
	return false
}

func isKeywordValue(call, target *sitter.Node) bool {
	for _, pair := range ruby.CallKeywordPairs(call) {
		if ruby.SameNode(ruby.PairValue(pair), target) {
			return true
		}
	}
	return false
}

// splitControllerAction splits on the first '#'. Strings without a
// separator, or with an empty controller or action part, are malformed
// and yield no resolution.
func splitControllerAction(value string) (controller, action string, ok bool) {
	controller, action, found := strings.Cut(value, "#")
	if !found || controller == "" || action == "" {
		return "", "", false
	}
	return controller, action, true
}
