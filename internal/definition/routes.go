package definition

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/sucicfilip/ruby-lsp-rails/internal/ruby"
)

// qualifiedControllerPath prefixes a controller name with the
// namespace/scope segments that enclose the target literal inside the
// route tree: `namespace "admin"` around `get "/ping", to:
// "health#check"` yields "admin/health".
func qualifiedControllerPath(nctx *ruby.NodeContext, target *sitter.Node, controller string) (string, bool) {
	ancestor := nctx.ReferenceAncestor()
	if ancestor == nil {
		return "", false
	}

	// The statement-level call that holds the target may be several
	// containment levels up; without it the target is not part of the
	// route tree at all and resolution aborts silently.
	boundary := enclosingStatementCall(ancestor, target)
	if boundary == nil {
		return "", false
	}

	segments := scopeSegments(nctx.Document(), ancestor, target)
	return strings.Join(append(segments, controller), "/"), true
}

// enclosingStatementCall finds, among the direct statements of the
// reference ancestor, the call expression that transitively contains
// the target (containment is reflexive).
func enclosingStatementCall(ancestor, target *sitter.Node) *sitter.Node {
	for i := uint(0); i < ancestor.ChildCount(); i++ {
		statement := ancestor.Child(i)
		if !ruby.Contains(statement, target) {
			continue
		}
		if ruby.IsCall(statement) {
			return statement
		}
		return nil
	}
	return nil
}

// scopeSegments walks the containment chain from the reference
// ancestor down to the target, in document order, collecting one path
// segment per enclosing `namespace`/`scope` call. The walk never
// descends into subtrees that do not contain the target, so sibling
// scopes contribute nothing. Segments come out outermost first.
func scopeSegments(doc *ruby.Document, ancestor, target *sitter.Node) []string {
	var segments []string

	node := ancestor
	for node != nil && !ruby.SameNode(node, target) {
		var next *sitter.Node
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if ruby.SameNode(child, target) || ruby.Contains(child, target) {
				next = child
				break
			}
		}
		if next == nil {
			break
		}

		if ruby.IsCall(next) {
			if segment, ok := scopeSegment(doc, next); ok {
				segments = append(segments, segment)
			}
		}
		node = next
	}

	return segments
}

// scopeSegment extracts the path segment a single route-grouping call
// contributes, if any.
func scopeSegment(doc *ruby.Document, call *sitter.Node) (string, bool) {
	switch doc.CallMessage(call) {
	case "namespace":
		// namespace "admin" — or namespace :admin, which Rails also
		// accepts for route grouping.
		args := ruby.CallArguments(call)
		if len(args) == 0 {
			return "", false
		}
		if value, ok := doc.LiteralValue(args[0]); ok && value != "" {
			return value, true
		}
	case "scope":
		// scope module: "api" / scope namespace: "api" — only string
		// values contribute; a constant or variable is opaque here.
		for _, pair := range ruby.CallKeywordPairs(call) {
			key := doc.PairKey(pair)
			if key != "module" && key != "namespace" {
				continue
			}
			if value, ok := doc.StringValue(ruby.PairValue(pair)); ok && value != "" {
				return value, true
			}
		}
	}
	return "", false
}
