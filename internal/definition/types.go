package definition

import (
	"context"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Range is a zero-based, end-exclusive source span.
type Range struct {
	StartLine   uint32
	StartColumn uint32
	EndLine     uint32
	EndColumn   uint32
}

// Location is one resolved definition target. Every emitted Location
// points at an existing position; the resolver never emits speculative
// locations.
type Location struct {
	URI   string
	Range Range
}

// MethodEntry is one method definition returned by the index: the
// declaring file plus the full definition range and the precise name
// range.
type MethodEntry struct {
	Name      string
	Owner     string
	URI       string
	Range     Range
	NameRange Range
}

// MethodIndex resolves a method name within a fully-qualified lexical
// scope to its local definitions. Zero results is a normal outcome.
type MethodIndex interface {
	ResolveMethod(ctx context.Context, name, scope string) ([]MethodEntry, error)
}

// RuntimeClient answers framework questions that need live application
// state. Results are serialized location strings; empty results mean
// "no definition", never an error the resolver must surface.
type RuntimeClient interface {
	ResolveAssociation(ctx context.Context, modelScope, association string) (string, error)
	ResolveRouteHelper(ctx context.Context, helper string) (string, error)
	ResolveControllerAction(ctx context.Context, controllerPath, action string) ([]string, error)
}

// Sink receives resolved locations in discovery order. Duplicates are
// the consumer's concern.
type Sink interface {
	Add(loc Location)
}

// SliceSink is the plain Sink used by the request layer and tests.
type SliceSink struct {
	Locations []Location
}

func (s *SliceSink) Add(loc Location) {
	s.Locations = append(s.Locations, loc)
}

// RangeFromNode converts a tree-sitter node span to a Range.
func RangeFromNode(node *sitter.Node) Range {
	start := node.StartPosition()
	end := node.EndPosition()
	return Range{
		StartLine:   uint32(start.Row),
		StartColumn: uint32(start.Column),
		EndLine:     uint32(end.Row),
		EndColumn:   uint32(end.Column),
	}
}
