package ruby

import (
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"

	"github.com/sucicfilip/ruby-lsp-rails/internal/core/errors"
	"github.com/sucicfilip/ruby-lsp-rails/internal/shared/observability"
)

var rubyLanguage = sitter.NewLanguage(tree_sitter_ruby.Language())

// Document is one parsed Ruby source file. The tree and source stay
// valid until Close; nodes handed out are non-owning references into
// the tree.
type Document struct {
	URI    string
	Path   string
	Source []byte
	tree   *sitter.Tree
}

// Parse builds a Document from source. A tree is always produced, even
// for malformed input; tree-sitter represents broken regions as ERROR
// nodes and resolution treats those like any other node.
func Parse(uri, path string, source []byte) (*Document, error) {
	start := time.Now()

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(rubyLanguage)

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, errors.New(errors.CodeInternal, "ruby parse failed")
	}

	observability.ParsingDuration.Observe(time.Since(start).Seconds())

	return &Document{
		URI:    uri,
		Path:   path,
		Source: source,
		tree:   tree,
	}, nil
}

func (d *Document) Close() {
	if d == nil || d.tree == nil {
		return
	}
	d.tree.Close()
	d.tree = nil
}

func (d *Document) Root() *sitter.Node {
	if d == nil || d.tree == nil {
		return nil
	}
	return d.tree.RootNode()
}

// Text returns the source slice a node spans.
func (d *Document) Text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(d.Source[node.StartByte():node.EndByte()])
}

// NodeAt descends to the smallest node covering a zero-based position.
func (d *Document) NodeAt(line, column uint) *sitter.Node {
	node := d.Root()
	if node == nil || !coversPoint(node, line, column) {
		return nil
	}

	for {
		var next *sitter.Node
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if coversPoint(child, line, column) {
				next = child
				break
			}
		}
		if next == nil {
			return node
		}
		node = next
	}
}

func coversPoint(node *sitter.Node, line, column uint) bool {
	if node == nil {
		return false
	}
	start := node.StartPosition()
	end := node.EndPosition()
	if line < start.Row || line > end.Row {
		return false
	}
	if line == start.Row && column < start.Column {
		return false
	}
	if line == end.Row && column >= end.Column {
		return false
	}
	return true
}
