package index

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/sucicfilip/ruby-lsp-rails/internal/definition"
	"github.com/sucicfilip/ruby-lsp-rails/internal/ruby"
)

// Method is one extracted method definition with its owning nesting.
type Method struct {
	Name      string
	Owner     string // fully-qualified nesting, "" at top level
	Singleton bool
	Range     definition.Range
	NameRange definition.Range
}

// Extract walks a parsed Ruby document and collects every method
// definition together with the module/class nesting that owns it.
func Extract(doc *ruby.Document) []Method {
	root := doc.Root()
	if root == nil {
		return nil
	}
	var methods []Method
	walkDefinitions(doc, root, nil, &methods)
	return methods
}

func walkDefinitions(doc *ruby.Document, node *sitter.Node, nesting []string, out *[]Method) {
	switch node.Kind() {
	case ruby.KindModule, ruby.KindClass:
		if name := node.ChildByFieldName("name"); name != nil {
			nesting = append(nesting, doc.Text(name))
		}
	case ruby.KindMethod:
		if method, ok := methodAt(doc, node, nesting, false); ok {
			*out = append(*out, method)
		}
	case ruby.KindSingletonMethod:
		if method, ok := methodAt(doc, node, nesting, true); ok {
			*out = append(*out, method)
		}
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		walkDefinitions(doc, node.Child(i), nesting, out)
	}
}

func methodAt(doc *ruby.Document, node *sitter.Node, nesting []string, singleton bool) (Method, bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return Method{}, false
	}
	name := doc.Text(nameNode)
	if name == "" {
		return Method{}, false
	}

	return Method{
		Name:      name,
		Owner:     joinNesting(nesting),
		Singleton: singleton,
		Range:     definition.RangeFromNode(node),
		NameRange: definition.RangeFromNode(nameNode),
	}, true
}

func joinNesting(nesting []string) string {
	switch len(nesting) {
	case 0:
		return ""
	case 1:
		return nesting[0]
	}
	out := nesting[0]
	for _, part := range nesting[1:] {
		out += "::" + part
	}
	return out
}
