package ruby

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// NodeContext is the lexical context of one focused node: the enclosing
// module/class nesting, the nearest enclosing call expression and the
// reference ancestor used for route scope walks. It is built once per
// resolution request and immutable afterwards.
type NodeContext struct {
	doc     *Document
	target  *sitter.Node
	nesting []string
	call    *sitter.Node
}

func NewNodeContext(doc *Document, target *sitter.Node) *NodeContext {
	ctx := &NodeContext{doc: doc, target: target}
	if doc == nil || target == nil {
		return ctx
	}

	if IsCall(target) {
		ctx.call = target
	}

	for node := target.Parent(); node != nil; node = node.Parent() {
		switch node.Kind() {
		case KindCall:
			if ctx.call == nil {
				ctx.call = node
			}
		case KindModule, KindClass:
			if name := node.ChildByFieldName("name"); name != nil {
				// Prepend: ancestors are visited innermost first.
				ctx.nesting = append([]string{doc.Text(name)}, ctx.nesting...)
			}
		}
	}
	return ctx
}

func (c *NodeContext) Document() *Document { return c.doc }

func (c *NodeContext) TargetNode() *sitter.Node { return c.target }

// CallNode returns the nearest enclosing call expression, or the target
// itself when the target is a call.
func (c *NodeContext) CallNode() *sitter.Node { return c.call }

// Nesting returns the enclosing module/class names, outermost first.
func (c *NodeContext) Nesting() []string { return c.nesting }

// FullyQualifiedScope joins the nesting into a constant path
// ("Admin::User"); empty at the top level.
func (c *NodeContext) FullyQualifiedScope() string {
	return strings.Join(c.nesting, "::")
}

// ReferenceAncestor returns the statement list holding the top-level
// route declarations around the target: the body of the block attached
// to the nearest enclosing `draw` call, or the program root when the
// target sits outside any draw block. This is the documented entry
// point for bounded scope walks; callers never reach into traversal
// internals.
func (c *NodeContext) ReferenceAncestor() *sitter.Node {
	if c.doc == nil || c.target == nil {
		return nil
	}

	for node := c.target.Parent(); node != nil; node = node.Parent() {
		if !IsCall(node) {
			continue
		}
		if c.doc.CallMessage(node) != "draw" {
			continue
		}
		if body := BlockBody(node); body != nil {
			return body
		}
	}
	return c.doc.Root()
}
