package ruby

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Tree-sitter Ruby node kinds this package dispatches on.
const (
	KindCall            = "call"
	KindArgumentList    = "argument_list"
	KindPair            = "pair"
	KindHash            = "hash"
	KindSimpleSymbol    = "simple_symbol"
	KindDelimitedSymbol = "delimited_symbol"
	KindString          = "string"
	KindStringContent   = "string_content"
	KindHashKeySymbol   = "hash_key_symbol"
	KindDoBlock         = "do_block"
	KindBraceBlock      = "block"
	KindBodyStatement   = "body_statement"
	KindBlockBody       = "block_body"
	KindModule          = "module"
	KindClass           = "class"
	KindProgram         = "program"
	KindMethod          = "method"
	KindSingletonMethod = "singleton_method"
	KindSelf            = "self"
	KindIdentifier      = "identifier"
)

func IsCall(node *sitter.Node) bool {
	return node != nil && node.Kind() == KindCall
}

func IsSymbolLiteral(node *sitter.Node) bool {
	if node == nil {
		return false
	}
	kind := node.Kind()
	return kind == KindSimpleSymbol || kind == KindDelimitedSymbol
}

func IsStringLiteral(node *sitter.Node) bool {
	return node != nil && node.Kind() == KindString
}

func IsIdentifier(node *sitter.Node) bool {
	return node != nil && node.Kind() == KindIdentifier
}

// IsBareReference reports whether an identifier appears in expression
// position: an argument-less method call or a local variable read. A
// receiverless call with no parentheses parses as a plain identifier,
// so this is the shape a bare route helper reference takes. Binding
// sites (parameters, assignment targets, definition names) and the
// method field of a call node are not references.
func IsBareReference(node *sitter.Node) bool {
	if !IsIdentifier(node) {
		return false
	}
	parent := node.Parent()
	if parent == nil {
		return true
	}
	switch parent.Kind() {
	case "method_parameters", "block_parameters", "lambda_parameters",
		"optional_parameter", "keyword_parameter", "splat_parameter",
		"block_parameter", "destructured_parameter", "left_assignment_list":
		return false
	case "assignment", "operator_assignment":
		return !SameNode(parent.ChildByFieldName("left"), node)
	case KindCall:
		return !SameNode(parent.ChildByFieldName("method"), node)
	case KindMethod, KindSingletonMethod:
		return !SameNode(parent.ChildByFieldName("name"), node)
	}
	return true
}

// SameNode compares two nodes by identity, not structure. Two
// syntactically identical literals at different positions are distinct.
func SameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Id() == b.Id()
}

// Contains reports whether inner is outer or a descendant of outer.
func Contains(outer, inner *sitter.Node) bool {
	if outer == nil || inner == nil {
		return false
	}
	for node := inner; node != nil; node = node.Parent() {
		if SameNode(outer, node) {
			return true
		}
	}
	return false
}

// CallMessage returns the method name of a call, or "".
func (d *Document) CallMessage(call *sitter.Node) string {
	if !IsCall(call) {
		return ""
	}
	method := call.ChildByFieldName("method")
	if method == nil {
		return ""
	}
	return d.Text(method)
}

// HasExplicitReceiver reports whether a call names a receiver other
// than self. Bare DSL calls (`before_save :foo`) have no receiver node;
// `self.before_save :foo` still counts as the ambient receiver.
func HasExplicitReceiver(call *sitter.Node) bool {
	if !IsCall(call) {
		return false
	}
	receiver := call.ChildByFieldName("receiver")
	if receiver == nil {
		return false
	}
	return receiver.Kind() != KindSelf
}

// CallArguments returns the positional arguments of a call, excluding
// keyword pairs, trailing hashes and block arguments.
func CallArguments(call *sitter.Node) []*sitter.Node {
	list := argumentList(call)
	if list == nil {
		return nil
	}

	var args []*sitter.Node
	for i := uint(0); i < list.ChildCount(); i++ {
		child := list.Child(i)
		if !child.IsNamed() {
			continue
		}
		switch child.Kind() {
		case KindPair, KindHash, "block_argument":
			continue
		}
		args = append(args, child)
	}
	return args
}

// CallKeywordPairs returns keyword option pairs of a call, both bare in
// the argument list (`if: :foo`) and inside a trailing brace hash.
func CallKeywordPairs(call *sitter.Node) []*sitter.Node {
	list := argumentList(call)
	if list == nil {
		return nil
	}

	var pairs []*sitter.Node
	for i := uint(0); i < list.ChildCount(); i++ {
		child := list.Child(i)
		switch child.Kind() {
		case KindPair:
			pairs = append(pairs, child)
		case KindHash:
			for j := uint(0); j < child.ChildCount(); j++ {
				inner := child.Child(j)
				if inner.Kind() == KindPair {
					pairs = append(pairs, inner)
				}
			}
		}
	}
	return pairs
}

func argumentList(call *sitter.Node) *sitter.Node {
	if !IsCall(call) {
		return nil
	}
	return call.ChildByFieldName("arguments")
}

// PairKey returns the unescaped key name of a keyword pair
// (`if:` and `:if =>` both yield "if").
func (d *Document) PairKey(pair *sitter.Node) string {
	if pair == nil || pair.Kind() != KindPair {
		return ""
	}
	key := pair.ChildByFieldName("key")
	if key == nil {
		return ""
	}
	switch key.Kind() {
	case KindHashKeySymbol:
		return d.Text(key)
	case KindSimpleSymbol:
		return strings.TrimPrefix(d.Text(key), ":")
	case KindDelimitedSymbol:
		return d.symbolContent(key)
	}
	return ""
}

func PairValue(pair *sitter.Node) *sitter.Node {
	if pair == nil || pair.Kind() != KindPair {
		return nil
	}
	return pair.ChildByFieldName("value")
}

// SymbolValue returns the method name a symbol literal denotes.
func (d *Document) SymbolValue(node *sitter.Node) (string, bool) {
	if node == nil {
		return "", false
	}
	switch node.Kind() {
	case KindSimpleSymbol:
		return strings.TrimPrefix(d.Text(node), ":"), true
	case KindDelimitedSymbol:
		return d.symbolContent(node), true
	}
	return "", false
}

// StringValue returns the unescaped content of a plain string literal.
// Strings with interpolation are not plain literals and report false.
func (d *Document) StringValue(node *sitter.Node) (string, bool) {
	if !IsStringLiteral(node) {
		return "", false
	}
	var sb strings.Builder
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case KindStringContent:
			sb.WriteString(d.Text(child))
		case "escape_sequence":
			sb.WriteString(unescape(d.Text(child)))
		case "interpolation":
			return "", false
		}
	}
	return sb.String(), true
}

// LiteralValue returns the canonical string value of a symbol or string
// literal.
func (d *Document) LiteralValue(node *sitter.Node) (string, bool) {
	if IsSymbolLiteral(node) {
		return d.SymbolValue(node)
	}
	if IsStringLiteral(node) {
		return d.StringValue(node)
	}
	return "", false
}

func (d *Document) symbolContent(node *sitter.Node) string {
	var sb strings.Builder
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == KindStringContent {
			sb.WriteString(d.Text(child))
		}
	}
	return sb.String()
}

func unescape(value string) string {
	switch value {
	case `\n`:
		return "\n"
	case `\t`:
		return "\t"
	case `\\`:
		return `\`
	case `\"`:
		return `"`
	case `\'`:
		return "'"
	}
	return strings.TrimPrefix(value, `\`)
}

// BlockBody returns the statement list of a call's attached block, or
// nil when the call carries no block.
func BlockBody(call *sitter.Node) *sitter.Node {
	if !IsCall(call) {
		return nil
	}
	block := call.ChildByFieldName("block")
	if block == nil {
		return nil
	}
	for i := uint(0); i < block.ChildCount(); i++ {
		child := block.Child(i)
		if kind := child.Kind(); kind == KindBodyStatement || kind == KindBlockBody {
			return child
		}
	}
	return nil
}
