package lang

import (
	"context"
	"fmt"
	"io"
	"iter"
	"strings"
)

// Kind identifies the variant of a [Node].
type Kind int

const (
	// KindRoot is the single top-level container of a parse.
	KindRoot Kind = iota

	// KindDef declares a named, callable template.
	KindDef

	// KindYield marks an insertion point for a named block.
	KindYield

	// KindImport binds a module alias.
	KindImport

	// KindBlock is a named content slot supplied to a command.
	KindBlock

	// KindCommand invokes a definition by tag name.
	KindCommand
)

// String returns a string representation of the node kind.
func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindDef:
		return "def"
	case KindYield:
		return "yield"
	case KindImport:
		return "import"
	case KindBlock:
		return "block"
	case KindCommand:
		return "command"
	default:
		return "unknown"
	}
}

// RootName is the name of every root node.
const RootName = "*root"

// DefaultBlock is the block a yield refers to when it has no name attribute,
// and the block that receives the plain content of a command.
const DefaultBlock = "body"

// Child is an element of a node's content: a [Text] run or a *[Node].
type Child interface {
	isChild()
}

// Text is a run of literal template text.
type Text string

func (Text) isChild() {}

// Node is an element of the syntax tree.
type Node struct {
	Kind     Kind
	Tag      string // tag name as written; empty for root and synthetic nodes
	Name     string
	Attrs    Attributes
	Children []Child
	Pos      int // byte offset of the opening tag
}

func (*Node) isChild() {}

// Append adds c to the end of the node's children.
func (n *Node) Append(c Child) { n.Children = append(n.Children, c) }

// BlockPrefix returns the name prefix that marks a child tag of a command as
// a block override, as in <@box.title> inside <@box>.
func (n *Node) BlockPrefix() string { return n.Name + "." }

// Nodes returns an iterator over the direct children that are nodes.
func (n *Node) Nodes() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for _, c := range n.Children {
			if node, ok := c.(*Node); ok {
				if !yield(node) {
					return
				}
			}
		}
	}
}

// Walk calls fn for n and each descendant node in depth-first order.
// Descent into a node stops when fn returns false for it.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}

	for c := range n.Nodes() {
		c.Walk(fn)
	}
}

// String returns a short description of the node.
func (n *Node) String() string {
	return "<" + n.Kind.String() + " " + n.Name + ">"
}

// Print writes an indented outline of the tree to w.
func (n *Node) Print(ctx context.Context, w io.Writer) {
	n.PrintIndent(ctx, w, 0)
}

// PrintIndent writes an outline of the tree to w, starting at the given
// indentation level.
func (n *Node) PrintIndent(ctx context.Context, w io.Writer, indent int) {
	pad := strings.Repeat("  ", indent)

	fmt.Fprintf(w, "%s%s %s%s\n", pad, n.Kind, n.Name, n.Attrs)

	for _, c := range n.Children {
		switch c := c.(type) {
		case Text:
			fmt.Fprintf(w, "%s  text %q\n", pad, string(c))

		case *Node:
			c.PrintIndent(ctx, w, indent+1)
		}
	}
}

// ToMap converts the tree to a native Go structure for serialization.
func (n *Node) ToMap() map[string]any {
	m := map[string]any{
		"kind": n.Kind.String(),
		"name": n.Name,
	}

	if attrs := n.Attrs.ToMap(); attrs != nil {
		m["attrs"] = attrs
	}

	if len(n.Children) > 0 {
		children := make([]any, 0, len(n.Children))

		for _, c := range n.Children {
			switch c := c.(type) {
			case Text:
				children = append(children, string(c))

			case *Node:
				children = append(children, c.ToMap())
			}
		}

		m["children"] = children
	}

	return m
}
