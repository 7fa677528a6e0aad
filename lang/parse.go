package lang

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"strings"
)

// parser builds a tree from a token stream with an explicit stack.
type parser struct {
	opts   options
	kinds  map[string]Kind
	gensym Gensym
	stack  []*Node
}

func newParser(opts options) *parser {
	p := &parser{
		opts: opts,
		kinds: map[string]Kind{
			DefaultDefTag: KindDef,
			"yield":       KindYield,
			"import":      KindImport,
			"block":       KindBlock,
		},
	}

	for _, alias := range opts.defAlias {
		p.kinds[alias] = KindDef
	}

	return p
}

// ReservedTags returns the directive tag names recognized with opts, sorted.
func ReservedTags(opts ...Option) []string {
	return slices.Sorted(maps.Keys(newParser(makeOptions(opts...)).kinds))
}

// ParseString lexes and parses template text.
func ParseString(ctx context.Context, text string, opts ...Option) (*Node, error) {
	o := makeOptions(opts...)

	tokens := NewLexer(o.prefix).Scan(text)

	o.logger.TraceContext(
		ctx,
		"lex complete",
		slog.String("prefix", o.prefix),
		slog.Int("source_bytes", len(text)),
		slog.Int("token_count", len(tokens)),
	)

	root, err := newParser(o).parse(ctx, tokens)

	// Attach the scanned source for better error messages
	pe := &ParseError{}
	if errors.As(err, &pe) {
		pe.Source = strings.TrimSpace(text)
	}

	return root, err
}

// Parse builds the syntax tree for a token sequence.
// It fails with a [*ParseError] when open and close tags are not balanced.
func Parse(ctx context.Context, tokens []Token, opts ...Option) (*Node, error) {
	return newParser(makeOptions(opts...)).parse(ctx, tokens)
}

func (p *parser) parse(ctx context.Context, tokens []Token) (*Node, error) {
	root := &Node{Kind: KindRoot, Name: RootName}
	p.stack = []*Node{root}

	for _, tok := range tokens {
		top := p.stack[len(p.stack)-1]

		switch tok.Kind {
		case TokenOpen:
			node := p.build(tok)
			top.Append(node)
			p.stack = append(p.stack, node)

		case TokenClose:
			if len(p.stack) == 1 {
				return nil, p.unmatched(tok.Pos)
			}

			p.stack = p.stack[:len(p.stack)-1]

		case TokenOpenClose:
			top.Append(p.build(tok))

		case TokenText:
			top.Append(Text(tok.Text))
		}
	}

	if len(p.stack) != 1 {
		return nil, p.unmatched(-1)
	}

	p.opts.logger.TraceContext(
		ctx,
		"parse complete",
		slog.Int("token_count", len(tokens)),
		slog.Int("child_count", len(root.Children)),
	)

	return root, nil
}

func (p *parser) unmatched(pos int) *ParseError {
	stack := make([]string, len(p.stack))
	for i, n := range p.stack {
		stack[i] = n.String()
	}

	return &ParseError{Stack: stack, Pos: pos}
}

// build creates the node for an open or self-closing tag.
func (p *parser) build(tok Token) *Node {
	if kind, ok := p.kinds[tok.Name]; ok {
		node := &Node{
			Kind:  kind,
			Tag:   tok.Name,
			Attrs: tok.Attrs.Clone(),
			Pos:   tok.Pos,
		}

		if name, ok := tok.Attrs.Get("name"); ok {
			node.Name = Unquote(name)
		} else {
			node.Name = p.gensym.Next(tok.Name)
		}

		return node
	}

	return p.buildCommand(tok)
}

// buildCommand creates a command node. Each ":suffix" attribute becomes a
// block child named "<command>.<suffix>" holding the unquoted value.
func (p *parser) buildCommand(tok Token) *Node {
	node := &Node{
		Kind: KindCommand,
		Tag:  tok.Name,
		Name: tok.Name,
		Pos:  tok.Pos,
	}

	for _, attr := range tok.Attrs {
		suffix, ok := strings.CutPrefix(attr.Key, ":")
		if !ok || attr.Bare || suffix == "" {
			node.Attrs = append(node.Attrs, attr)

			continue
		}

		node.Append(&Node{
			Kind:     KindBlock,
			Name:     node.BlockPrefix() + suffix,
			Children: []Child{Text(Unquote(attr.Value))},
			Pos:      tok.Pos,
		})
	}

	return node
}
