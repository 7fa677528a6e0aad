package lang

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// scope tracks the definitions visible at a given nesting level.
// Lookups fall back to the enclosing scope, so a definition nested in one
// branch never collides with an identically named definition in another.
type scope struct {
	parent *scope
	path   string
	defs   map[string]*Procedure
}

func (s *scope) child(name string) *scope {
	return &scope{parent: s, path: s.qualify(name), defs: map[string]*Procedure{}}
}

// qualify returns the procedure table name of name declared in s.
func (s *scope) qualify(name string) string {
	if s.path == "" {
		return name
	}

	return s.path + "/" + name
}

func (s *scope) lookup(name string) (*Procedure, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if p, ok := sc.defs[name]; ok {
			return p, true
		}
	}

	return nil, false
}

// compiler builds the procedures of one unit.
type compiler struct {
	ctx    context.Context
	opts   options
	unit   *Unit
	gensym Gensym
	names  map[string]struct{}
}

// Compile generates the unit for the tree rooted at root. Definitions are
// compiled into the unit's procedure table and may be referenced before they
// are declared; commands naming an undeclared definition fail with
// [ErrUndefinedCommand] unless qualified by a module alias.
func Compile(
	ctx context.Context,
	name string,
	root *Node,
	opts ...Option,
) (*Unit, error) {
	if root == nil || root.Kind != KindRoot {
		return nil, ErrInvalidNode.With(slog.String("expected", KindRoot.String()))
	}

	c := &compiler{
		ctx:  ctx,
		opts: makeOptions(opts...),
		unit: &Unit{
			Name:    name,
			exports: make(map[string]*Procedure),
		},
		names: make(map[string]struct{}),
	}

	top := &scope{defs: c.unit.exports}

	entry := c.newProc(EntryName, ProcEntry)
	c.unit.entry = entry

	err := c.compileBody(entry, root.Children, top)
	if err != nil {
		return nil, err
	}

	c.unit.Compiled = time.Now()

	c.opts.logger.TraceContext(
		ctx,
		"compile complete",
		slog.String("unit", name),
		slog.Int("procedure_count", len(c.unit.procs)),
		slog.Int("import_count", len(c.unit.Imports)),
	)

	return c.unit, nil
}

// CompileString parses and compiles template text.
func CompileString(
	ctx context.Context,
	name, text string,
	opts ...Option,
) (*Unit, error) {
	root, err := ParseString(ctx, text, opts...)
	if err != nil {
		return nil, err
	}

	return Compile(ctx, name, root, opts...)
}

// newProc adds a procedure with a unique table name.
func (c *compiler) newProc(name string, kind ProcKind) *Procedure {
	if _, dup := c.names[name]; dup {
		name = c.gensym.Next(name + "#")
	}

	c.names[name] = struct{}{}

	p := &Procedure{Name: name, Kind: kind}
	c.unit.procs = append(c.unit.procs, p)

	return p
}

// compileBody compiles children into the steps of p. Definitions among the
// children are declared in s before anything is compiled, and their bodies
// are compiled after, each in a nested scope.
func (c *compiler) compileBody(p *Procedure, children []Child, s *scope) error {
	defs := c.declare(children, s)

	for _, child := range children {
		if node, ok := child.(*Node); ok && node.Kind == KindDef {
			continue
		}

		if err := c.compileChild(p, child, s); err != nil {
			return err
		}
	}

	return c.compileDefs(defs, s)
}

// declared pairs a definition node with its procedure.
type declared struct {
	node *Node
	proc *Procedure
}

// declare adds a procedure to s for each definition among children.
// A later definition of the same name shadows an earlier one.
func (c *compiler) declare(children []Child, s *scope) []declared {
	var defs []declared

	for node := range nodesOf(children) {
		if node.Kind == KindDef {
			proc := c.newProc(s.qualify(node.Name), ProcDef)
			s.defs[node.Name] = proc
			defs = append(defs, declared{node: node, proc: proc})
		}
	}

	return defs
}

func (c *compiler) compileDefs(defs []declared, s *scope) error {
	for _, d := range defs {
		if err := c.compileDef(d.proc, d.node, s); err != nil {
			return err
		}
	}

	return nil
}

func (c *compiler) compileChild(p *Procedure, child Child, s *scope) error {
	switch child := child.(type) {
	case Text:
		c.emitText(p, string(child))

		return nil

	case *Node:
		switch child.Kind {
		case KindYield:
			c.emitYield(p, child)

			return nil

		case KindImport:
			return c.emitImport(p, child)

		case KindCommand:
			return c.emitCommand(p, child, s)

		case KindBlock:
			// A block outside of a command renders in place.
			p.Ops = append(p.Ops, Op{Code: OpInline, Arg: child.Name})

			return c.compileBody(p, child.Children, s.child(child.Name))
		}
	}

	return ErrInvalidNode.With(slog.Any("child", child))
}

func (c *compiler) emitText(p *Procedure, text string) {
	p.Ops = append(p.Ops, Op{Code: OpWrite, Arg: quoteSnippet(text)})
	p.steps = append(p.steps, func(w io.Writer, _ *Context, _ *Frame) error {
		_, err := io.WriteString(w, text)

		return err
	})
}

func (c *compiler) emitYield(p *Procedure, n *Node) {
	name := DefaultBlock
	if v, ok := n.Attrs.Get("name"); ok && Unquote(v) != "" {
		name = Unquote(v)
	}

	p.Ops = append(p.Ops, Op{Code: OpYield, Arg: name})
	p.steps = append(p.steps, func(w io.Writer, ctx *Context, f *Frame) error {
		r, err := f.Lookup(name)
		if err != nil {
			return err
		}

		return r(w, ctx)
	})
}

func (c *compiler) emitImport(p *Procedure, n *Node) error {
	module, ok := n.Attrs.Get("module")
	if !ok || Unquote(module) == "" {
		return ErrInvalidNode.With(
			slog.String("node", n.String()),
			slog.String("missing", "module"),
		)
	}

	imp := Import{Module: Unquote(module), Alias: Unquote(module)}
	if alias, ok := n.Attrs.Get("alias"); ok && Unquote(alias) != "" {
		imp.Alias = Unquote(alias)
	}

	c.unit.Imports = append(c.unit.Imports, imp)

	p.Ops = append(p.Ops, Op{Code: OpImport, Arg: imp.Module + " as " + imp.Alias})
	p.steps = append(p.steps, func(_ io.Writer, ctx *Context, _ *Frame) error {
		_, err := ctx.ImportModule(imp.Module, imp.Alias)

		return err
	})

	return nil
}

// block is a named content slot passed by a command.
type block struct {
	name string
	proc *Procedure
}

func (c *compiler) emitCommand(p *Procedure, n *Node, s *scope) error {
	alias, remote, qualified := strings.Cut(n.Name, ":")

	var target *Procedure

	if !qualified {
		var ok bool
		if target, ok = s.lookup(n.Name); !ok {
			return ErrUndefinedCommand.
				Wrap(errors.New(strconv.Quote(n.Name))).
				With(
					slog.String("command", n.Name),
					slog.String("unit", c.unit.Name),
					slog.Int("pos", n.Pos),
				)
		}
	}

	blocks, err := c.compileBlocks(n, s)
	if err != nil {
		return err
	}

	attrs := n.Attrs.Clone()

	p.Ops = append(p.Ops, Op{Code: OpCall, Arg: n.Name + attrs.String()})
	p.steps = append(p.steps, func(w io.Writer, ctx *Context, f *Frame) error {
		bound := make(map[string]Renderer, len(blocks))

		for _, b := range blocks {
			// Block content runs where it was written, not in the callee.
			bound[b.name] = func(w io.Writer, _ *Context) error {
				return b.proc.invoke(w, ctx, f)
			}
		}

		callee, cc := target, ctx

		if qualified {
			u, err := ctx.resolveAlias(alias)
			if err != nil {
				return err
			}

			var ok bool
			if callee, ok = u.Procedure(remote); !ok {
				return ErrUndefinedCommand.
					Wrap(errors.New(strconv.Quote(n.Name))).
					With(
						slog.String("command", n.Name),
						slog.String("unit", u.Name),
					)
			}

			cc = ctx.enter(u)
		}

		return callee.invoke(w, cc, f.Child(bound, attrs))
	})

	return nil
}

// compileBlocks partitions the children of a command into block slots.
// Block nodes and child commands named "<command>.<suffix>" each supply the
// slot named by their suffix; any other content is gathered into the
// default block.
func (c *compiler) compileBlocks(n *Node, s *scope) ([]block, error) {
	var (
		slots []*Node
		plain []Child
	)

	prefix := n.BlockPrefix()

	for _, child := range n.Children {
		node, ok := child.(*Node)

		switch {
		case ok && node.Kind == KindBlock:
			slots = append(slots, &Node{
				Kind:     KindBlock,
				Name:     strings.TrimPrefix(node.Name, prefix),
				Children: node.Children,
			})

		case ok && node.Kind == KindCommand && strings.HasPrefix(node.Name, prefix):
			slots = append(slots, &Node{
				Kind:     KindBlock,
				Name:     strings.TrimPrefix(node.Name, prefix),
				Children: node.Children,
			})

		default:
			plain = append(plain, child)
		}
	}

	if len(plain) > 0 {
		slots = append(slots, &Node{
			Kind:     KindBlock,
			Name:     DefaultBlock,
			Children: plain,
		})
	}

	blocks := make([]block, 0, len(slots))

	for _, slot := range slots {
		proc := c.newProc(s.qualify(n.Name+"."+slot.Name), ProcBlock)

		err := c.compileBody(proc, slot.Children, s.child(n.Name+"."+slot.Name))
		if err != nil {
			return nil, err
		}

		blocks = append(blocks, block{name: slot.Name, proc: proc})
	}

	return blocks, nil
}

// compileDef compiles the body of a definition into p.
//
// The literal attributes of the definition, other than its name, become the
// procedure's defaults. When a call supplies attributes or defaults exist,
// they are merged onto the attributes of the first start tag found in the
// definition's literal text.
func (c *compiler) compileDef(p *Procedure, n *Node, s *scope) error {
	p.Defaults = n.Attrs.Clone().Delete("name")

	inner := s.child(n.Name)

	spliced := false

	defs := c.declare(n.Children, inner)

	for _, child := range n.Children {
		if node, ok := child.(*Node); ok && node.Kind == KindDef {
			continue
		}

		if text, ok := child.(Text); ok && !spliced {
			if loc, found := findStartTag(string(text)); found {
				c.emitSplice(p, string(text), loc)

				spliced = true

				continue
			}
		}

		if err := c.compileChild(p, child, inner); err != nil {
			return err
		}
	}

	return c.compileDefs(defs, inner)
}

// tagLoc locates the attribute region of an HTML start tag in literal text.
type tagLoc struct {
	tag     string
	nameEnd int // offset just past the tag name
	attrEnd int // offset of the trailing "/>" or ">", less whitespace
}

// findStartTag returns the location of the first HTML start tag in text.
func findStartTag(text string) (tagLoc, bool) {
	z := html.NewTokenizer(strings.NewReader(text))
	off := 0

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return tagLoc{}, false
		}

		raw := z.Raw()

		if tt == html.StartTagToken || tt == html.SelfClosingTagToken {
			name, _ := z.TagName()

			i := 1
			for i < len(raw) && !isSpace(raw[i]) && raw[i] != '/' && raw[i] != '>' {
				i++
			}

			j := len(raw)
			if j > i && raw[j-1] == '>' {
				j--
			}

			if j > i && raw[j-1] == '/' {
				j--
			}

			for j > i && isSpace(raw[j-1]) {
				j--
			}

			return tagLoc{
				tag:     string(name),
				nameEnd: off + i,
				attrEnd: off + j,
			}, true
		}

		off += len(raw)
	}
}

func (c *compiler) emitSplice(p *Procedure, text string, loc tagLoc) {
	defaults := p.Defaults
	literal := ParseAttrs(text[loc.nameEnd:loc.attrEnd])

	p.Ops = append(p.Ops, Op{Code: OpSplice, Arg: loc.tag + " " + quoteSnippet(text)})
	p.steps = append(p.steps, func(w io.Writer, _ *Context, f *Frame) error {
		attrs := f.Attrs()

		if len(defaults) == 0 && len(attrs) == 0 {
			_, err := io.WriteString(w, text)

			return err
		}

		merged := Merge(Merge(literal.Clone(), defaults), attrs)

		_, err := io.WriteString(w,
			text[:loc.nameEnd]+merged.String()+text[loc.attrEnd:],
		)

		return err
	})
}

// nodesOf returns an iterator over the nodes among children.
func nodesOf(children []Child) iter.Seq[*Node] {
	return (&Node{Children: children}).Nodes()
}
