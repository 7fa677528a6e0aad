package lang

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ProcKind identifies the role of a [Procedure] within its unit.
type ProcKind int

const (
	ProcEntry ProcKind = iota // entry
	ProcDef                   // def
	ProcBlock                 // block
)

// String returns the name of the procedure kind.
func (k ProcKind) String() string {
	switch k {
	case ProcEntry:
		return "entry"
	case ProcDef:
		return "def"
	case ProcBlock:
		return "block"
	default:
		return "unknown"
	}
}

// EntryName is the name of the procedure that renders a unit's top-level
// content.
const EntryName = "*entry"

// Op codes recorded in a procedure listing.
const (
	OpWrite  = "write"
	OpSplice = "splice"
	OpYield  = "yield"
	OpCall   = "call"
	OpImport = "import"
	OpInline = "inline"
)

// Op is one step of a compiled procedure, recorded for inspection.
type Op struct {
	Code string
	Arg  string
}

// String formats the op as a listing line.
func (o Op) String() string { return o.Code + " " + o.Arg }

// step executes one element of a procedure body.
type step func(w io.Writer, c *Context, f *Frame) error

// Procedure is a compiled render procedure.
type Procedure struct {
	Name     string
	Kind     ProcKind
	Defaults Attributes // literal attributes of a def, captured at compile time
	Ops      []Op

	steps []step
}

// invoke runs the procedure.
func (p *Procedure) invoke(w io.Writer, c *Context, f *Frame) error {
	if err := c.push(p); err != nil {
		return err
	}
	defer c.pop()

	for _, st := range p.steps {
		if err := st(w, c, f); err != nil {
			return err
		}
	}

	return nil
}

// Import is a module import declared by a unit.
type Import struct {
	Module string
	Alias  string
}

// Unit is the compiled form of one template source: a table of render
// procedures plus an entry procedure.
type Unit struct {
	Name     string
	Path     string    // source path, empty for inline templates
	Modified time.Time // source modification time at compile
	Compiled time.Time // when the unit was compiled
	Size     int64     // source size at compile
	Digest   string    // source content digest, set by the repository
	Imports  []Import

	entry   *Procedure
	procs   []*Procedure
	exports map[string]*Procedure
}

// Render renders the unit's top-level content to w with a fresh root frame.
func (u *Unit) Render(w io.Writer, c *Context) error {
	return u.entry.invoke(w, c.enter(u), NewFrame(nil, nil))
}

// Call renders the top-level definition name with the given blocks and
// attributes supplied as if by a command.
func (u *Unit) Call(
	w io.Writer,
	c *Context,
	name string,
	blocks map[string]Renderer,
	attrs Attributes,
) error {
	p, ok := u.Procedure(name)
	if !ok {
		return ErrUndefinedCommand.
			Wrap(errors.New(strconv.Quote(name))).
			With(
				slog.String("command", name),
				slog.String("unit", u.Name),
			)
	}

	return p.invoke(w, c.enter(u), NewFrame(blocks, attrs))
}

// Procedure returns the top-level definition with the given name.
func (u *Unit) Procedure(name string) (*Procedure, bool) {
	p, ok := u.exports[name]

	return p, ok
}

// Entry returns the entry procedure.
func (u *Unit) Entry() *Procedure { return u.entry }

// Procedures returns an iterator over every procedure of the unit in
// compilation order, entry first.
func (u *Unit) Procedures() iter.Seq[*Procedure] {
	return func(yield func(*Procedure) bool) {
		for _, p := range u.procs {
			if !yield(p) {
				return
			}
		}
	}
}

// Defs returns the names of the top-level definitions in compilation order.
func (u *Unit) Defs() []string {
	var names []string

	for _, p := range u.procs {
		if p.Kind == ProcDef && !strings.Contains(p.Name, "/") {
			names = append(names, p.Name)
		}
	}

	return names
}

// Yields returns the block names yielded by the top-level definition name in
// order of first appearance, including yields inside the blocks it passes to
// commands. Yields of nested definitions are not included.
func (u *Unit) Yields(name string) []string {
	var (
		names  []string
		nested []string
	)

	for _, p := range u.procs {
		inner, ok := strings.CutPrefix(p.Name, name+"/")

		switch {
		case p.Name == name:
		case !ok:
			continue
		case p.Kind == ProcDef:
			nested = append(nested, inner+"/")

			continue
		case slices.ContainsFunc(nested, func(pre string) bool {
			return strings.HasPrefix(inner, pre)
		}):
			continue
		}

		for _, op := range p.Ops {
			if op.Code == OpYield && !slices.Contains(names, op.Arg) {
				names = append(names, op.Arg)
			}
		}
	}

	return names
}

// importOf returns the import declared with alias.
func (u *Unit) importOf(alias string) (Import, bool) {
	for _, imp := range u.Imports {
		if imp.Alias == alias {
			return imp, true
		}
	}

	return Import{}, false
}

// Listing writes a human-readable listing of every procedure to w.
func (u *Unit) Listing(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "unit %s\n", u.Name); err != nil {
		return err
	}

	for _, imp := range u.Imports {
		if _, err := fmt.Fprintf(w, "import %s as %s\n", imp.Module, imp.Alias); err != nil {
			return err
		}
	}

	for _, p := range u.procs {
		header := p.Kind.String() + " " + p.Name
		if len(p.Defaults) > 0 {
			header += " defaults" + p.Defaults.String()
		}

		if _, err := fmt.Fprintln(w, header); err != nil {
			return err
		}

		for _, op := range p.Ops {
			if _, err := fmt.Fprintln(w, "  "+op.String()); err != nil {
				return err
			}
		}
	}

	return nil
}

// quoteSnippet abbreviates literal text for a listing.
func quoteSnippet(s string) string {
	const limit = 48

	if r := []rune(s); len(r) > limit {
		s = string(r[:limit]) + "..."
	}

	return strconv.Quote(s)
}
