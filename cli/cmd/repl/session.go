package repl

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/ardnew/htmlpp/lang"
	"github.com/ardnew/htmlpp/log"
	"github.com/ardnew/htmlpp/repo"
)

// declaration is a top-level import or definition entered during a session,
// kept as markup so it can be replayed ahead of later input.
type declaration struct {
	kind   lang.Kind
	key    string // import alias or definition name
	module string // imported module
	markup string
}

// Session renders template input against a repository. Imports and
// definitions entered at the top level of one input remain in scope for the
// inputs that follow.
type Session struct {
	repo   *repo.Repository
	prefix string
	logger log.Logger
	decls  []declaration
	local  *lang.Unit // compiled declarations, nil when stale
}

// NewSession returns a session rendering through r.
func NewSession(r *repo.Repository, logger log.Logger) *Session {
	return &Session{repo: r, prefix: r.Prefix(), logger: logger}
}

// Prefix returns the tag marker of the session.
func (s *Session) Prefix() string { return s.prefix }

// Render renders input with the session's declarations in scope. The
// declarations of input are kept only when rendering succeeds.
func (s *Session) Render(ctx context.Context, input string) (string, error) {
	root, err := lang.ParseString(ctx, input, s.repo.LangOptions()...)
	if err != nil {
		return "", err
	}

	declared := s.declarations(ctx, root)

	var text strings.Builder

	for _, d := range s.decls {
		if !slices.ContainsFunc(declared, d.shadowedBy) {
			text.WriteString(d.markup)
		}
	}

	text.WriteString(input)

	out, err := s.repo.Render(ctx, text.String())
	if err != nil {
		return "", err
	}

	for _, d := range declared {
		s.decls = slices.DeleteFunc(s.decls, d.shadowedBy)
		s.decls = append(s.decls, d)
		s.local = nil
	}

	s.logger.TraceContext(
		ctx,
		"session render",
		slog.Int("input_bytes", len(input)),
		slog.Int("declarations", len(s.decls)),
	)

	return out, nil
}

// shadowedBy reports whether other replaces d.
func (d declaration) shadowedBy(other declaration) bool {
	return d.kind == other.kind && d.key == other.key
}

// declarations returns the top-level imports and definitions of root.
func (s *Session) declarations(ctx context.Context, root *lang.Node) []declaration {
	var decls []declaration

	for n := range root.Nodes() {
		d := declaration{kind: n.Kind}

		switch n.Kind {
		case lang.KindImport:
			module, _ := n.Attrs.Get("module")
			d.module = lang.Unquote(module)
			d.key = d.module

			if alias, ok := n.Attrs.Get("alias"); ok {
				d.key = lang.Unquote(alias)
			}

		case lang.KindDef:
			d.key = n.Name

		default:
			continue
		}

		var b strings.Builder
		if err := n.Format(ctx, &b, s.prefix); err != nil {
			continue
		}

		d.markup = b.String()
		decls = append(decls, d)
	}

	return decls
}

// Source returns the markup of every declaration in the session.
func (s *Session) Source() string {
	var b strings.Builder

	for _, d := range s.decls {
		b.WriteString(d.markup)
		b.WriteByte('\n')
	}

	return b.String()
}

// Replace parses source and makes its top-level imports and definitions the
// session's declarations. Other content of source is ignored.
func (s *Session) Replace(ctx context.Context, source string) error {
	root, err := lang.ParseString(ctx, source, s.repo.LangOptions()...)
	if err != nil {
		return err
	}

	decls := s.declarations(ctx, root)

	var text strings.Builder
	for _, d := range decls {
		text.WriteString(d.markup)
	}

	unit, err := s.repo.CompileInline(ctx, text.String())
	if err != nil {
		return err
	}

	s.decls, s.local = decls, unit

	return nil
}

// Len returns the number of declarations in the session.
func (s *Session) Len() int { return len(s.decls) }

// Reset discards every declaration.
func (s *Session) Reset() { s.decls, s.local = nil, nil }

// Imports returns the imports entered in the session in declaration order.
func (s *Session) Imports() []lang.Import {
	var imports []lang.Import

	for _, d := range s.decls {
		if d.kind == lang.KindImport {
			imports = append(imports, lang.Import{Module: d.module, Alias: d.key})
		}
	}

	return imports
}

// Defs returns the names of the definitions entered in the session.
func (s *Session) Defs() []string {
	var names []string

	for _, d := range s.decls {
		if d.kind == lang.KindDef {
			names = append(names, d.key)
		}
	}

	return names
}

// Commands returns every command name callable from the next input: session
// definitions, definitions of imported aliases, and definitions of cached
// modules qualified by module name.
func (s *Session) Commands(ctx context.Context) []string {
	names := s.Defs()

	for _, imp := range s.Imports() {
		unit, err := s.repo.Resolve(ctx, imp.Module)
		if err != nil {
			continue
		}

		for _, def := range unit.Defs() {
			names = append(names, imp.Alias+":"+def)
		}
	}

	for module, unit := range s.repo.Units() {
		for _, def := range unit.Defs() {
			names = append(names, module+":"+def)
		}
	}

	slices.Sort(names)

	return slices.Compact(names)
}

// Procedure returns the procedure a command name refers to.
func (s *Session) Procedure(ctx context.Context, command string) (*lang.Procedure, bool) {
	unit, def, ok := s.unitOf(ctx, command)
	if !ok {
		return nil, false
	}

	return unit.Procedure(def)
}

// Signature returns the default attributes and yielded block names of the
// definition a command name refers to.
func (s *Session) Signature(
	ctx context.Context,
	command string,
) (lang.Attributes, []string, bool) {
	unit, def, ok := s.unitOf(ctx, command)
	if !ok {
		return nil, nil, false
	}

	proc, ok := unit.Procedure(def)
	if !ok || proc.Kind != lang.ProcDef {
		return nil, nil, false
	}

	return proc.Defaults, unit.Yields(def), true
}

// Modules returns the names of the modules cached by the repository.
func (s *Session) Modules() []string { return s.repo.Names() }

// Listing writes the procedure listing of module, or of the session's own
// declarations when module is empty.
func (s *Session) Listing(ctx context.Context, w io.Writer, module string) error {
	if module == "" {
		unit, _, ok := s.unitOf(ctx, "")
		if !ok {
			return ErrNoDeclarations
		}

		return unit.Listing(w)
	}

	unit, err := s.repo.Resolve(ctx, module)
	if err != nil {
		return err
	}

	return unit.Listing(w)
}

// Reserved returns the directive tag names of the session's repository.
func (s *Session) Reserved() []string {
	return lang.ReservedTags(s.repo.LangOptions()...)
}

// unitOf returns the unit defining command and the definition's name within
// it.
func (s *Session) unitOf(ctx context.Context, command string) (*lang.Unit, string, bool) {
	alias, def, qualified := strings.Cut(command, ":")
	if !qualified {
		if s.local == nil {
			unit, err := s.repo.CompileInline(ctx, s.declarationText())
			if err != nil {
				return nil, "", false
			}

			s.local = unit
		}

		return s.local, command, true
	}

	module := alias

	for _, imp := range s.Imports() {
		if imp.Alias == alias {
			module = imp.Module
		}
	}

	unit, err := s.repo.Resolve(ctx, module)
	if err != nil {
		return nil, "", false
	}

	return unit, def, true
}

func (s *Session) declarationText() string {
	var b strings.Builder

	for _, d := range s.decls {
		b.WriteString(d.markup)
	}

	return b.String()
}
