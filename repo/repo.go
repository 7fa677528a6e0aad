package repo

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ardnew/htmlpp/artifact"
	"github.com/ardnew/htmlpp/lang"
)

// ErrPersist is returned when a compiled unit cannot be persisted.
var ErrPersist = lang.NewError("failed to persist compiled unit")

// racyWindow bounds the coarseness of file modification times. A source
// modified within racyWindow of its compile may change again without its
// modification time moving, so its content is compared instead.
const racyWindow = 2 * time.Second

// Sink persists compiled units.
type Sink interface {
	// Persist stores the artifact and returns its location.
	Persist(ctx context.Context, a *artifact.Artifact) (string, error)
	// Load returns the stored artifact of the module name.
	Load(ctx context.Context, name string) (*artifact.Artifact, error)
}

// Repository resolves dotted module names to compiled units.
//
// The name "a.b.c" refers to the file "a/b/c.pre.html" in the first search
// directory that contains it. Compiled units are cached in memory and, when
// a [Sink] is configured, persisted. A cached or persisted unit is reused
// while its source keeps the path, modification time and size recorded at
// compile, and its content digest when those alone are not conclusive.
//
// A Repository is safe for concurrent use. Concurrent resolves of one name
// share a single compile.
type Repository struct {
	dirs   []string
	opts   options
	mu     sync.RWMutex
	units  map[string]*lang.Unit
	group  singleflight.Group
	gensym lang.Gensym
}

// New returns a repository searching dirs in order.
func New(dirs []string, opts ...Option) *Repository {
	return &Repository{
		dirs:  slices.Clone(dirs),
		opts:  makeOptions(opts...),
		units: make(map[string]*lang.Unit),
	}
}

// Dirs returns the search directories.
func (r *Repository) Dirs() []string { return slices.Clone(r.dirs) }

// Resolve returns the compiled unit of the module name, compiling it if it is
// not cached or its source changed since it was compiled.
func (r *Repository) Resolve(ctx context.Context, name string) (*lang.Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if unit, err := r.cached(ctx, name); unit != nil || err != nil {
		return unit, err
	}

	v, err, shared := r.group.Do(name, func() (any, error) {
		if unit, err := r.cached(ctx, name); unit != nil || err != nil {
			return unit, err
		}

		return r.load(ctx, name)
	})
	if err != nil {
		return nil, err
	}

	r.opts.logger.TraceContext(
		ctx,
		"resolve module",
		slog.String("module", name),
		slog.Bool("shared", shared),
	)

	return v.(*lang.Unit), nil
}

// cached returns the cached unit of name if it is still valid.
// It returns a nil unit and nil error when name must be loaded.
func (r *Repository) cached(ctx context.Context, name string) (*lang.Unit, error) {
	r.mu.RLock()
	unit, ok := r.units[name]
	r.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	if !r.opts.validate {
		return unit, nil
	}

	path, info, err := r.locate(name)
	if err != nil {
		r.evict(name)

		return nil, err
	}

	if r.fresh(unitStamp(unit), path, info) {
		return unit, nil
	}

	r.opts.logger.DebugContext(
		ctx,
		"stale module",
		slog.String("module", name),
		slog.String("path", path),
		slog.Time("compiled", unit.Compiled),
		slog.Time("modified", info.ModTime()),
	)

	return nil, nil
}

// load compiles the module name and caches the result.
func (r *Repository) load(ctx context.Context, name string) (*lang.Unit, error) {
	path, info, err := r.locate(name)
	if err != nil {
		return nil, err
	}

	if unit := r.restore(ctx, name, path, info); unit != nil {
		r.store(name, unit)

		return unit, nil
	}

	source, err := r.read(path)
	if err != nil {
		return nil, err
	}

	unit, err := lang.CompileString(ctx, name, string(source), r.opts.langOptions()...)
	if err != nil {
		return nil, err
	}

	unit.Path = path
	unit.Modified = info.ModTime()
	unit.Size = info.Size()
	unit.Digest = artifact.Digest(source)

	r.opts.logger.DebugContext(
		ctx,
		"compiled module",
		slog.String("module", name),
		slog.String("path", path),
		slog.Int("source_bytes", len(source)),
	)

	if r.opts.sink != nil {
		loc, err := r.opts.sink.Persist(ctx, artifact.FromUnit(unit, source))
		if err != nil {
			return nil, ErrPersist.Wrap(err).With(slog.String("module", name))
		}

		r.opts.logger.TraceContext(
			ctx,
			"persisted module",
			slog.String("module", name),
			slog.String("location", loc),
		)
	}

	r.store(name, unit)

	return unit, nil
}

// restore rebuilds a unit from a persisted artifact that still matches its
// source. It returns nil when no usable artifact exists.
func (r *Repository) restore(
	ctx context.Context,
	name, path string,
	info fs.FileInfo,
) *lang.Unit {
	if r.opts.sink == nil {
		return nil
	}

	a, err := r.opts.sink.Load(ctx, name)
	if err != nil || !r.fresh(artifactStamp(a), path, info) {
		return nil
	}

	unit, err := a.Unit(ctx, r.opts.langOptions()...)
	if err != nil {
		return nil
	}

	unit.Compiled = a.Compiled

	r.opts.logger.DebugContext(
		ctx,
		"restored module",
		slog.String("module", name),
		slog.String("digest", a.Digest),
	)

	return unit
}

// stamp records the state of a source file when it was compiled.
type stamp struct {
	path     string
	modified time.Time
	compiled time.Time
	size     int64
	digest   string
}

func unitStamp(u *lang.Unit) stamp {
	return stamp{u.Path, u.Modified, u.Compiled, u.Size, u.Digest}
}

func artifactStamp(a *artifact.Artifact) stamp {
	return stamp{a.Path, a.Modified, a.Compiled, a.Size, a.Digest}
}

// fresh reports whether the source at path, described by info, is unchanged
// since the compile recorded by s.
func (r *Repository) fresh(s stamp, path string, info fs.FileInfo) bool {
	if s.path != path || s.size != info.Size() || !s.modified.Equal(info.ModTime()) {
		return false
	}

	if s.compiled.Sub(s.modified) > racyWindow {
		return true
	}

	source, err := r.read(path)

	return err == nil && artifact.Digest(source) == s.digest
}

// locate finds the source file of the module name in the search path.
func (r *Repository) locate(name string) (string, fs.FileInfo, error) {
	rel := strings.ReplaceAll(name, ".", "/") + r.opts.ext

	for _, dir := range r.dirs {
		path := r.opts.source.Join(dir, rel)

		info, err := r.opts.source.Stat(path)
		if err == nil && !info.IsDir() {
			return path, info, nil
		}
	}

	return "", nil, lang.ErrModuleNotFound.With(
		slog.String("module", name),
		slog.String("file", rel),
		slog.Any("search_path", r.dirs),
	)
}

// ReadModule returns the path and template text of the module name.
func (r *Repository) ReadModule(name string) (string, []byte, error) {
	path, _, err := r.locate(name)
	if err != nil {
		return "", nil, err
	}

	data, err := r.read(path)
	if err != nil {
		return "", nil, err
	}

	return path, data, nil
}

func (r *Repository) read(path string) ([]byte, error) {
	rc, err := r.opts.source.Open(path)
	if err != nil {
		return nil, lang.ErrReadSource.Wrap(err).With(slog.String("path", path))
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, lang.ErrReadSource.Wrap(err).With(slog.String("path", path))
	}

	return data, nil
}

func (r *Repository) store(name string, unit *lang.Unit) {
	r.mu.Lock()
	r.units[name] = unit
	r.mu.Unlock()
}

func (r *Repository) evict(name string) {
	r.mu.Lock()
	delete(r.units, name)
	r.mu.Unlock()
}

// Clear discards every cached unit.
func (r *Repository) Clear() {
	r.mu.Lock()
	clear(r.units)
	r.mu.Unlock()
}

// Names returns the names of the cached units, sorted.
func (r *Repository) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.units))
}

// Units returns a snapshot of the cached units keyed by name.
func (r *Repository) Units() map[string]*lang.Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return maps.Clone(r.units)
}

// NewContext returns a render context that resolves imports through r.
func (r *Repository) NewContext(ctx context.Context) *lang.Context {
	return lang.NewContext(ctx, r, r.opts.langOptions()...)
}

// LangOptions returns the options the repository compiles and renders with.
func (r *Repository) LangOptions() []lang.Option { return r.opts.langOptions() }

// Prefix returns the tag marker of the templates compiled by r.
func (r *Repository) Prefix() string { return lang.TagPrefix(r.opts.lang...) }

// Compile compiles template text as the unit name. The unit is neither cached
// nor persisted.
func (r *Repository) Compile(ctx context.Context, name, text string) (*lang.Unit, error) {
	return lang.CompileString(ctx, name, text, r.opts.langOptions()...)
}

// CompileInline compiles template text under a generated name. The unit is
// neither cached nor persisted.
func (r *Repository) CompileInline(ctx context.Context, text string) (*lang.Unit, error) {
	return r.Compile(ctx, r.gensym.Next(inlinePrefix), text)
}

// ModuleName returns the dotted module name of the source file at path if it
// lies in a search directory and carries the source extension.
func (r *Repository) ModuleName(path string) (string, bool) {
	rest, ok := strings.CutSuffix(filepath.ToSlash(filepath.Clean(path)), r.opts.ext)
	if !ok {
		return "", false
	}

	for _, dir := range r.dirs {
		prefix := filepath.ToSlash(filepath.Clean(dir)) + "/"
		if prefix == "./" {
			prefix = ""
		}

		rel, ok := strings.CutPrefix(rest, prefix)
		if !ok || rel == "" || strings.Contains(rel, ".") {
			continue
		}

		return strings.ReplaceAll(rel, "/", "."), true
	}

	return "", false
}

// Render compiles and renders template text. Imports are resolved through r.
// No output is returned when rendering fails.
func (r *Repository) Render(ctx context.Context, text string) (string, error) {
	unit, err := r.CompileInline(ctx, text)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if err := unit.Render(&b, r.NewContext(ctx)); err != nil {
		return "", err
	}

	return b.String(), nil
}

// RenderModule renders the module name to w. Nothing is written to w when
// rendering fails.
func (r *Repository) RenderModule(ctx context.Context, w io.Writer, name string) error {
	unit, err := r.Resolve(ctx, name)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := unit.Render(&buf, r.NewContext(ctx)); err != nil {
		return err
	}

	_, err = buf.WriteTo(w)

	return err
}
