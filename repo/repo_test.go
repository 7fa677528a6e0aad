package repo

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/ardnew/htmlpp/artifact"
	"github.com/ardnew/htmlpp/lang"
)

// past is a modification time earlier than any compile in these tests.
var past = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func file(text string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(text), ModTime: past}
}

// countingSource counts the files opened through it.
type countingSource struct {
	Source
	opens atomic.Int64
}

func (s *countingSource) Open(path string) (io.ReadCloser, error) {
	s.opens.Add(1)

	return s.Source.Open(path)
}

func newRepo(fsys fstest.MapFS, opts ...Option) *Repository {
	return New(
		[]string{"lib"},
		append([]Option{WithSource(FSSource{FS: fsys})}, opts...)...,
	)
}

func TestRepository_Render(t *testing.T) {
	fsys := fstest.MapFS{
		"lib/alpha.pre.html": file(`<@def name="one"><div class="one"><@yield/></div></@def>`),
		"lib/beta.pre.html": file(`<@import module="alpha"/>
<@def name="two"><@alpha:one><div class="two"><@yield/></div></@alpha:one></@def>`),
		"lib/ui/box.pre.html": file(`<@def name="box" class="box"><section><@yield/></section></@def>`),
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "composition across modules",
			input: `<@import module="beta"/><@beta:two>hmm</@beta:two>`,
			want:  `<div class="one"><div class="two">hmm</div></div>`,
		},
		{
			name:  "dotted module",
			input: `<@import module="ui.box" alias="b"/><@b:box id="x">y</@b:box>`,
			want:  `<section class="box" id="x">y</section>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newRepo(fsys).Render(context.Background(), tt.input)
			if err != nil {
				t.Fatalf("Render() error: %v", err)
			}

			if got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRepository_SearchOrder(t *testing.T) {
	fsys := fstest.MapFS{
		"a/x.pre.html": file("A"),
		"b/x.pre.html": file("B"),
		"b/y.pre.html": file("Y"),
	}

	r := New([]string{"a", "b"}, WithSource(FSSource{FS: fsys}))

	for name, want := range map[string]string{"x": "A", "y": "Y"} {
		var b strings.Builder
		if err := r.RenderModule(context.Background(), &b, name); err != nil {
			t.Fatalf("RenderModule(%q) error: %v", name, err)
		}

		if b.String() != want {
			t.Errorf("RenderModule(%q) = %q, want %q", name, b.String(), want)
		}
	}

	unit, err := r.Resolve(context.Background(), "x")
	if err != nil {
		t.Fatal(err)
	}

	if unit.Path != "a/x.pre.html" || !unit.Modified.Equal(past) {
		t.Errorf("unit source = %q %v", unit.Path, unit.Modified)
	}
}

func TestRepository_NotFound(t *testing.T) {
	r := newRepo(fstest.MapFS{"lib/ui": &fstest.MapFile{Mode: fs.ModeDir}})

	for _, name := range []string{"nope", "ui"} {
		_, err := r.Resolve(context.Background(), name)
		if !errors.Is(err, lang.ErrModuleNotFound) {
			t.Errorf("Resolve(%q) error = %v, want %v", name, err, lang.ErrModuleNotFound)
		}
	}
}

func TestRepository_Cache(t *testing.T) {
	src := &countingSource{Source: FSSource{FS: fstest.MapFS{"lib/m.pre.html": file("m")}}}
	r := New([]string{"lib"}, WithSource(src))

	first, err := r.Resolve(context.Background(), "m")
	if err != nil {
		t.Fatal(err)
	}

	second, err := r.Resolve(context.Background(), "m")
	if err != nil {
		t.Fatal(err)
	}

	if first != second {
		t.Error("second resolve did not return the cached unit")
	}

	if n := src.opens.Load(); n != 1 {
		t.Errorf("source opened %d times, want 1", n)
	}

	if got := r.Names(); !slices.Equal(got, []string{"m"}) {
		t.Errorf("Names() = %q", got)
	}

	if got := r.Units(); got["m"] != first {
		t.Errorf("Units() = %v", got)
	}

	r.Clear()

	if len(r.Names()) != 0 {
		t.Errorf("Names() after Clear = %q", r.Names())
	}
}

func TestRepository_Staleness(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		initial time.Time
		updated *fstest.MapFile
	}{
		{
			name:    "later modification",
			initial: past,
			updated: &fstest.MapFile{Data: []byte("new"), ModTime: now.Add(time.Hour)},
		},
		{
			name:    "earlier modification",
			initial: past,
			updated: &fstest.MapFile{Data: []byte("new"), ModTime: past.Add(-time.Hour)},
		},
		{
			name:    "size change",
			initial: past,
			updated: &fstest.MapFile{Data: []byte("newer"), ModTime: past},
		},
		{
			name:    "same modification time near compile",
			initial: now,
			updated: &fstest.MapFile{Data: []byte("new"), ModTime: now},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := fstest.MapFS{
				"lib/m.pre.html": &fstest.MapFile{Data: []byte("old"), ModTime: tt.initial},
			}
			r := newRepo(fsys)
			ctx := context.Background()

			var b strings.Builder
			if err := r.RenderModule(ctx, &b, "m"); err != nil {
				t.Fatal(err)
			}

			if b.String() != "old" {
				t.Fatalf("first render = %q", b.String())
			}

			fsys["lib/m.pre.html"] = tt.updated

			b.Reset()

			if err := r.RenderModule(ctx, &b, "m"); err != nil {
				t.Fatal(err)
			}

			if want := string(tt.updated.Data); b.String() != want {
				t.Errorf("render after change = %q, want %q", b.String(), want)
			}
		})
	}
}

func TestRepository_StalenessOS(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.pre.html")
	r := New([]string{dir})
	ctx := context.Background()

	for i := range 50 {
		for _, text := range []string{"old", "new"} {
			if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
				t.Fatal(err)
			}

			var b strings.Builder
			if err := r.RenderModule(ctx, &b, "m"); err != nil {
				t.Fatal(err)
			}

			if b.String() != text {
				t.Fatalf("iteration %d: render = %q, want %q", i, b.String(), text)
			}
		}
	}
}

func TestRepository_NoValidate(t *testing.T) {
	fsys := fstest.MapFS{"lib/m.pre.html": file("old")}
	r := newRepo(fsys, WithValidate(false))
	ctx := context.Background()

	first, err := r.Resolve(ctx, "m")
	if err != nil {
		t.Fatal(err)
	}

	fsys["lib/m.pre.html"] = &fstest.MapFile{
		Data:    []byte("new"),
		ModTime: time.Now().Add(time.Hour),
	}

	second, err := r.Resolve(ctx, "m")
	if err != nil {
		t.Fatal(err)
	}

	if first != second {
		t.Error("unit recompiled with validation disabled")
	}
}

func TestRepository_RemovedSource(t *testing.T) {
	fsys := fstest.MapFS{"lib/m.pre.html": file("m")}
	r := newRepo(fsys)
	ctx := context.Background()

	if _, err := r.Resolve(ctx, "m"); err != nil {
		t.Fatal(err)
	}

	delete(fsys, "lib/m.pre.html")

	_, err := r.Resolve(ctx, "m")
	if !errors.Is(err, lang.ErrModuleNotFound) {
		t.Errorf("Resolve() error = %v, want %v", err, lang.ErrModuleNotFound)
	}

	if len(r.Names()) != 0 {
		t.Errorf("stale unit still cached: %q", r.Names())
	}
}

func TestRepository_ConcurrentResolve(t *testing.T) {
	src := &countingSource{Source: FSSource{FS: fstest.MapFS{"lib/m.pre.html": file("m")}}}
	r := New([]string{"lib"}, WithSource(src))

	const n = 32

	units := make([]*lang.Unit, n)

	var wg sync.WaitGroup

	for i := range n {
		wg.Add(1)

		go func() {
			defer wg.Done()

			unit, err := r.Resolve(context.Background(), "m")
			if err != nil {
				t.Errorf("Resolve() error: %v", err)

				return
			}

			units[i] = unit
		}()
	}

	wg.Wait()

	for i, unit := range units {
		if unit != units[0] {
			t.Errorf("goroutine %d got a different unit", i)
		}
	}

	if got := src.opens.Load(); got != 1 {
		t.Errorf("source opened %d times, want 1", got)
	}
}

func TestRepository_CompileInline(t *testing.T) {
	r := newRepo(fstest.MapFS{})
	ctx := context.Background()

	var names []string

	for range 2 {
		unit, err := r.CompileInline(ctx, "x")
		if err != nil {
			t.Fatal(err)
		}

		names = append(names, unit.Name)
	}

	if want := []string{"_htmlpp_internal0", "_htmlpp_internal1"}; !slices.Equal(names, want) {
		t.Errorf("names = %q, want %q", names, want)
	}

	if len(r.Names()) != 0 {
		t.Errorf("inline units cached: %q", r.Names())
	}
}

func TestRepository_RenderErrors(t *testing.T) {
	r := newRepo(fstest.MapFS{
		"lib/bad.pre.html": file(`<@def name="a">`),
	})
	ctx := context.Background()

	got, err := r.Render(ctx, `partial<@yield name="missing"/>`)
	if !errors.Is(err, lang.ErrBlockNotRegistered) {
		t.Errorf("Render() error = %v, want %v", err, lang.ErrBlockNotRegistered)
	}

	if got != "" {
		t.Errorf("Render() returned partial output %q", got)
	}

	var b strings.Builder

	err = r.RenderModule(ctx, &b, "bad")
	if !errors.Is(err, lang.ErrUnmatchedTag) {
		t.Errorf("RenderModule() error = %v, want %v", err, lang.ErrUnmatchedTag)
	}

	if b.Len() != 0 {
		t.Errorf("RenderModule() wrote %q on error", b.String())
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	if _, err := r.Resolve(cancelled, "bad"); !errors.Is(err, context.Canceled) {
		t.Errorf("Resolve() error = %v, want %v", err, context.Canceled)
	}
}

func TestRepository_LangOptions(t *testing.T) {
	r := newRepo(
		fstest.MapFS{"lib/m.pre.html": file(`<pp:define name="a">A</pp:define>`)},
		WithLangOptions(lang.WithPrefix("pp:"), lang.WithDefAlias("define")),
		WithExt(".pre.html"),
	)

	got, err := r.Render(context.Background(), `<pp:m:a/>`)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	if got != "A" {
		t.Errorf("Render() = %q, want A", got)
	}
}

func TestRepository_FileSink(t *testing.T) {
	out := t.TempDir()
	fsys := fstest.MapFS{"lib/ui/box.pre.html": file(`<@def name="box"><b><@yield/></b></@def>`)}
	ctx := context.Background()

	r := newRepo(fsys, WithSink(artifact.NewFileSink(out)))
	if _, err := r.Resolve(ctx, "ui.box"); err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	for _, path := range []string{
		filepath.Join(out, "ui", "box.yaml"),
		filepath.Join(out, "ui", artifact.PackageMarker+".yaml"),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("missing artifact: %v", err)
		}
	}

	// A new repository restores the unit from its artifact.
	src := &countingSource{Source: FSSource{FS: fsys}}
	restored := New(
		[]string{"lib"},
		WithSource(src),
		WithSink(artifact.NewFileSink(out)),
	)

	got, err := restored.Render(ctx, `<@ui.box:box>x</@ui.box:box>`)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	if got != "<b>x</b>" {
		t.Errorf("Render() = %q", got)
	}

	if n := src.opens.Load(); n != 0 {
		t.Errorf("source opened %d times, want 0", n)
	}
}

func TestRepository_FileSinkTouched(t *testing.T) {
	out := t.TempDir()
	fsys := fstest.MapFS{"lib/m.pre.html": file("m")}
	ctx := context.Background()

	if _, err := newRepo(fsys, WithSink(artifact.NewFileSink(out))).Resolve(ctx, "m"); err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	// Touch the source without changing its content.
	fsys["lib/m.pre.html"] = &fstest.MapFile{Data: []byte("m"), ModTime: past.Add(time.Hour)}

	for _, wantOpens := range []int64{1, 0} {
		src := &countingSource{Source: FSSource{FS: fsys}}
		r := New([]string{"lib"}, WithSource(src), WithSink(artifact.NewFileSink(out)))

		if _, err := r.Resolve(ctx, "m"); err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}

		if n := src.opens.Load(); n != wantOpens {
			t.Errorf("source opened %d times, want %d", n, wantOpens)
		}
	}

	a, err := artifact.NewFileSink(out).Load(ctx, "m")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if !a.Modified.Equal(past.Add(time.Hour)) {
		t.Errorf("artifact modified = %v, want %v", a.Modified, past.Add(time.Hour))
	}
}

func TestRepository_DBSink(t *testing.T) {
	ctx := context.Background()

	sink, err := artifact.OpenDB(ctx, ":memory:")
	if err != nil {
		t.Fatalf("OpenDB() error: %v", err)
	}
	defer sink.Close()

	r := newRepo(
		fstest.MapFS{"lib/m.pre.html": file("m")},
		WithSink(sink),
	)

	if _, err := r.Resolve(ctx, "m"); err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	a, err := sink.Load(ctx, "m")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if a.Source != "m" || a.Path != "lib/m.pre.html" {
		t.Errorf("artifact = %+v", a)
	}
}

type failingSink struct{}

func (failingSink) Persist(context.Context, *artifact.Artifact) (string, error) {
	return "", errors.New("disk full")
}

func (failingSink) Load(context.Context, string) (*artifact.Artifact, error) {
	return nil, artifact.ErrNotFound
}

func TestRepository_PersistError(t *testing.T) {
	r := newRepo(fstest.MapFS{"lib/m.pre.html": file("m")}, WithSink(failingSink{}))

	_, err := r.Resolve(context.Background(), "m")
	if !errors.Is(err, ErrPersist) {
		t.Errorf("Resolve() error = %v, want %v", err, ErrPersist)
	}

	if len(r.Names()) != 0 {
		t.Errorf("unit cached after persist failure: %q", r.Names())
	}
}

func TestOSSource(t *testing.T) {
	dir := t.TempDir()

	if err := os.MkdirAll(filepath.Join(dir, "ui"), 0o755); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "ui", "box.pre.html")
	if err := os.WriteFile(path, []byte(`<@def name="box">B</@def>`), 0o644); err != nil {
		t.Fatal(err)
	}

	r := New([]string{dir})

	got, err := r.Render(context.Background(), `<@ui.box:box/>`)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	if got != "B" {
		t.Errorf("Render() = %q, want B", got)
	}

	if joined := (OSSource{}).Join(dir, "ui/box.pre.html"); joined != path {
		t.Errorf("Join() = %q, want %q", joined, path)
	}
}

func TestRepository_ModuleName(t *testing.T) {
	r := New([]string{"lib", "."})

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"lib/ui/box.pre.html", "ui.box", true},
		{"lib/./alpha.pre.html", "alpha", true},
		{"page.pre.html", "page", true},
		{"lib/ui/box.html", "", false},
		{"lib/v1.2/box.pre.html", "", false},
	}

	for _, tt := range tests {
		got, ok := r.ModuleName(tt.path)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ModuleName(%q) = %q, %v, want %q, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRepository_ReadModule(t *testing.T) {
	r := newRepo(fstest.MapFS{"lib/ui/box.pre.html": file("box")}, WithLangOptions(lang.WithPrefix("pp:")))

	path, text, err := r.ReadModule("ui.box")
	if err != nil {
		t.Fatalf("ReadModule() error: %v", err)
	}

	if path != "lib/ui/box.pre.html" || string(text) != "box" {
		t.Errorf("ReadModule() = (%q, %q), want (%q, %q)", path, text, "lib/ui/box.pre.html", "box")
	}

	if _, _, err := r.ReadModule("ui.none"); !errors.Is(err, lang.ErrModuleNotFound) {
		t.Errorf("ReadModule() error = %v, want %v", err, lang.ErrModuleNotFound)
	}

	if got := r.Prefix(); got != "pp:" {
		t.Errorf("Prefix() = %q, want %q", got, "pp:")
	}

	if got := newRepo(nil).Prefix(); got != lang.DefaultPrefix {
		t.Errorf("Prefix() = %q, want %q", got, lang.DefaultPrefix)
	}
}
