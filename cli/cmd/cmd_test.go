package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ardnew/htmlpp/repo"
)

// writeTree creates the given files under a new temporary directory and
// returns its path.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()

	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}

		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	return root
}

// TestResolveSourcesEmpty tests that no arguments selects stdin.
func TestResolveSourcesEmpty(t *testing.T) {
	r := repo.New(nil)

	sources, err := resolveSources(r, nil)
	if err != nil {
		t.Fatalf("resolveSources() error: %v", err)
	}

	if len(sources) != 1 || !sources[0].stdin {
		t.Errorf("resolveSources(nil) = %+v, want single stdin source", sources)
	}
}

// TestResolveSourcesStdinLast tests that all "-" arguments collapse into one
// stdin source placed after every other source.
func TestResolveSourcesStdinLast(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.pre.html": "a",
		"b.pre.html": "b",
	})

	a := filepath.Join(root, "a.pre.html")
	b := filepath.Join(root, "b.pre.html")

	sources, err := resolveSources(repo.New(nil), []string{"-", a, "-", b})
	if err != nil {
		t.Fatalf("resolveSources() error: %v", err)
	}

	if len(sources) != 3 {
		t.Fatalf("resolveSources() = %d sources, want 3", len(sources))
	}

	if sources[0].path != a || sources[1].path != b || !sources[2].stdin {
		t.Errorf("resolveSources() = %+v, want [a b stdin]", sources)
	}
}

// TestResolveSourcesDuplicates tests deduplication through relative paths and
// symlinks.
func TestResolveSourcesDuplicates(t *testing.T) {
	root := writeTree(t, map[string]string{"page.pre.html": "x"})

	path := filepath.Join(root, "page.pre.html")
	link := filepath.Join(root, "link.pre.html")

	if err := os.Symlink(path, link); err != nil {
		t.Skipf("symlink unsupported: %v", err)
	}

	t.Chdir(root)

	sources, err := resolveSources(repo.New(nil), []string{path, "page.pre.html", link})
	if err != nil {
		t.Fatalf("resolveSources() error: %v", err)
	}

	if len(sources) != 1 {
		t.Errorf("resolveSources() = %+v, want one source", sources)
	}
}

// TestResolveSourcesModules tests classification of module names and files
// in the search path.
func TestResolveSourcesModules(t *testing.T) {
	root := writeTree(t, map[string]string{
		"lib/ui/box.pre.html": "box",
		"page.pre.html":       "page",
	})

	lib := filepath.Join(root, "lib")
	r := repo.New([]string{lib})

	tests := []struct {
		name       string
		arg        string
		wantModule string
		wantPath   bool
		wantErr    error
	}{
		{"module_name", "ui.box", "ui.box", false, nil},
		{"file_in_search_dir", filepath.Join(lib, "ui", "box.pre.html"), "ui.box", true, nil},
		{"file_outside_search_dir", filepath.Join(root, "page.pre.html"), "", true, nil},
		{"directory", lib, "", false, ErrIsDir},
		{"missing_path", filepath.Join(root, "nope.pre.html"), "", false, os.ErrNotExist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sources, err := resolveSources(r, []string{tt.arg})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("resolveSources(%q) error = %v, want %v", tt.arg, err, tt.wantErr)
				}

				return
			}

			if err != nil {
				t.Fatalf("resolveSources(%q) error: %v", tt.arg, err)
			}

			src := sources[0]

			if src.module != tt.wantModule {
				t.Errorf("resolveSources(%q) module = %q, want %q", tt.arg, src.module, tt.wantModule)
			}

			if (src.path != "") != tt.wantPath {
				t.Errorf("resolveSources(%q) path = %q, want path %v", tt.arg, src.path, tt.wantPath)
			}
		})
	}
}

func TestIsModuleName(t *testing.T) {
	tests := []struct {
		arg  string
		want bool
	}{
		{"box", true},
		{"ui.box", true},
		{"", false},
		{"ui..box", false},
		{".box", false},
		{"ui/box", false},
		{`ui\box`, false},
	}

	for _, tt := range tests {
		if got := isModuleName(tt.arg); got != tt.want {
			t.Errorf("isModuleName(%q) = %v, want %v", tt.arg, got, tt.want)
		}
	}
}

// TestSourceText tests reading each kind of source.
func TestSourceText(t *testing.T) {
	root := writeTree(t, map[string]string{
		"lib/ui/box.pre.html": "from module",
		"page.pre.html":       "from file",
	})

	r := repo.New([]string{filepath.Join(root, "lib")})
	ctx := WithInput(context.Background(), strings.NewReader("from stdin"))

	tests := []struct {
		name string
		src  source
		want string
	}{
		{"stdin", source{stdin: true}, "from stdin"},
		{"file", source{path: filepath.Join(root, "page.pre.html")}, "from file"},
		{"module", source{module: "ui.box"}, "from module"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.src.text(ctx, r)
			if err != nil {
				t.Fatalf("text() error: %v", err)
			}

			if string(got) != tt.want {
				t.Errorf("text() = %q, want %q", got, tt.want)
			}
		})
	}

	if got := (source{path: "/x/page.pre.html"}).name(); got != "page" {
		t.Errorf("name() = %q, want %q", got, "page")
	}
}
