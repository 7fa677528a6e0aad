package cmd

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/ardnew/htmlpp/repo"
)

// ContextKey is used to store a [kong.Context] value in [context.Context].
type contextKey struct{}

// WithContext returns a new context.Context containing the given kong.Context.
func WithContext(ctx context.Context, ktx *kong.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ktx)
}

func kongContextFrom(ctx context.Context) *kong.Context {
	ktx, ok := ctx.Value(contextKey{}).(*kong.Context)
	if !ok || ktx == nil {
		return nil
	}

	return ktx
}

type (
	outputKey struct{}
	inputKey  struct{}
)

// WithOutput returns a new context.Context whose commands write to w instead
// of os.Stdout.
func WithOutput(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, outputKey{}, w)
}

func outputFrom(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(outputKey{}).(io.Writer); ok && w != nil {
		return w
	}

	return os.Stdout
}

// WithInput returns a new context.Context whose commands read "-" from r
// instead of os.Stdin.
func WithInput(ctx context.Context, r io.Reader) context.Context {
	return context.WithValue(ctx, inputKey{}, r)
}

func inputFrom(ctx context.Context) io.Reader {
	if r, ok := ctx.Value(inputKey{}).(io.Reader); ok && r != nil {
		return r
	}

	return os.Stdin
}

// stdinSource is the special source indicator for reading from stdin.
const stdinSource = "-"

// source is one template named on the command line: a file, a module in the
// search path, or stdin.
type source struct {
	path   string // file path, empty for stdin and bare module names
	module string // module name when the source is a module
	stdin  bool
}

// name returns the unit name of s.
func (s source) name() string {
	switch {
	case s.module != "":
		return s.module
	case s.stdin:
		return "stdin"
	default:
		return strings.TrimSuffix(filepath.Base(s.path), repo.DefaultExt)
	}
}

// text returns the template text of s.
func (s source) text(ctx context.Context, r *repo.Repository) ([]byte, error) {
	switch {
	case s.stdin:
		return io.ReadAll(inputFrom(ctx))
	case s.path != "":
		return os.ReadFile(s.path)
	default:
		_, data, err := r.ReadModule(s.module)

		return data, err
	}
}

// fileKey uniquely identifies a file by its device and inode numbers.
// This handles deduplication across symlinks, absolute/relative paths, and
// special device files.
type fileKey struct {
	dev uint64
	ino uint64
}

// resolveSources classifies the command-line sources.
//
// Existing files are deduplicated by resolving symlinks and comparing device/
// inode pairs, and a file lying in a search directory of r is named by its
// module. Arguments that are not files are module names. All occurrences of
// "-" are replaced with a single stdin source placed last. No arguments means
// stdin.
func resolveSources(r *repo.Repository, args []string) ([]source, error) {
	if len(args) == 0 {
		args = []string{stdinSource}
	}

	var (
		sources  []source
		hasStdin bool
	)

	seen := make(map[fileKey]struct{})

	for _, arg := range args {
		if arg == stdinSource {
			hasStdin = true

			continue
		}

		src, unique, err := resolveSource(r, arg, seen)
		if err != nil {
			return nil, err
		}

		if unique {
			sources = append(sources, src)
		}
	}

	if hasStdin {
		sources = append(sources, source{stdin: true})
	}

	return sources, nil
}

// resolveSource classifies arg. It reports false if arg is a file already in
// seen.
func resolveSource(
	r *repo.Repository,
	arg string,
	seen map[fileKey]struct{},
) (source, bool, error) {
	info, err := os.Stat(arg)

	switch {
	case errors.Is(err, fs.ErrNotExist) && isModuleName(arg):
		return source{module: arg}, true, nil

	case err != nil:
		return source{}, false, ErrSource.With(slog.String("source", arg)).Wrap(err)

	case info.IsDir():
		return source{}, false, ErrSource.With(slog.String("source", arg)).Wrap(ErrIsDir)
	}

	if key, ok := makeFileKey(info); ok {
		if _, dup := seen[key]; dup {
			return source{}, false, nil
		}

		seen[key] = struct{}{}
	}

	src := source{path: arg}

	if abs, err := filepath.Abs(arg); err == nil {
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			src.path = resolved
		}
	}

	if module, ok := r.ModuleName(arg); ok {
		src.module = module
	}

	return src, true, nil
}

// isModuleName reports whether arg has the form of a dotted module name.
func isModuleName(arg string) bool {
	if arg == "" || strings.ContainsAny(arg, `/\`) {
		return false
	}

	for part := range strings.SplitSeq(arg, ".") {
		if part == "" {
			return false
		}
	}

	return true
}

// makeFileKey creates a fileKey from os.FileInfo.
// Returns false if the underlying Sys() data is not of type *syscall.Stat_t.
func makeFileKey(info os.FileInfo) (key fileKey, ok bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return key, false
	}

	return fileKey{dev: uint64(stat.Dev), ino: stat.Ino}, true
}
