package artifact

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

// PackageMarker is the base name of the artifact written into every
// intermediate directory of a dotted module name.
const PackageMarker = "__package__"

// fileExt is the extension of artifact files.
const fileExt = ".yaml"

// defaultDirMode is the permission mode of created directories.
const defaultDirMode os.FileMode = 0o755

// FileSink persists artifacts as YAML files under a root directory.
// The module name "a.b.c" is stored at "<root>/a/b/c.yaml", and directories
// "<root>/a" and "<root>/a/b" each receive a package marker.
//
// Files are replaced atomically, so a concurrent reader never observes a
// partially written artifact.
type FileSink struct {
	root string
	opts options
}

// NewFileSink returns a sink rooted at dir. An empty dir yields a sink that
// persists nothing.
func NewFileSink(dir string, opts ...Option) *FileSink {
	return &FileSink{root: dir, opts: makeOptions(opts...)}
}

// Root returns the output directory.
func (s *FileSink) Root() string { return s.root }

// Location returns the path of the artifact for the module name.
func (s *FileSink) Location(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(strings.ReplaceAll(name, ".", "/"))+fileExt)
}

// Persist writes the artifact and any missing package markers, returning the
// artifact path. An existing artifact recording the same source (path,
// modification time, size and digest) is left untouched.
func (s *FileSink) Persist(ctx context.Context, a *Artifact) (string, error) {
	if s.root == "" {
		return "", nil
	}

	path := s.Location(a.Name)

	if err := s.markPackages(ctx, a.Name); err != nil {
		return "", err
	}

	if prev, err := s.Load(ctx, a.Name); err == nil && prev.sameSource(a) {
		s.opts.logger.TraceContext(
			ctx,
			"artifact unchanged",
			slog.String("module", a.Name),
			slog.String("path", path),
		)

		return path, nil
	}

	data, err := marshal(ctx, a)
	if err != nil {
		return "", err
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return "", ErrStore.Wrap(err).With(slog.String("path", path))
	}

	s.opts.logger.DebugContext(
		ctx,
		"artifact written",
		slog.String("module", a.Name),
		slog.String("path", path),
		slog.String("digest", a.Digest),
	)

	return path, nil
}

// markPackages creates the directories of a dotted module name, writing a
// package marker into each one that lacks it.
func (s *FileSink) markPackages(ctx context.Context, name string) error {
	segments := strings.Split(name, ".")
	dir := s.root

	if err := os.MkdirAll(dir, defaultDirMode); err != nil {
		return ErrStore.Wrap(err).With(slog.String("path", dir))
	}

	for i, seg := range segments[:len(segments)-1] {
		dir = filepath.Join(dir, seg)

		if err := os.MkdirAll(dir, defaultDirMode); err != nil {
			return ErrStore.Wrap(err).With(slog.String("path", dir))
		}

		marker := filepath.Join(dir, PackageMarker+fileExt)

		if _, err := os.Stat(marker); err == nil {
			continue
		}

		pkg := strings.Join(segments[:i+1], ".")
		data := []byte("package: " + pkg + "\n")

		if err := atomic.WriteFile(marker, bytes.NewReader(data)); err != nil {
			return ErrStore.Wrap(err).With(slog.String("path", marker))
		}

		s.opts.logger.TraceContext(
			ctx,
			"package marker written",
			slog.String("package", pkg),
			slog.String("path", marker),
		)
	}

	return nil
}

// Load reads the artifact of the module name.
func (s *FileSink) Load(ctx context.Context, name string) (*Artifact, error) {
	if s.root == "" {
		return nil, ErrNotFound.With(slog.String("module", name))
	}

	path := s.Location(name)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound.Wrap(err).With(slog.String("module", name))
		}

		return nil, ErrDecode.Wrap(err).With(slog.String("path", path))
	}
	defer f.Close()

	return Decode(ctx, f)
}
