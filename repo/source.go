package repo

import (
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/klauspost/readahead"
)

// Source provides read access to template files.
type Source interface {
	// Open opens the file at path for reading.
	Open(path string) (io.ReadCloser, error)
	// Stat returns the file info of path.
	Stat(path string) (fs.FileInfo, error)
	// Join joins a search directory and a slash-separated relative name.
	Join(dir, name string) string
}

// OSSource reads template files from the operating system's file system.
// Reads are performed asynchronously ahead of the consumer.
type OSSource struct{}

// Open implements [Source].
func (OSSource) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	return readahead.NewReadCloser(f), nil
}

// Stat implements [Source].
func (OSSource) Stat(path string) (fs.FileInfo, error) { return os.Stat(path) }

// Join implements [Source].
func (OSSource) Join(dir, name string) string {
	return filepath.Join(dir, filepath.FromSlash(name))
}

// FSSource reads template files from an [fs.FS].
type FSSource struct {
	FS fs.FS
}

// Open implements [Source].
func (s FSSource) Open(path string) (io.ReadCloser, error) { return s.FS.Open(path) }

// Stat implements [Source].
func (s FSSource) Stat(path string) (fs.FileInfo, error) { return fs.Stat(s.FS, path) }

// Join implements [Source].
func (FSSource) Join(dir, name string) string { return path.Join(dir, name) }
