package artifact

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/zeebo/xxh3"

	"github.com/ardnew/htmlpp/lang"
)

// Sentinel errors of the artifact sinks.
var (
	ErrNotFound = lang.NewError("artifact not found")
	ErrDecode   = lang.NewError("failed to decode artifact")
	ErrEncode   = lang.NewError("failed to encode artifact")
	ErrStore    = lang.NewError("failed to store artifact")
)

// Artifact is the persisted form of a compiled unit.
//
// Compiled procedures are closures and cannot be stored, so an artifact
// carries the template source along with a listing of the procedures compiled
// from it. [Artifact.Unit] compiles the source again to obtain an executable
// unit.
type Artifact struct {
	Name       string      `json:"name"               yaml:"name"`
	Path       string      `json:"path,omitempty"     yaml:"path,omitempty"`
	Modified   time.Time   `json:"modified"           yaml:"modified"`
	Compiled   time.Time   `json:"compiled"           yaml:"compiled"`
	Size       int64       `json:"size"               yaml:"size"`
	Digest     string      `json:"digest"             yaml:"digest"`
	Imports    []Import    `json:"imports,omitempty"  yaml:"imports,omitempty"`
	Procedures []Procedure `json:"procedures"         yaml:"procedures"`
	Source     string      `json:"source"             yaml:"source"`
}

// Import records a module import declared by the unit.
type Import struct {
	Module string `json:"module" yaml:"module"`
	Alias  string `json:"alias"  yaml:"alias"`
}

// Procedure records one compiled procedure of the unit.
type Procedure struct {
	Name     string   `json:"name"               yaml:"name"`
	Kind     string   `json:"kind"               yaml:"kind"`
	Defaults string   `json:"defaults,omitempty" yaml:"defaults,omitempty"`
	Ops      []string `json:"ops"                yaml:"ops,flow"`
}

// FromUnit returns the artifact of a unit compiled from source.
func FromUnit(unit *lang.Unit, source []byte) *Artifact {
	a := &Artifact{
		Name:     unit.Name,
		Path:     unit.Path,
		Modified: unit.Modified,
		Compiled: unit.Compiled,
		Size:     unit.Size,
		Digest:   Digest(source),
		Source:   string(source),
	}

	for _, imp := range unit.Imports {
		a.Imports = append(a.Imports, Import{Module: imp.Module, Alias: imp.Alias})
	}

	for p := range unit.Procedures() {
		proc := Procedure{
			Name:     p.Name,
			Kind:     p.Kind.String(),
			Defaults: p.Defaults.String(),
			Ops:      make([]string, len(p.Ops)),
		}

		for i, op := range p.Ops {
			proc.Ops[i] = op.String()
		}

		a.Procedures = append(a.Procedures, proc)
	}

	return a
}

// Digest returns the content digest of template source.
func Digest(source []byte) string {
	return strconv.FormatUint(xxh3.Hash(source), 16)
}

func (a *Artifact) sameSource(b *Artifact) bool {
	return a.Digest == b.Digest &&
		a.Path == b.Path &&
		a.Size == b.Size &&
		a.Modified.Equal(b.Modified)
}

// Unit compiles the artifact's source into an executable unit.
func (a *Artifact) Unit(ctx context.Context, opts ...lang.Option) (*lang.Unit, error) {
	unit, err := lang.CompileString(ctx, a.Name, a.Source, opts...)
	if err != nil {
		return nil, err
	}

	unit.Path = a.Path
	unit.Modified = a.Modified
	unit.Size = a.Size
	unit.Digest = a.Digest

	return unit, nil
}

// Encode writes the artifact to w as YAML.
func Encode(ctx context.Context, w io.Writer, a *Artifact) error {
	data, err := yaml.MarshalContext(ctx, a, yaml.Indent(2), yaml.UseLiteralStyleIfMultiline(true))
	if err != nil {
		return ErrEncode.Wrap(err)
	}

	_, err = w.Write(data)

	return err
}

// Decode reads a YAML artifact from r.
func Decode(ctx context.Context, r io.Reader) (*Artifact, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ErrDecode.Wrap(err)
	}

	var a Artifact
	if err := yaml.UnmarshalContext(ctx, data, &a); err != nil {
		return nil, ErrDecode.Wrap(err)
	}

	return &a, nil
}

// marshal encodes the artifact into a byte slice.
func marshal(ctx context.Context, a *Artifact) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(ctx, &buf, a); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
