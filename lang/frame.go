package lang

import (
	"errors"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strconv"
)

// Renderer writes the content of a block.
type Renderer func(w io.Writer, c *Context) error

// Frame is one link of the scope chain threaded through a render. It maps
// block names to renderers and carries the attributes supplied by the command
// that created it. A frame is never modified after construction, so frames
// may be shared by concurrent renders.
type Frame struct {
	blocks map[string]Renderer
	attrs  Attributes
	parent *Frame
}

// NewFrame returns a root frame. The arguments are copied.
func NewFrame(blocks map[string]Renderer, attrs Attributes) *Frame {
	return &Frame{
		blocks: maps.Clone(blocks),
		attrs:  attrs.Clone(),
	}
}

// Child returns a new frame whose lookups fall back to f.
// The receiver is not modified, and the arguments are copied.
func (f *Frame) Child(blocks map[string]Renderer, attrs Attributes) *Frame {
	child := NewFrame(blocks, attrs)
	child.parent = f

	return child
}

// Parent returns the enclosing frame, or nil for a root frame.
func (f *Frame) Parent() *Frame { return f.parent }

// Attrs returns a copy of the attributes supplied with this frame.
// Attributes are not inherited from parent frames.
func (f *Frame) Attrs() Attributes {
	if f == nil {
		return nil
	}

	return f.attrs.Clone()
}

// Lookup returns the renderer bound to key in f or the nearest ancestor.
// It fails with [ErrBlockNotRegistered] when no frame in the chain binds key.
func (f *Frame) Lookup(key string) (Renderer, error) {
	for fr := f; fr != nil; fr = fr.parent {
		if r, ok := fr.blocks[key]; ok {
			return r, nil
		}
	}

	return nil, ErrBlockNotRegistered.
		Wrap(errors.New(strconv.Quote(key))).
		With(slog.String("key", key))
}

// Keys returns the block names visible from f, sorted.
func (f *Frame) Keys() []string {
	seen := make(map[string]struct{})

	for fr := f; fr != nil; fr = fr.parent {
		for k := range fr.blocks {
			seen[k] = struct{}{}
		}
	}

	return slices.Sorted(maps.Keys(seen))
}
