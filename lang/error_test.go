package lang

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func TestError_Is(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"sentinel", ErrModuleNotFound, ErrModuleNotFound, true},
		{"with attrs", ErrModuleNotFound.With(slog.String("k", "v")), ErrModuleNotFound, true},
		{"wrapped", ErrReadSource.Wrap(base), ErrReadSource, true},
		{"wrapped cause", ErrReadSource.Wrap(base), base, true},
		{"different sentinel", ErrModuleNotFound, ErrReadSource, false},
		{"nested", ErrUnknownAlias.Wrap(ErrModuleNotFound.With()), ErrModuleNotFound, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.want)
			}
		})
	}
}

func TestError_Message(t *testing.T) {
	err := ErrReadSource.Wrap(io.ErrUnexpectedEOF).With(slog.String("path", "a.pre.html"))

	if got, want := err.Error(), "failed to read source: unexpected EOF"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	if v, ok := err.Attr("path"); !ok || v.String() != "a.pre.html" {
		t.Errorf("Attr(path) = %v, %v", v, ok)
	}

	if _, ok := err.Attr("missing"); ok {
		t.Error("Attr(missing) found")
	}

	group := err.LogValue().Group()
	if len(group) != 3 {
		t.Errorf("LogValue() = %v, want 3 attrs", group)
	}
}

func TestWrapError(t *testing.T) {
	if got := WrapError(ErrInvalidNode); got != ErrInvalidNode {
		t.Errorf("WrapError(*Error) = %p, want %p", got, ErrInvalidNode)
	}

	base := errors.New("x")
	if got := WrapError(base); !errors.Is(got, base) {
		t.Errorf("WrapError(%v) does not wrap it", base)
	}
}

func TestParseError_Snippet(t *testing.T) {
	pe := &ParseError{
		Stack:  []string{"<root *root>"},
		Source: "<p>\n  x </@a>",
		Pos:    8,
	}

	want := "parse error at line 2, column 5: open stack [<root *root>]\n" +
		"  2 |   x </@a>\n" +
		"          ^"

	if got := pe.Error(); got != want {
		t.Errorf("Error() =\n%s\nwant\n%s", got, want)
	}

	if !strings.HasPrefix((&ParseError{Pos: -1}).Error(), "parse error at end of input") {
		t.Error("end-of-input message")
	}
}
