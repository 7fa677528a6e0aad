package lang

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
)

// Predefined errors (sentinel values).
var (
	ErrUnmatchedTag       = NewError("unmatched tag")
	ErrUndefinedCommand   = NewError("undefined command")
	ErrBlockNotRegistered = NewError("block not registered")
	ErrUnknownAlias       = NewError("unknown module alias")
	ErrMaxDepthExceeded   = NewError("maximum render depth exceeded")
	ErrModuleNotFound     = NewError("module not found")
	ErrReadSource         = NewError("failed to read source")
	ErrNoResolver         = NewError("no module resolver")
	ErrInvalidNode        = NewError("invalid node")
)

// Error represents an error with optional structured logging attributes.
// It implements both error and slog.LogValuer interfaces.
type Error struct {
	msg   string
	err   error       // Wrapped error (for errors.Unwrap)
	attrs []slog.Attr // Attributes for structured logging
}

// NewError creates a new Error with a message.
func NewError(msg string) *Error {
	return &Error{msg: msg}
}

// WrapError wraps a standard error into an Error.
func WrapError(err error) *Error {
	ee := &Error{}
	if errors.As(err, &ee) {
		return ee
	}

	return &Error{err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	// Build error message using the first available format,
	// depending on which fields are set:
	//
	//   1. "<msg>: <err>" // base and wrapped error both set
	//   2. "<msg>"        // wrapped error is nil
	//   3. "<err>"        // base error message is empty
	//   4. ""             // no fields are set
	part := make([]string, 0, 2)

	if e.msg != "" {
		part = append(part, e.msg)
	}

	if e.err != nil {
		part = append(part, e.err.Error())
	}

	return strings.Join(part, ": ")
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error { return e.err }

// Is reports whether target is the sentinel this error was derived from.
// Errors created by [Error.Wrap] and [Error.With] share the message of their
// sentinel, so they match it with [errors.Is].
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.err == nil && len(t.attrs) == 0 && t.msg != "" && t.msg == e.msg
}

// LogValue implements slog.LogValuer for rich structured logging.
func (e *Error) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(e.attrs)+2)

	if e.msg != "" {
		attrs = append(attrs, slog.String("error", e.msg))
	}

	if e.err != nil {
		attrs = append(attrs, slog.String("cause", e.err.Error()))
	}

	return slog.GroupValue(append(attrs, e.attrs...)...)
}

// Attr returns the value of the first attribute with the given key.
func (e *Error) Attr(key string) (slog.Value, bool) {
	for _, a := range e.attrs {
		if a.Key == key {
			return a.Value, true
		}
	}

	return slog.Value{}, false
}

// Wrap creates a new Error wrapping another error.
func (e *Error) Wrap(err error) *Error {
	return &Error{
		msg:   e.msg,
		err:   err,
		attrs: e.attrs, // Share attrs
	}
}

// With adds attributes to the error for structured logging.
// This creates a new Error instance to maintain immutability.
func (e *Error) With(attrs ...slog.Attr) *Error {
	newAttrs := make([]slog.Attr, len(e.attrs)+len(attrs))
	copy(newAttrs, e.attrs)
	copy(newAttrs[len(e.attrs):], attrs)

	return &Error{
		msg:   e.msg,
		err:   e.err,
		attrs: newAttrs,
	}
}

// ParseError reports a tag that could not be matched with its counterpart.
type ParseError struct {
	Stack  []string // Names of the nodes still open, outermost first
	Source string   // The original source input
	Pos    int      // Byte offset of the offending token, or -1 at end of input
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	var buf strings.Builder

	buf.WriteString("parse error")

	if e.Pos < 0 || e.Source == "" {
		buf.WriteString(" at end of input")
	} else {
		line, col := position(e.Source, e.Pos)
		buf.WriteString(" at line ")
		buf.WriteString(strconv.Itoa(line))
		buf.WriteString(", column ")
		buf.WriteString(strconv.Itoa(col))
	}

	buf.WriteString(": open stack [")
	buf.WriteString(strings.Join(e.Stack, " "))
	buf.WriteString("]")

	if snippet := e.snippet(); snippet != "" {
		buf.WriteString("\n")
		buf.WriteString(snippet)
	}

	return buf.String()
}

// Unwrap allows errors.Is(err, ErrUnmatchedTag).
func (e *ParseError) Unwrap() error { return ErrUnmatchedTag }

// snippet formats the offending source line with a column marker.
func (e *ParseError) snippet() string {
	if e.Pos < 0 || e.Pos > len(e.Source) {
		return ""
	}

	line, col := position(e.Source, e.Pos)
	lines := strings.Split(e.Source, "\n")

	if line < 1 || line > len(lines) {
		return ""
	}

	var src strings.Builder

	src.WriteString("  ")
	src.WriteString(strconv.Itoa(line))
	src.WriteString(" | ")
	src.WriteString(lines[line-1])
	src.WriteRune('\n')

	// +5 accounts for: 2 leading spaces + " | " (3 chars)
	padding := strings.Repeat(" ", len(strconv.Itoa(line))+5)
	if col > 0 {
		padding += strings.Repeat(" ", col-1)
	}

	src.WriteString(padding + "^")

	return src.String()
}

// position converts a byte offset into a 1-based line and column.
func position(source string, pos int) (line, col int) {
	if pos > len(source) {
		pos = len(source)
	}

	prefix := source[:pos]
	line = strings.Count(prefix, "\n") + 1
	col = pos - strings.LastIndexByte(prefix, '\n')

	return line, col
}
