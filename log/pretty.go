package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// palette holds the styles used to colorize pretty output.
//
// Styles are bound to a renderer of the handler's writer, so color is only
// emitted when that writer is a terminal.
type palette struct {
	key, str, num, dur, ts, null lipgloss.Style
	yes, no                      lipgloss.Style
	trace, debug, info, warn     lipgloss.Style
	err                          lipgloss.Style
}

func newPalette(w io.Writer) palette {
	r := lipgloss.NewRenderer(w)
	fg := func(color string) lipgloss.Style {
		return r.NewStyle().
			Foreground(lipgloss.Color(color)).
			TabWidth(lipgloss.NoTabConversion)
	}

	return palette{
		key:   fg("8"),
		str:   fg("6"),
		num:   fg("3"),
		dur:   fg("5"),
		ts:    fg("4"),
		null:  fg("8"),
		yes:   fg("2"),
		no:    fg("1"),
		trace: fg("8"),
		debug: fg("4"),
		info:  fg("2"),
		warn:  fg("3").Bold(true),
		err:   fg("1").Bold(true),
	}
}

func (p palette) level(l slog.Level) lipgloss.Style {
	switch {
	case l >= slog.LevelError:
		return p.err
	case l >= slog.LevelWarn:
		return p.warn
	case l >= slog.LevelInfo:
		return p.info
	case l >= slog.LevelDebug:
		return p.debug
	default:
		return p.trace
	}
}

// paint styles each line of s separately so multiline values keep their
// shape.
func paint(st lipgloss.Style, s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = st.Render(line)
	}

	return strings.Join(lines, "\n")
}

// prettyHandler is a [slog.Handler] writing colorized records, either as
// unquoted key=value pairs on one line or as an indented JSON-like object.
type prettyHandler struct {
	opts   slog.HandlerOptions
	mu     *sync.Mutex
	w      io.Writer
	pal    palette
	attrs  []slog.Attr
	groups []string
	object bool
}

func newPrettyTextHandler(w io.Writer, opts *slog.HandlerOptions) *prettyHandler {
	return &prettyHandler{opts: *opts, mu: &sync.Mutex{}, w: w, pal: newPalette(w)}
}

func newPrettyJSONHandler(w io.Writer, opts *slog.HandlerOptions) *prettyHandler {
	h := newPrettyTextHandler(w, opts)
	h.object = true

	return h
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.opts.Level != nil {
		threshold = h.opts.Level.Level()
	}

	return level >= threshold
}

// field is one rendered key and its styled value.
type field struct {
	key   string
	value string
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make([]field, 0, 4+len(h.attrs)+r.NumAttrs())

	if !r.Time.IsZero() {
		if a := h.replace(slog.Time(slog.TimeKey, r.Time)); a.Key != "" {
			fields = append(fields, field{a.Key, paint(h.pal.ts, a.Value.String())})
		}
	}

	if a := h.replace(slog.Any(slog.LevelKey, r.Level)); a.Key != "" {
		fields = append(fields, field{a.Key, paint(h.pal.level(r.Level), a.Value.String())})
	}

	if h.opts.AddSource {
		if src := r.Source(); src != nil {
			fields = append(fields, field{
				slog.SourceKey,
				paint(h.pal.str, src.File+":"+strconv.Itoa(src.Line)),
			})
		}
	}

	fields = append(fields, field{slog.MessageKey, paint(h.pal.str, r.Message)})

	for _, a := range h.attrs {
		fields = h.appendAttr(fields, "", a)
	}

	prefix := strings.Join(h.groups, ".")

	r.Attrs(func(a slog.Attr) bool {
		fields = h.appendAttr(fields, prefix, a)

		return true
	})

	var buf bytes.Buffer

	if h.object {
		h.writeObject(&buf, fields)
	} else {
		h.writeLine(&buf, fields)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.w.Write(buf.Bytes())

	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = slices.Clip(c.attrs)

	prefix := strings.Join(h.groups, ".")
	for _, a := range attrs {
		if prefix != "" {
			a.Key = prefix + "." + a.Key
		}

		c.attrs = append(c.attrs, a)
	}

	return &c
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	c := *h
	c.groups = append(slices.Clip(c.groups), name)

	return &c
}

// replace applies the configured ReplaceAttr to a built-in attribute.
func (h *prettyHandler) replace(a slog.Attr) slog.Attr {
	if h.opts.ReplaceAttr == nil {
		return a
	}

	return h.opts.ReplaceAttr(nil, a)
}

// appendAttr resolves a and appends its fields, flattening groups into
// dotted keys.
func (h *prettyHandler) appendAttr(fields []field, prefix string, a slog.Attr) []field {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return fields
	}

	key := a.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	} else if key == "" {
		key = prefix
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, g := range a.Value.Group() {
			fields = h.appendAttr(fields, key, g)
		}

		return fields
	}

	return append(fields, field{key, h.value(a.Value)})
}

func (h *prettyHandler) value(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return paint(h.pal.str, v.String())

	case slog.KindInt64, slog.KindUint64, slog.KindFloat64:
		return paint(h.pal.num, v.String())

	case slog.KindBool:
		if v.Bool() {
			return paint(h.pal.yes, "true")
		}

		return paint(h.pal.no, "false")

	case slog.KindDuration:
		return paint(h.pal.dur, v.Duration().String())

	case slog.KindTime:
		return paint(h.pal.ts, v.Time().Format(time.RFC3339))

	default:
		switch x := v.Any().(type) {
		case nil:
			return paint(h.pal.null, "null")
		case error:
			return paint(h.pal.no, x.Error())
		case fmt.Stringer:
			return paint(h.pal.str, x.String())
		default:
			return paint(h.pal.str, fmt.Sprint(x))
		}
	}
}

func (h *prettyHandler) writeLine(buf *bytes.Buffer, fields []field) {
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(' ')
		}

		buf.WriteString(paint(h.pal.key, f.key))
		buf.WriteByte('=')
		buf.WriteString(f.value)
	}

	buf.WriteByte('\n')
}

func (h *prettyHandler) writeObject(buf *bytes.Buffer, fields []field) {
	buf.WriteString("{\n")

	for i, f := range fields {
		buf.WriteString("  ")
		buf.WriteString(paint(h.pal.key, f.key))
		buf.WriteString(": ")
		buf.WriteString(f.value)

		if i < len(fields)-1 {
			buf.WriteByte(',')
		}

		buf.WriteByte('\n')
	}

	buf.WriteString("}\n")
}
