package cmd

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/natefinch/atomic"

	"github.com/ardnew/htmlpp/lang"
	"github.com/ardnew/htmlpp/log"
	"github.com/ardnew/htmlpp/repo"
)

// Render renders templates and writes the concatenated output.
type Render struct {
	Expr   string   `help:"Render template text given on the command line"  short:"e"`
	Output string   `help:"Write output to file instead of stdout"          short:"o" type:"path"`
	Source []string `arg:"" help:"Template files, module names, or '-' for stdin" name:"source" optional:""`
}

// Run executes the render command. Sources in a search directory are
// rendered as modules, so their compiled units are cached and persisted.
// Nothing is written unless every source renders.
func (c *Render) Run(ctx context.Context, r *repo.Repository) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	var buf bytes.Buffer

	if c.Expr != "" {
		out, err := r.Render(ctx, c.Expr)
		if err != nil {
			return lang.WrapError(err).With(slog.String("command", "render"))
		}

		buf.WriteString(out)
	}

	if c.Expr == "" || len(c.Source) > 0 {
		sources, err := resolveSources(r, c.Source)
		if err != nil {
			return err
		}

		for _, src := range sources {
			if err := renderSource(ctx, r, &buf, src); err != nil {
				return lang.WrapError(err).With(
					slog.String("command", "render"),
					slog.String("source", src.name()),
				)
			}
		}
	}

	log.DebugContext(
		ctx,
		"rendered",
		slog.Int("source_count", len(c.Source)),
		slog.Int("output_bytes", buf.Len()),
		slog.String("output", c.Output),
	)

	if c.Output != "" {
		if err := atomic.WriteFile(c.Output, &buf); err != nil {
			return ErrWriteOutput.With(slog.String("file", c.Output)).Wrap(err)
		}

		return nil
	}

	if _, err := buf.WriteTo(outputFrom(ctx)); err != nil {
		return ErrWriteOutput.Wrap(err)
	}

	return nil
}

func renderSource(
	ctx context.Context,
	r *repo.Repository,
	buf *bytes.Buffer,
	src source,
) error {
	if src.module != "" {
		return r.RenderModule(ctx, buf, src.module)
	}

	text, err := src.text(ctx, r)
	if err != nil {
		return err
	}

	out, err := r.Render(ctx, string(text))
	if err != nil {
		return err
	}

	buf.WriteString(out)

	return nil
}
