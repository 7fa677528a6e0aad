package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ardnew/htmlpp/lang"
	"github.com/ardnew/htmlpp/log"
	"github.com/ardnew/htmlpp/repo"
)

// Codegen compiles templates and prints their compiled representation.
type Codegen struct {
	Format string   `default:"text" enum:"text,yaml,json" help:"Output format (${enum})" short:"f"`
	Indent int      `default:"2"                          help:"Indent width for YAML and JSON output" short:"i"`
	Source []string `arg:"" help:"Template files, module names, or '-' for stdin" name:"source" optional:""`
}

// Run executes the codegen command. Sources in a search directory are
// resolved as modules, so their compiled units are persisted to the
// configured sink.
func (c *Codegen) Run(ctx context.Context, r *repo.Repository) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	sources, err := resolveSources(r, c.Source)
	if err != nil {
		return err
	}

	w := outputFrom(ctx)

	for i, src := range sources {
		unit, err := compileSource(ctx, r, src)
		if err != nil {
			return lang.WrapError(err).With(
				slog.String("command", "codegen"),
				slog.String("source", src.name()),
			)
		}

		log.DebugContext(
			ctx,
			"compiled",
			slog.String("unit", unit.Name),
			slog.String("format", c.Format),
		)

		if err := c.write(ctx, w, unit, i > 0); err != nil {
			return err
		}
	}

	return nil
}

// write prints unit in the selected format. Units after the first are
// separated by a blank line, or by a document marker in YAML.
func (c *Codegen) write(ctx context.Context, w io.Writer, unit *lang.Unit, more bool) error {
	switch c.Format {
	case "", "text":
		if more {
			fmt.Fprintln(w)
		}

		return unit.Listing(w)

	case "yaml":
		if more {
			fmt.Fprintln(w, "---")
		}

		if err := unit.FormatYAML(ctx, w, c.Indent); err != nil {
			return ErrYAMLMarshal.With(slog.String("unit", unit.Name)).Wrap(err)
		}

		return nil

	case "json":
		if err := unit.FormatJSON(ctx, w, c.Indent); err != nil {
			return ErrJSONMarshal.With(slog.String("unit", unit.Name)).Wrap(err)
		}

		return nil
	}

	return ErrFormat.With(slog.String("format", c.Format))
}

func compileSource(ctx context.Context, r *repo.Repository, src source) (*lang.Unit, error) {
	if src.module != "" {
		return r.Resolve(ctx, src.module)
	}

	text, err := src.text(ctx, r)
	if err != nil {
		return nil, err
	}

	return r.Compile(ctx, src.name(), string(text))
}
