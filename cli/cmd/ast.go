package cmd

import (
	"context"
	"log/slog"

	"github.com/ardnew/htmlpp/lang"
	"github.com/ardnew/htmlpp/repo"
)

// AST parses templates and prints their parse trees.
type AST struct {
	Format string   `default:"text" enum:"text,markup,yaml,json" help:"Output format (${enum})" short:"f"`
	Indent int      `default:"2"                                 help:"Indent width for YAML and JSON output" short:"i"`
	Source []string `arg:"" help:"Template files, module names, or '-' for stdin" name:"source" optional:""`
}

// Run executes the ast command.
func (c *AST) Run(ctx context.Context, r *repo.Repository) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	sources, err := resolveSources(r, c.Source)
	if err != nil {
		return err
	}

	w := outputFrom(ctx)

	for _, src := range sources {
		text, err := src.text(ctx, r)
		if err != nil {
			return ErrSource.With(slog.String("source", src.name())).Wrap(err)
		}

		root, err := lang.ParseString(ctx, string(text), r.LangOptions()...)
		if err != nil {
			return lang.WrapError(err).With(
				slog.String("command", "ast"),
				slog.String("source", src.name()),
			)
		}

		switch c.Format {
		case "", "text":
			root.Print(ctx, w)

		case "markup":
			err = root.Format(ctx, w, r.Prefix())

		case "yaml":
			if err = root.FormatYAML(ctx, w, c.Indent); err != nil {
				err = ErrYAMLMarshal.Wrap(err)
			}

		case "json":
			if err = root.FormatJSON(ctx, w, c.Indent); err != nil {
				err = ErrJSONMarshal.Wrap(err)
			}

		default:
			err = ErrFormat.With(slog.String("format", c.Format))
		}

		if err != nil {
			return err
		}
	}

	return nil
}
