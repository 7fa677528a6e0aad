package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"

	"github.com/ardnew/htmlpp/log"
)

// resolve returns a [kong.ConfigurationLoader] that reads YAML config files.
//
// It can be used with [kong.Configuration] like this:
//
//	kong.Configuration(resolve(ctx), "/path/to/config.yaml")
//
// The document is a flat mapping from flag name to value:
//   - Flag names with hyphens (e.g., "log-level") may use underscores
//     in the config file (e.g., "log_level")
//   - Sequences are applied to repeatable flags (e.g., "dir")
//   - Numbers and booleans are unquoted
//
// Example config file:
//
//	log-level: debug
//	log-pretty: false
//	dir:
//	  - templates
//	  - vendor/templates
//
// Command-line flags override config file values. A file that cannot be
// parsed is logged and ignored.
func resolve(ctx context.Context) func(r io.Reader) (kong.Resolver, error) {
	return func(r io.Reader) (kong.Resolver, error) {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}

		var doc map[string]any
		if err := yaml.UnmarshalContext(ctx, data, &doc); err != nil {
			log.WarnContext(ctx, "ignoring invalid configuration",
				slog.Any("error", err),
			)

			return config{}, nil
		}

		cfg := make(config, len(doc))
		for key, val := range doc {
			cfg[key] = flagArg(val)
		}

		return cfg, nil
	}
}

// config implements [kong.Resolver] for YAML configs.
type config map[string]any

// Validate implements [kong.Resolver].
func (r config) Validate(*kong.Application) error {
	return nil
}

// Resolve implements [kong.Resolver].
func (r config) Resolve(
	_ *kong.Context,
	_ *kong.Path,
	flag *kong.Flag,
) (any, error) {
	if value, ok := r[flag.Name]; ok {
		return value, nil
	}

	if value, ok := r[strings.ReplaceAll(flag.Name, "-", "_")]; ok {
		return value, nil
	}

	// Not found - return nil to let Kong use defaults
	return nil, nil
}

// flagArg converts a decoded YAML value to the form kong maps onto flags.
// Kong requires numbers as strings for parsing, and sequences are joined with
// the default separator of slice flags.
func flagArg(val any) any {
	switch v := val.(type) {
	case nil, bool, string:
		return v

	case []any:
		items := make([]string, len(v))
		for i, item := range v {
			items[i] = strings.ReplaceAll(fmt.Sprint(item), ",", `\,`)
		}

		return strings.Join(items, ",")

	default:
		return fmt.Sprint(v)
	}
}
