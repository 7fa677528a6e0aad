// Package log provides a concurrency-safe structured logger built on
// [log/slog].
//
// # Basic Usage
//
//	logger := log.Make(os.Stderr)
//	logger.Info("compiled module", slog.String("module", "ui.box"))
//
// The zero [Logger] discards everything, so components can hold one by value
// and log unconditionally.
//
// # Configuration
//
// Options are applied when the logger is created or wrapped:
//
//	logger := log.Make(os.Stderr,
//		log.WithLevel(log.LevelTrace),
//		log.WithFormat(log.FormatText),
//		log.WithTimeLayout("kitchen"),
//		log.WithCaller(true))
//
// [Logger.Wrap] derives a logger with some options overridden, leaving the
// original unchanged.
//
// # Levels
//
// In addition to the [log/slog] levels, [LevelTrace] sits below
// [LevelDebug] and is used for per-call detail such as module resolution and
// procedure entry.
//
// # Pretty Output
//
// With [WithPretty] enabled, records are written as unquoted key=value pairs
// ([FormatText]) or as an indented object ([FormatJSON]). Keys and values are
// colorized with lipgloss only when the output is a terminal.
//
// # Package-Level Logger
//
// Functions such as [Info] and [Debug] log through a package-level logger,
// which [Config] reconfigures and [SetDefault] replaces. Context-unaware
// variants use [DefaultContextProvider].
package log
