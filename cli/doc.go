// Package cli contains the command line interface for htmlpp.
//
// # Usage
//
// Render a page whose imports are found below ./templates:
//
//	htmlpp --dir templates page.pre.html
//	htmlpp render --dir templates --outdir build page.pre.html
//
// Print the compiled procedures or the parse tree of a template:
//
//	htmlpp codegen --format yaml page.pre.html
//	htmlpp ast --format markup page.pre.html
//
// Start an interactive session with the modules of ./templates:
//
//	htmlpp repl --dir templates
//
// # Module Repository
//
// Modules are resolved in the directories given with --dir, followed by those
// listed in the HTMLPP_PATH environment variable. Compiled modules are
// persisted below --outdir, or in the SQLite database given with --db.
//
//   - --ext: Template source file extension (default: .pre.html)
//   - --prefix: Tag name prefix (default: @)
//   - --def-alias: Additional tag name for def, may be repeated
//   - --max-depth: Maximum nested procedure calls
//   - --no-validate: Trust cached modules without checking their sources
//
// # Configuration
//
// Flag defaults are read from config.yaml in the user configuration directory.
// The init command writes that file from the current flag values:
//
//	htmlpp --log-level=debug --dir templates init
//
// # Logging Options
//
//   - --log-level: Set minimum log level (debug, info, warn, error)
//   - --log-format: Set log output format (json, text)
//   - --log-time-layout: Set timestamp format (RFC3339, RFC3339Nano, etc.)
//   - --log-caller: Include caller information in log output
//   - --log-pretty: Colorize log output
//
// # Profiling Options
//
// Profiling is only available when built with the pprof build tag:
//
//	go build -tags pprof -o htmlpp .
//
//   - --pprof-mode: Enable profiling (allocs, block, clock, cpu, goroutine,
//     heap, mem, mutex, thread, trace)
//   - --pprof-dir: Set profile output directory (default: ~/.cache/htmlpp/pprof)
package cli
