package cli

import (
	"context"
	"log/slog"

	"github.com/alecthomas/kong"

	"github.com/ardnew/htmlpp/cli/cmd"
	"github.com/ardnew/htmlpp/log"
	"github.com/ardnew/htmlpp/pkg"
	"github.com/ardnew/htmlpp/repo"
)

// CLI is the top-level command-line interface for htmlpp.
type CLI struct {
	Log   logConfig   `embed:"" group:"log"   prefix:"log-"`
	Pprof pprofConfig `embed:"" group:"pprof" prefix:"pprof-"`
	Repo  repoConfig  `embed:"" group:"repo"`

	Version kong.VersionFlag `help:"Print version and exit"`

	Init    cmd.Init    `cmd:"" help:"Initialize configuration file"`
	Codegen cmd.Codegen `cmd:"" help:"Compile templates and print their procedures"`
	AST     cmd.AST     `cmd:"" help:"Parse templates and print their syntax trees" name:"ast"`
	Repl    cmd.Repl    `cmd:"" help:"Render templates interactively"`

	Render cmd.Render `cmd:"" default:"withargs" help:"Render templates"`
}

// Run executes the htmlpp CLI with the given context and arguments.
// The exit function is called with the appropriate exit code upon completion.
func Run(
	ctx context.Context,
	exit func(code int),
	args ...string,
) error {
	var cli CLI

	err := mkdirAllRequired()
	if err != nil {
		return err
	}

	configFilePath := configPath(baseConfig)

	vars := kong.Vars{
		cmd.ConfigIdentifier: configFilePath,
		cmd.CacheIdentifier:  cacheDir(),
		"version":            pkg.Version,
	}.
		CloneWith(cli.Log.vars()).
		CloneWith(cli.Pprof.vars()).
		CloneWith(cli.Repo.vars())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Pre-scan for logger flags to ensure early configuration regardless of
	// flag position. TextUnmarshaler on logFormat/logLevel handles those flags
	// during normal parsing, but this early scan also catches boolean flags
	// like --log-pretty.
	cli.Log.scan(args)

	// Parse command line
	parser, err := kong.New(&cli,
		kong.Name(pkg.Name),
		kong.Description(pkg.Description),
		kong.UsageOnError(),
		kong.Exit(exit),
		kong.ExplicitGroups(
			[]kong.Group{cli.Log.group(), cli.Pprof.group(), cli.Repo.group()},
		),
		kong.BindSingletonProvider(func() context.Context {
			return ctx
		}),
		// The repository is only opened for commands that take one.
		kong.BindSingletonProvider(func() (*repo.Repository, error) {
			return cli.Repo.open(ctx)
		}),
		kong.ConfigureHelp(
			kong.HelpOptions{
				Compact:             true,
				Summary:             true,
				Tree:                true,
				FlagsLast:           false,
				NoAppSummary:        false,
				NoExpandSubcommands: true,
			}),
		kong.Configuration(kong.JSON, configPath(pkg.Name+".json")),
		kong.Configuration(resolve(ctx), configFilePath),
		vars,
	)
	if err != nil {
		return err
	}

	ktx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	// Stuff additional context values for use by commands
	ctx = cmd.WithContext(ctx, ktx)

	// Finalize logger configuration with all parsed values including
	// TimeLayout and Caller which don't use TextUnmarshaler.
	cli.Log.start(ctx)

	// [pprofConfig.start] is no-op unless built with tag pprof and enabled.
	defer cli.Pprof.start(ctx)()

	defer cli.Repo.close(ctx)

	log.DebugContext(ctx, "run", slog.String("command", ktx.Command()))

	// Execute the selected command
	return ktx.Run(ctx, &cli)
}
