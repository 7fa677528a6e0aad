package cli

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/alecthomas/kong"
	"github.com/ardnew/mung"

	"github.com/ardnew/htmlpp/artifact"
	"github.com/ardnew/htmlpp/lang"
	"github.com/ardnew/htmlpp/log"
	"github.com/ardnew/htmlpp/pkg"
	"github.com/ardnew/htmlpp/repo"
)

// repoConfig holds the flags that construct the module repository.
type repoConfig struct {
	Dir      []string `help:"Template search directory (repeatable)" placeholder:"DIR" short:"d" type:"path"`
	Ext      string   `default:"${repoExt}"                         help:"Template source file extension"`
	OutDir   string   `help:"Persist compiled units below directory" name:"outdir" placeholder:"DIR" type:"path"`
	DB       string   `help:"Persist compiled units to SQLite database" placeholder:"FILE" type:"path"`
	Prefix   string   `default:"${repoPrefix}"                      help:"Tag name prefix"`
	DefAlias []string `help:"Additional tag name for def (repeatable)" name:"def-alias"`
	MaxDepth int      `default:"${repoMaxDepth}"                    help:"Maximum nested procedure calls"`
	Validate bool     `default:"true"                               help:"Recompile cached modules whose source changed" negatable:""`

	db *artifact.DBSink
}

func (*repoConfig) vars() kong.Vars {
	return kong.Vars{
		"repoExt":      repo.DefaultExt,
		"repoPrefix":   lang.DefaultPrefix,
		"repoMaxDepth": strconv.Itoa(lang.DefaultMaxDepth),
	}
}

func (*repoConfig) group() kong.Group {
	var group kong.Group

	group.Key = "repo"
	group.Title = "Module repository"

	return group
}

// searchPath returns the search directories: those given with --dir followed
// by the entries of the environment variable named by [pkg.PathEnv].
func (f *repoConfig) searchPath() []string {
	merged := mung.Make(
		mung.WithSubjectItems(os.Getenv(pkg.PathEnv)),
		mung.WithDelim(string(os.PathListSeparator)),
		mung.WithPrefixItems(f.Dir...),
	).String()

	return slices.DeleteFunc(filepath.SplitList(merged), func(dir string) bool {
		return dir == ""
	})
}

// open constructs the repository. Compiled units are persisted to the SQLite
// database if one is configured, otherwise to the output directory.
func (f *repoConfig) open(ctx context.Context) (*repo.Repository, error) {
	logger := log.Default()

	var sink repo.Sink = artifact.NewFileSink(f.OutDir, artifact.WithLogger(logger))

	if f.DB != "" {
		db, err := artifact.OpenDB(ctx, f.DB, artifact.WithLogger(logger))
		if err != nil {
			return nil, err
		}

		f.db, sink = db, db
	}

	dirs := f.searchPath()

	log.DebugContext(ctx, "repository",
		slog.Any("dirs", dirs),
		slog.String("ext", f.Ext),
		slog.String("outdir", f.OutDir),
		slog.String("db", f.DB),
		slog.String("prefix", f.Prefix),
	)

	return repo.New(dirs,
		repo.WithLogger(logger),
		repo.WithSink(sink),
		repo.WithExt(f.Ext),
		repo.WithValidate(f.Validate),
		repo.WithLangOptions(
			lang.WithPrefix(f.Prefix),
			lang.WithDefAlias(f.DefAlias...),
			lang.WithMaxDepth(f.MaxDepth),
		),
	), nil
}

// close releases the database opened by open, if any.
func (f *repoConfig) close(ctx context.Context) {
	if f.db == nil {
		return
	}

	if err := f.db.Close(); err != nil {
		log.WarnContext(ctx, "close database", slog.Any("error", err))
	}

	f.db = nil
}
