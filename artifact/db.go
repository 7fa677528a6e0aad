package artifact

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"
)

const createArtifactsTable = `
CREATE TABLE IF NOT EXISTS artifacts (
    name TEXT PRIMARY KEY,
    digest TEXT NOT NULL,
    compiled DATETIME NOT NULL,
    document BLOB NOT NULL
);`

// DBSink persists artifacts as rows of a SQLite database keyed by module
// name. The SQLite driver is selected at build time: the pure Go driver by
// default, or the cgo driver with the cgo_sqlite build tag.
type DBSink struct {
	db   *sql.DB
	opts options
}

// OpenDB opens the database at dataSource and prepares it for use as a sink.
func OpenDB(ctx context.Context, dataSource string, opts ...Option) (*DBSink, error) {
	db, err := openDB(dataSource)
	if err != nil {
		return nil, ErrStore.Wrap(err).With(slog.String("data_source", dataSource))
	}

	// SQLite serializes writers; a single connection also keeps an in-memory
	// database alive for the lifetime of the sink.
	db.SetMaxOpenConns(1)

	s, err := NewDBSink(ctx, db, opts...)
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	return s, nil
}

// NewDBSink returns a sink backed by db, creating its table when needed.
func NewDBSink(ctx context.Context, db *sql.DB, opts ...Option) (*DBSink, error) {
	if _, err := db.ExecContext(ctx, createArtifactsTable); err != nil {
		return nil, ErrStore.Wrap(err)
	}

	return &DBSink{db: db, opts: makeOptions(opts...)}, nil
}

// Close closes the underlying database.
func (s *DBSink) Close() error { return s.db.Close() }

// Persist stores the artifact, returning its location in the form
// "sqlite:<name>". A stored artifact with an identical document is left
// untouched.
func (s *DBSink) Persist(ctx context.Context, a *Artifact) (string, error) {
	data, err := marshal(ctx, a)
	if err != nil {
		return "", err
	}

	res, err := s.db.ExecContext(ctx, `
        INSERT INTO artifacts (name, digest, compiled, document) VALUES (?, ?, ?, ?)
        ON CONFLICT(name) DO UPDATE SET
            digest = excluded.digest,
            compiled = excluded.compiled,
            document = excluded.document
        WHERE artifacts.document != excluded.document`,
		a.Name, a.Digest, a.Compiled.UTC().Format(time.RFC3339Nano), data,
	)
	if err != nil {
		return "", ErrStore.Wrap(err).With(slog.String("module", a.Name))
	}

	n, _ := res.RowsAffected()

	s.opts.logger.DebugContext(
		ctx,
		"artifact stored",
		slog.String("module", a.Name),
		slog.String("digest", a.Digest),
		slog.Bool("changed", n > 0),
	)

	return "sqlite:" + a.Name, nil
}

// Load reads the artifact of the module name.
func (s *DBSink) Load(ctx context.Context, name string) (*Artifact, error) {
	var data []byte

	err := s.db.QueryRowContext(ctx,
		"SELECT document FROM artifacts WHERE name = ?", name,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound.Wrap(err).With(slog.String("module", name))
		}

		return nil, ErrDecode.Wrap(err).With(slog.String("module", name))
	}

	return Decode(ctx, bytes.NewReader(data))
}

// Names returns the names of the stored artifacts, sorted.
func (s *DBSink) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM artifacts ORDER BY name")
	if err != nil {
		return nil, ErrDecode.Wrap(err)
	}
	defer rows.Close()

	var names []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, ErrDecode.Wrap(err)
		}

		names = append(names, name)
	}

	return names, rows.Err()
}
