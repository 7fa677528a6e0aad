package cmd

import (
	"context"

	"github.com/ardnew/htmlpp/cli/cmd/repl"
	"github.com/ardnew/htmlpp/log"
	"github.com/ardnew/htmlpp/repo"
)

// Repl starts an interactive template session.
type Repl struct{}

// Run executes the repl command.
func (c *Repl) Run(ctx context.Context, r *repo.Repository) error {
	cacheDir := kongContextFrom(ctx).Model.Vars()[CacheIdentifier]

	logger := log.Default()

	return repl.Run(ctx, repl.NewSession(r, logger), cacheDir, logger)
}
