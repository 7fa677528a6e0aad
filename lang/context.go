package lang

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/ardnew/htmlpp/log"
)

// Resolver resolves qualified module names to compiled units.
type Resolver interface {
	Resolve(ctx context.Context, name string) (*Unit, error)
}

// render is the state shared by every [Context] of one top-level render.
type render struct {
	ctx      context.Context
	resolver Resolver
	logger   log.Logger
	units    map[*Unit]*Context
	maxDepth int
	depth    int
}

// Context carries the module aliases visible to the procedures of one unit
// during a render, and the resolver used to bind new aliases on demand.
//
// A Context lives for the duration of a single top-level render and is not
// safe for concurrent use. Each unit entered during the render gets its own
// Context sharing the same resolver, so imports declared by one module do not
// leak into another.
type Context struct {
	*render

	unit    *Unit
	aliases map[string]*Unit
}

// NewContext returns a Context for a new top-level render. The resolver may be
// nil, in which case any import fails with [ErrNoResolver].
func NewContext(ctx context.Context, resolver Resolver, opts ...Option) *Context {
	o := makeOptions(opts...)

	if ctx == nil {
		ctx = context.Background()
	}

	c := &Context{
		render: &render{
			ctx:      ctx,
			resolver: resolver,
			logger:   o.logger,
			units:    make(map[*Unit]*Context),
			maxDepth: o.maxDepth,
		},
		aliases: make(map[string]*Unit),
	}

	return c
}

// Context returns the context.Context of the render.
func (c *Context) Context() context.Context { return c.ctx }

// Unit returns the unit whose procedures this Context serves, or nil if the
// Context has not entered a unit yet.
func (c *Context) Unit() *Unit { return c.unit }

// Alias returns the unit bound to alias.
func (c *Context) Alias(alias string) (*Unit, bool) {
	u, ok := c.aliases[alias]

	return u, ok
}

// Aliases returns the bound aliases, sorted.
func (c *Context) Aliases() []string {
	return slices.Sorted(maps.Keys(c.aliases))
}

// ImportModule resolves module and binds it to alias. An empty alias binds
// the module under its own name.
func (c *Context) ImportModule(module, alias string) (*Unit, error) {
	if alias == "" {
		alias = module
	}

	if c.resolver == nil {
		return nil, ErrNoResolver.With(slog.String("module", module))
	}

	u, err := c.resolver.Resolve(c.ctx, module)
	if err != nil {
		return nil, err
	}

	c.aliases[alias] = u

	c.logger.TraceContext(
		c.ctx,
		"import module",
		slog.String("module", module),
		slog.String("alias", alias),
		slog.String("unit", c.unitName()),
	)

	return u, nil
}

// resolveAlias returns the unit bound to alias, importing it first when
// needed. An alias declared by an import of the current unit resolves to that
// import's module; any other alias is taken to be a module name.
func (c *Context) resolveAlias(alias string) (*Unit, error) {
	if u, ok := c.aliases[alias]; ok {
		return u, nil
	}

	module := alias

	if c.unit != nil {
		if imp, ok := c.unit.importOf(alias); ok {
			module = imp.Module
		}
	}

	u, err := c.ImportModule(module, alias)
	if err != nil {
		return nil, ErrUnknownAlias.Wrap(err).With(
			slog.String("alias", alias),
			slog.String("unit", c.unitName()),
		)
	}

	return u, nil
}

// enter returns the Context serving the procedures of u.
func (c *Context) enter(u *Unit) *Context {
	if c.unit == u {
		return c
	}

	if c.unit == nil {
		c.unit = u
		c.units[u] = c

		return c
	}

	if uc, ok := c.units[u]; ok {
		return uc
	}

	uc := &Context{
		render:  c.render,
		unit:    u,
		aliases: make(map[string]*Unit),
	}
	c.units[u] = uc

	return uc
}

// push accounts for a procedure call, enforcing cancellation and the depth
// limit.
func (c *Context) push(p *Procedure) error {
	if err := c.ctx.Err(); err != nil {
		return err
	}

	if c.depth >= c.maxDepth {
		return ErrMaxDepthExceeded.With(
			slog.Int("max_depth", c.maxDepth),
			slog.String("procedure", p.Name),
			slog.String("unit", c.unitName()),
		)
	}

	c.depth++

	return nil
}

func (c *Context) pop() { c.depth-- }

func (c *Context) unitName() string {
	if c.unit == nil {
		return ""
	}

	return c.unit.Name
}
