package lang

import "github.com/ardnew/htmlpp/log"

// DefaultMaxDepth is the default limit on nested procedure calls during a
// single render.
const DefaultMaxDepth = 256

// DefaultDefTag is the tag name that introduces a definition.
const DefaultDefTag = "def"

// options holds configuration shared by the parser and the code generator.
type options struct {
	logger   log.Logger
	prefix   string
	defAlias []string
	maxDepth int
}

// Option configures parsing and compilation.
type Option func(*options)

// WithPrefix sets the tag marker, [DefaultPrefix] by default.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithDefAlias registers additional tag names that introduce a definition,
// for example "define".
func WithDefAlias(alias ...string) Option {
	return func(o *options) {
		for _, a := range alias {
			if a != "" {
				o.defAlias = append(o.defAlias, a)
			}
		}
	}
}

// WithMaxDepth sets the maximum call depth of a render.
// Values less than 1 are ignored.
func WithMaxDepth(depth int) Option {
	return func(o *options) {
		if depth > 0 {
			o.maxDepth = depth
		}
	}
}

// WithLogger sets the logger used for trace output.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// TagPrefix returns the tag marker configured by opts.
func TagPrefix(opts ...Option) string { return makeOptions(opts...).prefix }

func makeOptions(opts ...Option) options {
	o := options{
		prefix:   DefaultPrefix,
		maxDepth: DefaultMaxDepth,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	return o
}
