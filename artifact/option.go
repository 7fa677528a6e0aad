package artifact

import "github.com/ardnew/htmlpp/log"

type options struct {
	logger log.Logger
}

// Option configures a sink.
type Option func(*options)

// WithLogger sets the logger used for sink diagnostics.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func makeOptions(opts ...Option) options {
	var o options

	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	return o
}
