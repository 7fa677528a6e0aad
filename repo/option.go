package repo

import (
	"github.com/ardnew/htmlpp/lang"
	"github.com/ardnew/htmlpp/log"
)

// DefaultExt is the file extension of template sources.
const DefaultExt = ".pre.html"

// inlinePrefix is the name prefix of templates compiled from inline text.
const inlinePrefix = "_htmlpp_internal"

type options struct {
	logger   log.Logger
	source   Source
	sink     Sink
	ext      string
	validate bool
	lang     []lang.Option
}

// Option configures a [Repository].
type Option func(*options)

// WithLogger sets the logger of the repository and of the units it compiles.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSource sets the source of template files, [OSSource] by default.
func WithSource(source Source) Option {
	return func(o *options) {
		if source != nil {
			o.source = source
		}
	}
}

// WithSink sets the sink that persists compiled units.
// By default nothing is persisted.
func WithSink(sink Sink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

// WithExt sets the extension appended to module paths, [DefaultExt] by
// default.
func WithExt(ext string) Option {
	return func(o *options) {
		if ext != "" {
			o.ext = ext
		}
	}
}

// WithValidate sets whether a cached unit is checked against the modification
// time of its source on every resolve. It is enabled by default.
func WithValidate(validate bool) Option {
	return func(o *options) {
		o.validate = validate
	}
}

// WithLangOptions sets options passed to the parser and code generator.
func WithLangOptions(opts ...lang.Option) Option {
	return func(o *options) {
		o.lang = append(o.lang, opts...)
	}
}

func makeOptions(opts ...Option) options {
	o := options{
		source:   OSSource{},
		ext:      DefaultExt,
		validate: true,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	return o
}

// langOptions returns the options for compiling and rendering units.
func (o options) langOptions() []lang.Option {
	return append([]lang.Option{lang.WithLogger(o.logger)}, o.lang...)
}
