// Package cmd implements the htmlpp subcommands.
//
// Commands that compile or render templates receive the [repo.Repository]
// bound by the cli package. Their sources are template files, dotted module
// names, or "-" for stdin. A file lying in a search directory is handled as
// the module it defines, so its compiled unit is cached and persisted.
package cmd

var (
	// CacheIdentifier is the kong variable identifier containing the path to
	// the runtime cache directory.
	CacheIdentifier = "cache"

	// ConfigIdentifier is the kong variable identifier containing the path to
	// the configuration file.
	ConfigIdentifier = "config"
)
