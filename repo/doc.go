// Package repo resolves template modules by dotted name across a search path
// of directories, caching compiled units and recompiling them when their
// source changes.
package repo
