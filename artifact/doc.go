// Package artifact defines the persisted representation of compiled template
// units and the sinks that store them: a tree of YAML files replaced
// atomically, and a SQLite database.
package artifact
