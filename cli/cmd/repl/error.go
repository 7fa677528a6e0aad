package repl

import "errors"

// Sentinel errors.
var (
	ErrOutOfBounds    = errors.New("index out of range")
	ErrEditDeclined   = errors.New("decline edit")
	ErrNoDeclarations = errors.New("session declarations do not compile")
	ErrNoSession      = errors.New("no session")
)
