package store

import "errors"

// ErrValidation marks a rejected write due to missing or empty required input.
var ErrValidation = errors.New("validation failed")

// ErrNotFound marks a mutation whose target record does not exist. A stop on
// an already-stopped timer, a timer owned by someone else, and a nonexistent
// id all return this same error so callers cannot probe ownership.
var ErrNotFound = errors.New("not found")
