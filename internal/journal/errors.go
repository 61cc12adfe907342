package journal

import "errors"

// ErrNotFound indicates no journaled session matched.
var ErrNotFound = errors.New("session not found")
