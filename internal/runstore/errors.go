package runstore

import "errors"

// ErrRunNotFound is returned when a run id has no journal row.
var ErrRunNotFound = errors.New("run not found")
