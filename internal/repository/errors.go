package repository

import "errors"

// ErrStaleVersion is returned when an optimistic-version update matched no
// row: the aggregate changed under the caller.
var ErrStaleVersion = errors.New("stale aggregate version")
