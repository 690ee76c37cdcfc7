package builder

import "errors"

// ErrDuplicateID is returned when two source directories declare the same plugin id
var ErrDuplicateID = errors.New("duplicate plugin id")
