package foreignkeys

import "errors"

// ErrMisconfigured is returned (or panicked with) when a relation cannot be resolved.
var ErrMisconfigured = errors.New("foreign key relation is misconfigured")

// ErrInvalidKey is returned when a stored value cannot be converted into a key.
var ErrInvalidKey = errors.New("invalid foreign key value")
