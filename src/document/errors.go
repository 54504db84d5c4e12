package document

import "errors"

// ErrNotFound is returned when no document matches the requested id.
var ErrNotFound = errors.New("document not found")

// ErrUnknownField is returned when a field is not a declared relation of the model.
var ErrUnknownField = errors.New("field is not a has-and-belongs-to-many relation")
