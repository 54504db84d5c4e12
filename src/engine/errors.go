package engine

import "errors"

var (
	ErrNotAnArray          = errors.New("field is not an array")
	ErrUnsupportedID       = errors.New("document ids must be strings")
	ErrUnsupportedOperator = errors.New("unsupported update operator")
	ErrDuplicateID         = errors.New("document already exists")
	ErrChecksumMismatch    = errors.New("bundle file checksum mismatch")
)
