package input

import "errors"

// Common input resolution errors.
var (
	// ErrInvalidInput is returned when a request specifies both or neither
	// of the inline payload and the file reference.
	ErrInvalidInput = errors.New("exactly one of image_data or file_name must be provided")

	// ErrNotFound is returned when a referenced file does not exist under
	// the uploads mount.
	ErrNotFound = errors.New("referenced file not found")
)
