package timeline

import "errors"

var (
	// ErrInvalidInput indicates invalid timeline query input.
	ErrInvalidInput = errors.New("invalid timeline input")
	// ErrUnknownSource indicates a source kind outside the known set.
	ErrUnknownSource = errors.New("unknown timeline source")
)
