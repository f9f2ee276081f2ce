package input

import "errors"

var (
	ErrNoDevice    = errors.New("no input device configured")
	ErrUnsupported = errors.New("not supported on this platform")
)
