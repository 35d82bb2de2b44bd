package decode

import "errors"

var (
	ErrUnknownFormat = errors.New("unrecognized interval format")
	ErrNotLoaded     = errors.New("no interval loaded")
)
