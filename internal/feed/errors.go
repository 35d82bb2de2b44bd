package feed

import "errors"

var (
	// ErrStopped is returned by operations on a stopped server
	ErrStopped = errors.New("feed server stopped")
)
