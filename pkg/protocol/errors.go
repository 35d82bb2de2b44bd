package protocol

import "errors"

var (
	ErrNotConnected = errors.New("not connected")
)
