package jam

import "errors"

var (
	// ErrNotConnected is returned when an operation needs a live session
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyConnected is returned by Connect on a connected client
	ErrAlreadyConnected = errors.New("already connected")

	// ErrUnknownTrack is returned for a key with no track in the mix
	ErrUnknownTrack = errors.New("unknown track")

	// ErrDisconnected is reported through OnError when the server hangs up
	ErrDisconnected = errors.New("connection lost")
)
