package transport

import "errors"

var (
	// ErrNotConnected is returned when Send or Stop is called before a
	// successful Connect.
	ErrNotConnected = errors.New("transport: not connected")

	// ErrAlreadyConnected is returned by Connect when called twice.
	ErrAlreadyConnected = errors.New("transport: already connected")

	// ErrClosed is returned by Send once Stop has run.
	ErrClosed = errors.New("transport: closed")
)
