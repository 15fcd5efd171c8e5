package secure

import "errors"

// ErrMACMismatch is returned when a computed MAC does not match the
// one carried on the wire. Per the Secure validation error kind, this
// is always a discard-and-log condition for SecureWrapper/TimerNotify
// frames; only during the session handshake does it abort a connect.
var ErrMACMismatch = errors.New("secure: MAC mismatch")

// ErrReplayed is returned when an incoming sequence counter is not
// strictly greater than the last accepted one for its session.
var ErrReplayed = errors.New("secure: sequence counter replayed")
