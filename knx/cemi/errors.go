package cemi

import "errors"

var (
	// ErrTruncated is returned when a CEMI frame is too short to contain
	// its required fixed fields.
	ErrTruncated = errors.New("cemi: frame truncated")

	// ErrLengthMismatch is returned when the NPDU length byte does not
	// match 1 + len(extra payload bytes).
	ErrLengthMismatch = errors.New("cemi: npdu length mismatch")

	// ErrUnsupportedMessageCode is returned by ToTelegram when the frame's
	// message code has no Telegram representation.
	ErrUnsupportedMessageCode = errors.New("cemi: unsupported message code for telegram conversion")

	// ErrPayloadTooLong is returned when encoding a payload longer than
	// the 14-octet standard-frame limit.
	ErrPayloadTooLong = errors.New("cemi: payload exceeds standard frame limit")
)
