package knxip

import "errors"

var (
	// ErrParse is returned when a frame or sub-structure is malformed
	// or too short for its declared length.
	ErrParse = errors.New("knxip: parse error")

	// ErrUnsupportedService is returned by Decode for a recognized
	// header but a service_type this package does not implement a body
	// for. Distinct from ErrParse: the header itself was well-formed.
	ErrUnsupportedService = errors.New("knxip: unsupported service type")

	// ErrTotalLengthMismatch is returned when the header's declared
	// total_length does not match header_len + len(body).
	ErrTotalLengthMismatch = errors.New("knxip: total length mismatch")
)
