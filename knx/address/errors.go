package address

import "errors"

// ErrInvalidAddress is returned when an address string cannot be parsed,
// or a numeric field overflows its bit width.
var ErrInvalidAddress = errors.New("address: invalid address")
