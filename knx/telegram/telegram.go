// Package telegram defines the high-level message applications exchange
// with the core through the Telegram inbox/outbox, independent of the
// CEMI/KNXnet/IP wire encodings in knx/cemi and knx/knxip.
package telegram

import "github.com/nerrad567/knxip-core/knx/address"

// Direction records whether a Telegram was received from the bus or is
// being submitted for transmission.
type Direction int

const (
	Incoming Direction = iota
	Outgoing
)

func (d Direction) String() string {
	if d == Incoming {
		return "incoming"
	}
	return "outgoing"
}

// APCIKind is the group-value service a Telegram carries.
type APCIKind int

const (
	GroupValueRead APCIKind = iota
	GroupValueWrite
	GroupValueResponse
)

func (k APCIKind) String() string {
	switch k {
	case GroupValueRead:
		return "GroupValueRead"
	case GroupValueWrite:
		return "GroupValueWrite"
	case GroupValueResponse:
		return "GroupValueResponse"
	default:
		return "unknown"
	}
}

// Value is the payload of a GroupValueWrite or GroupValueResponse. It is
// either a 6-bit value carried in the APCI octet itself, or a byte array
// of 1-14 octets carried after it — never both, matching the wire
// encoding's mutually exclusive short/long forms.
type Value struct {
	Small  bool
	Value6 uint8  // valid when Small; 0-63
	Bytes  []byte // valid when !Small; 1-14 bytes
}

// SmallValue builds a 6-bit Value. v is masked to 6 bits.
func SmallValue(v uint8) Value {
	return Value{Small: true, Value6: v & 0x3F}
}

// BytesValue builds a byte-array Value.
func BytesValue(b []byte) Value {
	return Value{Small: false, Bytes: b}
}

// Telegram is the application-level message exchanged via the core's
// Telegram inbox and outbox (spec §6).
type Telegram struct {
	Direction   Direction
	Source      address.Individual // populated by the core on send; set on receipt
	Destination address.Group
	APCI        APCIKind
	Value       Value // zero value for GroupValueRead
}

// NewRead builds an outgoing GroupValueRead telegram.
func NewRead(dest address.Group) Telegram {
	return Telegram{Direction: Outgoing, Destination: dest, APCI: GroupValueRead}
}

// NewWrite builds an outgoing GroupValueWrite telegram.
func NewWrite(dest address.Group, v Value) Telegram {
	return Telegram{Direction: Outgoing, Destination: dest, APCI: GroupValueWrite, Value: v}
}

// NewResponse builds an outgoing GroupValueResponse telegram.
func NewResponse(dest address.Group, v Value) Telegram {
	return Telegram{Direction: Outgoing, Destination: dest, APCI: GroupValueResponse, Value: v}
}
