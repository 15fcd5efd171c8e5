package cemi

// MessageCode identifies the CEMI service the frame carries.
type MessageCode byte

// Message codes the codec must round-trip. Only the L_Data_* family is
// generated by knx/routing and knx/tunnel; the others pass through
// Decode/Encode unchanged so a gateway that sees them (bus monitor,
// poll-data, raw link-layer access) does not lose data.
const (
	LDataReq     MessageCode = 0x11
	LDataCon     MessageCode = 0x2E
	LDataInd     MessageCode = 0x29
	LPollDataReq MessageCode = 0x13
	LPollDataCon MessageCode = 0x25
	LRawReq      MessageCode = 0x10
	LRawInd      MessageCode = 0x2D
	LRawCon      MessageCode = 0x2F
)

// String returns a short mnemonic for known codes, or a hex fallback.
func (mc MessageCode) String() string {
	switch mc {
	case LDataReq:
		return "L_Data.req"
	case LDataCon:
		return "L_Data.con"
	case LDataInd:
		return "L_Data.ind"
	case LPollDataReq:
		return "L_Poll_Data.req"
	case LPollDataCon:
		return "L_Poll_Data.con"
	case LRawReq:
		return "L_Raw.req"
	case LRawInd:
		return "L_Raw.ind"
	case LRawCon:
		return "L_Raw.con"
	default:
		return "unknown"
	}
}

// IsLData reports whether mc is one of the L_Data_* family this package
// fully decodes into application fields (as opposed to raw/poll codes,
// which round-trip as opaque bytes beyond the message code).
func (mc MessageCode) IsLData() bool {
	return mc == LDataReq || mc == LDataCon || mc == LDataInd
}

// FrameType distinguishes standard (≤15 octet APDU) from extended CEMI
// frames.
type FrameType int

const (
	Standard FrameType = iota
	Extended
)

// Priority is the KNX bus access priority carried in control field 1.
type Priority int

const (
	PrioritySystem Priority = iota
	PriorityNormal
	PriorityUrgent
	PriorityLow
)

// Confirm is the L_Data.con confirmation outcome carried in control
// field 1 bit 0.
type Confirm int

const (
	ConfirmOK Confirm = iota
	ConfirmError
)

// AddressType distinguishes an individual from a group destination
// address, carried in control field 2 bit 7.
type AddressType int

const (
	AddressIndividual AddressType = iota
	AddressGroup
)

// Control1 is the first CEMI control octet.
type Control1 struct {
	FrameType   FrameType
	NotRepeated bool
	Broadcast   bool // true = system/domain broadcast
	Priority    Priority
	AckRequest  bool
	Confirm     Confirm
}

// DefaultControl1 is the control field 1 used for outgoing L_Data.req
// frames per the standard application-layer defaults: standard frame,
// not repeated, broadcast, low priority, no ACK requested, confirm OK.
func DefaultControl1() Control1 {
	return Control1{
		FrameType:   Standard,
		NotRepeated: true,
		Broadcast:   true,
		Priority:    PriorityLow,
		AckRequest:  false,
		Confirm:     ConfirmOK,
	}
}

// Encode packs Control1 into its wire octet.
//
//	bit 7: frame type (1=standard, 0=extended)
//	bit 6: reserved (0)
//	bit 5: repeat flag (1=not repeated)
//	bit 4: broadcast (1=system broadcast... wire value 1 means "broadcast", see decode)
//	bit 3-2: priority
//	bit 1: ack request
//	bit 0: confirm (0=no error)
func (c Control1) Encode() byte {
	var b byte
	if c.FrameType == Standard {
		b |= 1 << 7
	}
	if c.NotRepeated {
		b |= 1 << 5
	}
	if c.Broadcast {
		b |= 1 << 4
	}
	b |= byte(c.Priority&0x3) << 2
	if c.AckRequest {
		b |= 1 << 1
	}
	if c.Confirm == ConfirmError {
		b |= 1
	}
	return b
}

// DecodeControl1 unpacks a Control1 from its wire octet.
func DecodeControl1(b byte) Control1 {
	c := Control1{
		NotRepeated: b&(1<<5) != 0,
		Broadcast:   b&(1<<4) != 0,
		Priority:    Priority((b >> 2) & 0x3),
		AckRequest:  b&(1<<1) != 0,
	}
	if b&(1<<7) != 0 {
		c.FrameType = Standard
	} else {
		c.FrameType = Extended
	}
	if b&1 != 0 {
		c.Confirm = ConfirmError
	} else {
		c.Confirm = ConfirmOK
	}
	return c
}

// Control2 is the second CEMI control octet.
type Control2 struct {
	AddressType AddressType
	HopCount    uint8 // 3 bits, 0-7
	ExtFormat   uint8 // 4 bits, extended frame format
}

// DefaultHopCount is the standard routing hop count for outgoing frames.
const DefaultHopCount = 6

// Encode packs Control2 into its wire octet.
//
//	bit 7: address type (1=group, 0=individual)
//	bit 6-4: hop count
//	bit 3-0: extended frame format
func (c Control2) Encode() byte {
	var b byte
	if c.AddressType == AddressGroup {
		b |= 1 << 7
	}
	b |= (c.HopCount & 0x7) << 4
	b |= c.ExtFormat & 0xF
	return b
}

// DecodeControl2 unpacks a Control2 from its wire octet.
func DecodeControl2(b byte) Control2 {
	at := AddressIndividual
	if b&(1<<7) != 0 {
		at = AddressGroup
	}
	return Control2{
		AddressType: at,
		HopCount:    (b >> 4) & 0x7,
		ExtFormat:   b & 0xF,
	}
}
