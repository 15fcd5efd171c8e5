package cemi

import (
	"github.com/nerrad567/knxip-core/knx/address"
	"github.com/nerrad567/knxip-core/knx/telegram"
)

// maxStandardAPDU is the largest payload a standard (non-extended)
// frame's NPDU length field can express.
const maxStandardAPDU = 15

// Frame is a decoded CEMI message. AddInfo is preserved verbatim on
// decode and re-emitted on encode so additional-information blocks
// (e.g. relative timestamp, busmonitor status) this package does not
// interpret survive a relay round-trip unchanged.
type Frame struct {
	MessageCode MessageCode
	AddInfo     []byte
	Control1    Control1
	Control2    Control2
	Source      address.Individual
	Destination uint16 // raw; individual or group per Control2.AddressType
	APCI        APCI
}

// Encode serializes the frame to its CEMI wire representation.
func (f Frame) Encode() ([]byte, error) {
	hi, lo, extra := f.APCI.encode()
	if len(extra) > maxStandardAPDU-1 {
		return nil, ErrPayloadTooLong
	}

	buf := make([]byte, 0, 11+len(f.AddInfo)+len(extra))
	buf = append(buf, byte(f.MessageCode))
	buf = append(buf, byte(len(f.AddInfo)))
	buf = append(buf, f.AddInfo...)
	buf = append(buf, f.Control1.Encode())
	buf = append(buf, f.Control2.Encode())
	buf = append(buf, byte(f.Source.ToUint16()>>8), byte(f.Source.ToUint16()))
	buf = append(buf, byte(f.Destination>>8), byte(f.Destination))
	buf = append(buf, byte(1+len(extra)))
	buf = append(buf, hi, lo)
	buf = append(buf, extra...)
	return buf, nil
}

// Decode parses a CEMI wire frame.
func Decode(b []byte) (Frame, error) {
	if len(b) < 2 {
		return Frame{}, ErrTruncated
	}
	f := Frame{MessageCode: MessageCode(b[0])}
	addInfoLen := int(b[1])
	pos := 2
	if len(b) < pos+addInfoLen {
		return Frame{}, ErrTruncated
	}
	if addInfoLen > 0 {
		f.AddInfo = append([]byte(nil), b[pos:pos+addInfoLen]...)
	}
	pos += addInfoLen

	if len(b) < pos+7 {
		return Frame{}, ErrTruncated
	}
	f.Control1 = DecodeControl1(b[pos])
	f.Control2 = DecodeControl2(b[pos+1])
	f.Source = address.IndividualFromUint16(uint16(b[pos+2])<<8 | uint16(b[pos+3]))
	f.Destination = uint16(b[pos+4])<<8 | uint16(b[pos+5])
	npduLen := int(b[pos+6])
	pos += 7

	if npduLen < 1 {
		return Frame{}, ErrLengthMismatch
	}
	extraLen := npduLen - 1
	if len(b) != pos+2+extraLen {
		return Frame{}, ErrLengthMismatch
	}
	var extra []byte
	if extraLen > 0 {
		extra = append([]byte(nil), b[pos+2:pos+2+extraLen]...)
	}
	f.APCI = decodeAPCI(b[pos], b[pos+1], extra)
	return f, nil
}

// ToTelegram converts an L_Data frame with a group destination into a
// telegram.Telegram. It returns ErrUnsupportedMessageCode for message
// codes with no telegram representation, and nil, nil for individual-
// addressed or non-group-value frames (not every L_Data frame a
// gateway observes is application data this package models).
func (f Frame) ToTelegram() (*telegram.Telegram, error) {
	if !f.MessageCode.IsLData() {
		return nil, ErrUnsupportedMessageCode
	}
	if f.Control2.AddressType != AddressGroup {
		return nil, nil
	}

	dir := telegram.Incoming
	if f.MessageCode == LDataReq {
		dir = telegram.Outgoing
	}

	var kind telegram.APCIKind
	var val telegram.Value
	switch f.APCI.Command {
	case CommandGroupValueRead:
		kind = telegram.GroupValueRead
	case CommandGroupValueWrite:
		kind = telegram.GroupValueWrite
	case CommandGroupValueResponse:
		kind = telegram.GroupValueResponse
	default:
		return nil, nil
	}
	if kind != telegram.GroupValueRead {
		if len(f.APCI.Extra) > 0 {
			val = telegram.BytesValue(f.APCI.Extra)
		} else {
			val = telegram.SmallValue(f.APCI.Short)
		}
	}

	return &telegram.Telegram{
		Direction:   dir,
		Source:      f.Source,
		Destination: address.GroupFromUint16(f.Destination),
		APCI:        kind,
		Value:       val,
	}, nil
}

// FromTelegram builds an outgoing L_Data.req frame for t, using the
// standard application-layer control field defaults.
func FromTelegram(t telegram.Telegram) Frame {
	a := APCI{}
	switch t.APCI {
	case telegram.GroupValueRead:
		a.Command = CommandGroupValueRead
	case telegram.GroupValueWrite:
		a.Command = CommandGroupValueWrite
	case telegram.GroupValueResponse:
		a.Command = CommandGroupValueResponse
	}
	if t.APCI != telegram.GroupValueRead {
		if t.Value.Small {
			a.Short = t.Value.Value6 & 0x3F
		} else {
			a.Extra = t.Value.Bytes
		}
	}

	return Frame{
		MessageCode: LDataReq,
		Control1:    DefaultControl1(),
		Control2: Control2{
			AddressType: AddressGroup,
			HopCount:    DefaultHopCount,
		},
		Source:      t.Source,
		Destination: t.Destination.ToUint16(),
		APCI:        a,
	}
}
