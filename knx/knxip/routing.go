package knxip

import "encoding/binary"

// RoutingIndicationBody carries a CEMI frame over multicast; there is
// no connection header, unlike the tunnelling and device-config
// services.
type RoutingIndicationBody struct {
	CEMI []byte
}

func (b RoutingIndicationBody) Encode() []byte { return append([]byte(nil), b.CEMI...) }

func decodeRoutingIndicationBody(b []byte) (RoutingIndicationBody, error) {
	return RoutingIndicationBody{CEMI: append([]byte(nil), b...)}, nil
}

// RoutingLostMessageBody reports that the sender's outgoing queue
// dropped frames.
type RoutingLostMessageBody struct {
	DeviceState byte
	LostCount   uint16
}

func (b RoutingLostMessageBody) Encode() []byte {
	out := make([]byte, 4)
	out[0] = connectionHeaderLen
	out[1] = b.DeviceState
	binary.BigEndian.PutUint16(out[2:4], b.LostCount)
	return out
}

func decodeRoutingLostMessageBody(b []byte) (RoutingLostMessageBody, error) {
	if len(b) < 4 {
		return RoutingLostMessageBody{}, ErrParse
	}
	return RoutingLostMessageBody{DeviceState: b[1], LostCount: binary.BigEndian.Uint16(b[2:4])}, nil
}

// RoutingBusyBody asks senders to back off for WaitTime milliseconds.
type RoutingBusyBody struct {
	DeviceState byte
	WaitTime    uint16 // ms
	ControlByte byte   // reserved for slowdown scale extensions
}

func (b RoutingBusyBody) Encode() []byte {
	out := make([]byte, 6)
	out[0] = connectionHeaderLen + 2
	out[1] = b.DeviceState
	binary.BigEndian.PutUint16(out[2:4], b.WaitTime)
	binary.BigEndian.PutUint16(out[4:6], uint16(b.ControlByte))
	return out
}

func decodeRoutingBusyBody(b []byte) (RoutingBusyBody, error) {
	if len(b) < 6 {
		return RoutingBusyBody{}, ErrParse
	}
	return RoutingBusyBody{
		DeviceState: b[1],
		WaitTime:    binary.BigEndian.Uint16(b[2:4]),
		ControlByte: byte(binary.BigEndian.Uint16(b[4:6])),
	}, nil
}
