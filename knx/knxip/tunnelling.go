package knxip

// connectionHeaderLen is the fixed structure-length byte shared by the
// tunnelling and device-configuration connection headers.
const connectionHeaderLen = 0x04

// TunnellingRequestBody wraps a CEMI frame for delivery over an
// established tunnel connection.
type TunnellingRequestBody struct {
	ChannelID uint8
	SeqCount  uint8
	CEMI      []byte
}

func (b TunnellingRequestBody) Encode() []byte {
	out := []byte{connectionHeaderLen, b.ChannelID, b.SeqCount, 0x00}
	return append(out, b.CEMI...)
}

func decodeTunnellingRequestBody(b []byte) (TunnellingRequestBody, error) {
	if len(b) < 4 || b[0] != connectionHeaderLen {
		return TunnellingRequestBody{}, ErrParse
	}
	return TunnellingRequestBody{
		ChannelID: b[1],
		SeqCount:  b[2],
		CEMI:      append([]byte(nil), b[4:]...),
	}, nil
}

// TunnellingAckBody acknowledges one TunnellingRequestBody by sequence
// counter.
type TunnellingAckBody struct {
	ChannelID uint8
	SeqCount  uint8
	Status    StatusCode
}

func (b TunnellingAckBody) Encode() []byte {
	return []byte{connectionHeaderLen, b.ChannelID, b.SeqCount, byte(b.Status)}
}

func decodeTunnellingAckBody(b []byte) (TunnellingAckBody, error) {
	if len(b) < 4 || b[0] != connectionHeaderLen {
		return TunnellingAckBody{}, ErrParse
	}
	return TunnellingAckBody{ChannelID: b[1], SeqCount: b[2], Status: StatusCode(b[3])}, nil
}

// DeviceConfigurationRequestBody carries an M_PropRead/Write CEMI
// frame over the device-management connection. The CEMI payload is
// opaque here; knx/cemi's raw message codes round-trip it.
type DeviceConfigurationRequestBody struct {
	ChannelID uint8
	SeqCount  uint8
	CEMI      []byte
}

func (b DeviceConfigurationRequestBody) Encode() []byte {
	out := []byte{connectionHeaderLen, b.ChannelID, b.SeqCount, 0x00}
	return append(out, b.CEMI...)
}

func decodeDeviceConfigurationRequestBody(b []byte) (DeviceConfigurationRequestBody, error) {
	if len(b) < 4 || b[0] != connectionHeaderLen {
		return DeviceConfigurationRequestBody{}, ErrParse
	}
	return DeviceConfigurationRequestBody{
		ChannelID: b[1],
		SeqCount:  b[2],
		CEMI:      append([]byte(nil), b[4:]...),
	}, nil
}

// DeviceConfigurationAckBody acknowledges a DeviceConfigurationRequestBody.
type DeviceConfigurationAckBody struct {
	ChannelID uint8
	SeqCount  uint8
	Status    StatusCode
}

func (b DeviceConfigurationAckBody) Encode() []byte {
	return []byte{connectionHeaderLen, b.ChannelID, b.SeqCount, byte(b.Status)}
}

func decodeDeviceConfigurationAckBody(b []byte) (DeviceConfigurationAckBody, error) {
	if len(b) < 4 || b[0] != connectionHeaderLen {
		return DeviceConfigurationAckBody{}, ErrParse
	}
	return DeviceConfigurationAckBody{ChannelID: b[1], SeqCount: b[2], Status: StatusCode(b[3])}, nil
}

// TunnellingFeatureID identifies a tunnelling feature (bus status,
// connection info, etc.) in the Get/Set/Response/Info services.
type TunnellingFeatureID byte

const (
	FeatureSupportedEMIType    TunnellingFeatureID = 0x01
	FeatureBusConnectionStatus TunnellingFeatureID = 0x04
	FeatureInfoServiceEnable   TunnellingFeatureID = 0x05
)

// TunnellingFeatureBody is the shared shape of Get/Response/Set/Info:
// a channel, a feature identifier, and (for Set/Response/Info) a
// value.
type TunnellingFeatureBody struct {
	ChannelID uint8
	SeqCount  uint8
	Feature   TunnellingFeatureID
	Status    StatusCode
	Value     []byte
}

func (b TunnellingFeatureBody) Encode() []byte {
	out := []byte{connectionHeaderLen, b.ChannelID, b.SeqCount, 0x00, byte(b.Feature), byte(b.Status)}
	return append(out, b.Value...)
}

func decodeTunnellingFeatureBody(b []byte) (TunnellingFeatureBody, error) {
	if len(b) < 6 || b[0] != connectionHeaderLen {
		return TunnellingFeatureBody{}, ErrParse
	}
	return TunnellingFeatureBody{
		ChannelID: b[1],
		SeqCount:  b[2],
		Feature:   TunnellingFeatureID(b[4]),
		Status:    StatusCode(b[5]),
		Value:     append([]byte(nil), b[6:]...),
	}, nil
}
