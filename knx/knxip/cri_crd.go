package knxip

// ConnectionType identifies the kind of logical connection a
// ConnectRequest establishes.
type ConnectionType byte

const (
	TunnelConnection        ConnectionType = 0x04
	DeviceMgmtConnection    ConnectionType = 0x03
	RemoteLoggingConnection ConnectionType = 0x06
	RemoteConfigConnection  ConnectionType = 0x07
	ObjectServerConnection  ConnectionType = 0x08
)

// TunnelLayer identifies the KNX data-link layer a tunnel connection
// exposes.
type TunnelLayer byte

const (
	TunnelLinkLayer  TunnelLayer = 0x02
	TunnelRawLayer   TunnelLayer = 0x04
	TunnelBusMonitor TunnelLayer = 0x80
)

// CRI is Connection Request Information, carried in ConnectRequest.
// Only the tunnelling CRI (connection type + KNX layer + reserved
// byte) is modeled; other connection types round-trip their payload
// opaquely via Extra.
type CRI struct {
	ConnectionType ConnectionType
	TunnelLayer    TunnelLayer
	Extra          []byte
}

// Encode serializes the CRI to its length-prefixed wire form.
func (c CRI) Encode() []byte {
	if c.ConnectionType == TunnelConnection {
		return []byte{0x04, byte(c.ConnectionType), byte(c.TunnelLayer), 0x00}
	}
	b := make([]byte, 2, 2+len(c.Extra))
	b[1] = byte(c.ConnectionType)
	b = append(b, c.Extra...)
	b[0] = byte(len(b))
	return b
}

// DecodeCRI parses a CRI from the start of b and returns bytes consumed.
func DecodeCRI(b []byte) (CRI, int, error) {
	if len(b) < 2 {
		return CRI{}, 0, ErrParse
	}
	l := int(b[0])
	if l < 2 || len(b) < l {
		return CRI{}, 0, ErrParse
	}
	c := CRI{ConnectionType: ConnectionType(b[1])}
	if c.ConnectionType == TunnelConnection && l >= 4 {
		c.TunnelLayer = TunnelLayer(b[2])
	} else if l > 2 {
		c.Extra = append([]byte(nil), b[2:l]...)
	}
	return c, l, nil
}

// CRD is Connection Response Data, carried in ConnectResponse. For
// tunnel connections it carries the gateway-assigned individual
// address.
type CRD struct {
	ConnectionType    ConnectionType
	IndividualAddress uint16
	Extra             []byte
}

// Encode serializes the CRD to its length-prefixed wire form.
func (c CRD) Encode() []byte {
	if c.ConnectionType == TunnelConnection {
		return []byte{0x04, byte(c.ConnectionType), byte(c.IndividualAddress >> 8), byte(c.IndividualAddress)}
	}
	b := make([]byte, 2, 2+len(c.Extra))
	b[1] = byte(c.ConnectionType)
	b = append(b, c.Extra...)
	b[0] = byte(len(b))
	return b
}

// DecodeCRD parses a CRD from the start of b and returns bytes consumed.
func DecodeCRD(b []byte) (CRD, int, error) {
	if len(b) < 2 {
		return CRD{}, 0, ErrParse
	}
	l := int(b[0])
	if l < 2 || len(b) < l {
		return CRD{}, 0, ErrParse
	}
	c := CRD{ConnectionType: ConnectionType(b[1])}
	if c.ConnectionType == TunnelConnection && l >= 4 {
		c.IndividualAddress = uint16(b[2])<<8 | uint16(b[3])
	} else if l > 2 {
		c.Extra = append([]byte(nil), b[2:l]...)
	}
	return c, l, nil
}
