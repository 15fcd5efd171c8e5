package knxip

// StatusCode is the one-byte result code carried in *Response and *Ack
// bodies.
type StatusCode byte

const (
	StatusNoError             StatusCode = 0x00
	StatusHostProtocolType    StatusCode = 0x01
	StatusVersionNotSupported StatusCode = 0x02
	StatusSequenceNumber      StatusCode = 0x04

	StatusConnectionID       StatusCode = 0x21
	StatusConnectionType     StatusCode = 0x22
	StatusConnectionOption   StatusCode = 0x23
	StatusNoMoreConnections  StatusCode = 0x24
	StatusDataConnection     StatusCode = 0x26
	StatusKNXConnection      StatusCode = 0x27
	StatusTunnellingLayer    StatusCode = 0x29
)

// String renders a short mnemonic for known codes.
func (s StatusCode) String() string {
	switch s {
	case StatusNoError:
		return "E_NO_ERROR"
	case StatusHostProtocolType:
		return "E_HOST_PROTOCOL_TYPE"
	case StatusVersionNotSupported:
		return "E_VERSION_NOT_SUPPORTED"
	case StatusSequenceNumber:
		return "E_SEQUENCE_NUMBER"
	case StatusConnectionID:
		return "E_CONNECTION_ID"
	case StatusConnectionType:
		return "E_CONNECTION_TYPE"
	case StatusConnectionOption:
		return "E_CONNECTION_OPTION"
	case StatusNoMoreConnections:
		return "E_NO_MORE_CONNECTIONS"
	case StatusDataConnection:
		return "E_DATA_CONNECTION"
	case StatusKNXConnection:
		return "E_KNX_CONNECTION"
	case StatusTunnellingLayer:
		return "E_TUNNELLING_LAYER"
	default:
		return "unknown"
	}
}

// Ok reports whether the code represents success.
func (s StatusCode) Ok() bool { return s == StatusNoError }

// Secure session status codes (SessionStatus body).
const (
	StatusAuthenticationSuccess StatusCode = 0x00
	StatusAuthenticationFailed  StatusCode = 0x03 // per AN159 SESSION_STATUS enumeration gap
	StatusClose                 StatusCode = 0x01
	StatusKeepalive             StatusCode = 0x02
	StatusUnauthenticated       StatusCode = 0x04
	StatusTimeout               StatusCode = 0x05
)
