package knxip

import "encoding/binary"

// ServiceType identifies a KNXnet/IP body.
type ServiceType uint16

const (
	SearchRequest          ServiceType = 0x0201
	SearchResponse         ServiceType = 0x0202
	DescriptionRequest     ServiceType = 0x0203
	DescriptionResponse    ServiceType = 0x0204
	ConnectRequestService  ServiceType = 0x0205
	ConnectResponseService ServiceType = 0x0206
	ConnectionStateRequest ServiceType = 0x0207
	ConnectionStateResp    ServiceType = 0x0208
	DisconnectRequest      ServiceType = 0x0209
	DisconnectResponse     ServiceType = 0x020A
	SearchRequestExtended  ServiceType = 0x020B
	SearchResponseExtended ServiceType = 0x020C

	TunnellingRequestService ServiceType = 0x0420
	TunnellingAckService     ServiceType = 0x0421
	TunnellingFeatureGet     ServiceType = 0x0422
	TunnellingFeatureResp    ServiceType = 0x0423
	TunnellingFeatureSet     ServiceType = 0x0424
	TunnellingFeatureInfo    ServiceType = 0x0425

	DeviceConfigurationRequest ServiceType = 0x0310
	DeviceConfigurationAck     ServiceType = 0x0311

	RoutingIndicationService ServiceType = 0x0530
	RoutingLostMessage       ServiceType = 0x0531
	RoutingBusyService       ServiceType = 0x0532

	SecureWrapperService   ServiceType = 0x0950
	SessionRequestService  ServiceType = 0x0951
	SessionResponseService ServiceType = 0x0952
	SessionAuthenticate    ServiceType = 0x0953
	SessionStatusService   ServiceType = 0x0954
	TimerNotifyService     ServiceType = 0x0955
)

const (
	headerLen   = 0x06
	protocolV10 = 0x10
)

// Header is the fixed 6-byte KNXnet/IP frame header.
type Header struct {
	ServiceType ServiceType
	TotalLength uint16 // header_len + len(body)
}

// EncodeHeader returns the 6-byte header for a body of bodyLen bytes.
func EncodeHeader(st ServiceType, bodyLen int) []byte {
	b := make([]byte, headerLen)
	b[0] = headerLen
	b[1] = protocolV10
	binary.BigEndian.PutUint16(b[2:4], uint16(st))
	binary.BigEndian.PutUint16(b[4:6], uint16(headerLen+bodyLen))
	return b
}

// DecodeHeader parses the 6-byte header and validates total_length
// against the supplied frame length.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < headerLen {
		return Header{}, ErrParse
	}
	if b[0] != headerLen || b[1] != protocolV10 {
		return Header{}, ErrParse
	}
	h := Header{
		ServiceType: ServiceType(binary.BigEndian.Uint16(b[2:4])),
		TotalLength: binary.BigEndian.Uint16(b[4:6]),
	}
	return h, nil
}
