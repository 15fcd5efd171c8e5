package knxip

import (
	"encoding/binary"
	"net"
)

// HostProtocol identifies the transport an HPAI's endpoint speaks.
type HostProtocol byte

const (
	ProtocolUDP HostProtocol = 0x01
	ProtocolTCP HostProtocol = 0x02
)

const hpaiLen = 0x08

// HPAI is a Host Protocol Address Information block: an IPv4 endpoint
// plus the transport protocol it is reached over.
type HPAI struct {
	Protocol HostProtocol
	IP       net.IP // 4-byte form; zero-value IP encodes route-back
	Port     uint16
}

// RouteBackHPAI is the all-zero HPAI that signals the peer to reply to
// the UDP flow the request arrived on instead of an explicit endpoint.
func RouteBackHPAI(proto HostProtocol) HPAI {
	return HPAI{Protocol: proto, IP: net.IPv4zero, Port: 0}
}

// IsRouteBack reports whether h is the zero-endpoint form.
func (h HPAI) IsRouteBack() bool {
	return h.Port == 0 && (h.IP == nil || h.IP.IsUnspecified())
}

// Encode serializes the HPAI to its fixed 8-byte wire form.
func (h HPAI) Encode() []byte {
	b := make([]byte, hpaiLen)
	b[0] = hpaiLen
	b[1] = byte(h.Protocol)
	ip4 := h.IP.To4()
	if ip4 == nil {
		ip4 = net.IPv4zero.To4()
	}
	copy(b[2:6], ip4)
	binary.BigEndian.PutUint16(b[6:8], h.Port)
	return b
}

// DecodeHPAI parses an HPAI from the start of b and returns the number
// of bytes consumed.
func DecodeHPAI(b []byte) (HPAI, int, error) {
	if len(b) < hpaiLen {
		return HPAI{}, 0, ErrParse
	}
	l := int(b[0])
	if l != hpaiLen || len(b) < l {
		return HPAI{}, 0, ErrParse
	}
	h := HPAI{
		Protocol: HostProtocol(b[1]),
		IP:       net.IPv4(b[2], b[3], b[4], b[5]),
		Port:     binary.BigEndian.Uint16(b[6:8]),
	}
	return h, hpaiLen, nil
}
