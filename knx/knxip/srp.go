package knxip

// SRPType identifies a Search Request Parameter kind inside a
// SearchRequestExtended.
type SRPType byte

const (
	SRPSelectByProgrammingMode SRPType = 0x01
	SRPSelectByMAC             SRPType = 0x02
	SRPSelectByService         SRPType = 0x03
	SRPRequestDIBs             SRPType = 0x04
)

// SRP is a Search Request Parameter: a mandatory flag, a type, and a
// type-specific data payload.
type SRP struct {
	Mandatory bool
	Type      SRPType
	Data      []byte
}

// Encode serializes the SRP to its length-prefixed wire form.
func (s SRP) Encode() []byte {
	b := make([]byte, 2, 2+len(s.Data))
	typeByte := byte(s.Type) << 1
	if s.Mandatory {
		typeByte |= 1
	}
	b[1] = typeByte
	b = append(b, s.Data...)
	b[0] = byte(len(b))
	return b
}

// DecodeSRPs parses a sequence of length-prefixed SRPs until b is
// exhausted.
func DecodeSRPs(b []byte) ([]SRP, error) {
	var out []SRP
	for len(b) > 0 {
		if len(b) < 2 {
			return nil, ErrParse
		}
		l := int(b[0])
		if l < 2 || l > len(b) {
			return nil, ErrParse
		}
		s := SRP{
			Mandatory: b[1]&0x01 != 0,
			Type:      SRPType(b[1] >> 1),
			Data:      append([]byte(nil), b[2:l]...),
		}
		out = append(out, s)
		b = b[l:]
	}
	return out, nil
}

// EncodeSRPs concatenates the wire form of each SRP.
func EncodeSRPs(srps []SRP) []byte {
	var b []byte
	for _, s := range srps {
		b = append(b, s.Encode()...)
	}
	return b
}
