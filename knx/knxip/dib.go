package knxip

import (
	"bytes"
	"encoding/binary"
)

// DIBType identifies the description-information-block kind inside a
// DescriptionResponse or SearchResponse.
type DIBType byte

const (
	DIBDeviceInformation    DIBType = 0x01
	DIBSuppSvcFamilies      DIBType = 0x02
	DIBTunnellingInfo       DIBType = 0x07
	DIBAdditionalDeviceInfo DIBType = 0x08
)

// ServiceFamily identifies a KNXnet/IP service family advertised in a
// SuppSvcFamilies DIB.
type ServiceFamily byte

const (
	FamilyCore       ServiceFamily = 0x02
	FamilyDeviceMgmt ServiceFamily = 0x03
	FamilyTunnelling ServiceFamily = 0x04
	FamilyRouting    ServiceFamily = 0x05
	FamilyRemoteLog  ServiceFamily = 0x06
	FamilyObjServer  ServiceFamily = 0x08
	FamilySecure     ServiceFamily = 0x09
)

// DIB is any description information block. Decode returns a
// *DeviceInformationDIB or *SuppSvcFamiliesDIB for the types this
// package interprets, and a *RawDIB for every other declared type so a
// relay does not lose unrecognized blocks.
type DIB interface {
	Type() DIBType
	Encode() []byte
}

// RawDIB preserves a DIB this package does not interpret.
type RawDIB struct {
	DIBType DIBType
	Data    []byte
}

func (d *RawDIB) Type() DIBType { return d.DIBType }

func (d *RawDIB) Encode() []byte {
	b := make([]byte, 2, 2+len(d.Data))
	b[0] = byte(2 + len(d.Data))
	b[1] = byte(d.DIBType)
	return append(b, d.Data...)
}

// DeviceInformationDIB carries the gateway's identity and addressing.
type DeviceInformationDIB struct {
	KNXMedium         byte
	DeviceStatus      byte
	IndividualAddress uint16
	ProjectInstallID  uint16
	SerialNumber      [6]byte
	MulticastAddress  [4]byte
	MACAddress        [6]byte
	FriendlyName      string // up to 30 bytes, null-padded on the wire
}

func (d *DeviceInformationDIB) Type() DIBType { return DIBDeviceInformation }

func (d *DeviceInformationDIB) Encode() []byte {
	b := make([]byte, 54)
	b[0] = 54
	b[1] = byte(DIBDeviceInformation)
	b[2] = d.KNXMedium
	b[3] = d.DeviceStatus
	binary.BigEndian.PutUint16(b[4:6], d.IndividualAddress)
	binary.BigEndian.PutUint16(b[6:8], d.ProjectInstallID)
	copy(b[8:14], d.SerialNumber[:])
	copy(b[14:18], d.MulticastAddress[:])
	copy(b[18:24], d.MACAddress[:])
	name := []byte(d.FriendlyName)
	if len(name) > 30 {
		name = name[:30]
	}
	copy(b[24:54], name)
	return b
}

func decodeDeviceInformationDIB(b []byte) (*DeviceInformationDIB, error) {
	if len(b) < 54 {
		return nil, ErrParse
	}
	d := &DeviceInformationDIB{
		KNXMedium:         b[2],
		DeviceStatus:      b[3],
		IndividualAddress: binary.BigEndian.Uint16(b[4:6]),
		ProjectInstallID:  binary.BigEndian.Uint16(b[6:8]),
	}
	copy(d.SerialNumber[:], b[8:14])
	copy(d.MulticastAddress[:], b[14:18])
	copy(d.MACAddress[:], b[18:24])
	d.FriendlyName = string(bytes.TrimRight(b[24:54], "\x00"))
	return d, nil
}

// SuppSvcFamiliesDIB lists the service families and versions a gateway
// supports.
type SuppSvcFamiliesDIB struct {
	Families []FamilyVersion
}

// FamilyVersion pairs a service family with the version it is
// supported at.
type FamilyVersion struct {
	Family  ServiceFamily
	Version byte
}

func (d *SuppSvcFamiliesDIB) Type() DIBType { return DIBSuppSvcFamilies }

func (d *SuppSvcFamiliesDIB) Encode() []byte {
	b := make([]byte, 2, 2+2*len(d.Families))
	b[1] = byte(DIBSuppSvcFamilies)
	for _, fv := range d.Families {
		b = append(b, byte(fv.Family), fv.Version)
	}
	b[0] = byte(len(b))
	return b
}

// Supports reports whether the DIB lists family f at any version.
func (d *SuppSvcFamiliesDIB) Supports(f ServiceFamily) bool {
	for _, fv := range d.Families {
		if fv.Family == f {
			return true
		}
	}
	return false
}

func decodeSuppSvcFamiliesDIB(b []byte) (*SuppSvcFamiliesDIB, error) {
	if len(b) < 2 || (len(b)-2)%2 != 0 {
		return nil, ErrParse
	}
	d := &SuppSvcFamiliesDIB{}
	for i := 2; i < len(b); i += 2 {
		d.Families = append(d.Families, FamilyVersion{Family: ServiceFamily(b[i]), Version: b[i+1]})
	}
	return d, nil
}

// DecodeDIBs parses a sequence of length-prefixed DIBs until b is
// exhausted.
func DecodeDIBs(b []byte) ([]DIB, error) {
	var out []DIB
	for len(b) > 0 {
		if len(b) < 2 {
			return nil, ErrParse
		}
		l := int(b[0])
		if l < 2 || l > len(b) {
			return nil, ErrParse
		}
		typ := DIBType(b[1])
		block := b[:l]
		var (
			d   DIB
			err error
		)
		switch typ {
		case DIBDeviceInformation:
			d, err = decodeDeviceInformationDIB(block)
		case DIBSuppSvcFamilies:
			d, err = decodeSuppSvcFamiliesDIB(block)
		default:
			d = &RawDIB{DIBType: typ, Data: append([]byte(nil), block[2:]...)}
		}
		if err != nil {
			return nil, err
		}
		out = append(out, d)
		b = b[l:]
	}
	return out, nil
}

// EncodeDIBs concatenates the wire form of each DIB.
func EncodeDIBs(dibs []DIB) []byte {
	var b []byte
	for _, d := range dibs {
		b = append(b, d.Encode()...)
	}
	return b
}
