package knxip

import (
	"bytes"
	"net"
	"testing"

	"github.com/nerrad567/knxip-core/knx/address"
	"github.com/nerrad567/knxip-core/knx/cemi"
	"github.com/nerrad567/knxip-core/knx/telegram"
)

func TestEncode_ConnectRequest(t *testing.T) {
	body := ConnectRequestBody{
		ControlHPAI: HPAI{Protocol: ProtocolUDP, IP: net.IPv4(192, 168, 42, 1), Port: 0x8495},
		DataHPAI:    HPAI{Protocol: ProtocolUDP, IP: net.IPv4(192, 168, 42, 1), Port: 0xCCA9},
		CRI:         CRI{ConnectionType: TunnelConnection, TunnelLayer: TunnelLinkLayer},
	}
	raw := Encode(ConnectRequestService, body)

	want := []byte{
		0x06, 0x10, 0x02, 0x05, 0x00, 0x1A,
		0x08, 0x01, 0xC0, 0xA8, 0x2A, 0x01, 0x84, 0x95,
		0x08, 0x01, 0xC0, 0xA8, 0x2A, 0x01, 0xCC, 0xA9,
		0x04, 0x04, 0x02, 0x00,
	}
	if !bytes.Equal(raw, want) {
		t.Fatalf("Encode() = % X, want % X", raw, want)
	}

	st, decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if st != ConnectRequestService {
		t.Errorf("ServiceType = %#x, want ConnectRequestService", st)
	}
	got, ok := decoded.(ConnectRequestBody)
	if !ok {
		t.Fatalf("decoded type = %T, want ConnectRequestBody", decoded)
	}
	if got.DataHPAI.Port != 0xCCA9 || got.CRI.TunnelLayer != TunnelLinkLayer {
		t.Errorf("got = %+v", got)
	}
}

// TestEncode_RoutingIndication_GroupWrite drives spec.md §8's "group
// write round-trip" scenario through the real pipeline a Routing
// connection uses to send a telegram (knx/routing.sendFrame): a
// telegram.Telegram is turned into CEMI bytes via cemi.FromTelegram,
// promoted to L_Data.ind the way routing overrides the outgoing
// L_Data.req message code, and only then wrapped in the KNXnet/IP
// envelope under test here — instead of hand-typing the CEMI bytes as
// an input fixture.
//
// The scenario's literal 17-byte wire fixture carries ctrl2=0xD0 (hop
// count 5), but spec.md §4.2 states the default outgoing hop count is
// 6 (ctrl2=0xE0, the same value knx/cemi's own
// TestFrame_GroupWrite_EncodeDecodeRoundTrip asserts); cemi.FromTelegram
// follows the prose default. This test therefore asserts the
// hop-count-6 byte sequence actually produced by the code, and treats
// the scenario's hop-count-5 fixture as the same kind of transcription
// slip DESIGN.md already records for scenario 1's group address label.
func TestEncode_RoutingIndication_GroupWrite(t *testing.T) {
	src := address.IndividualFromUint16(0xFFF9) // 15.15.249
	dst := address.GroupFromUint16(329)          // wire bytes 01 49

	tg := telegram.NewWrite(dst, telegram.SmallValue(1))
	tg.Source = src

	frame := cemi.FromTelegram(tg)
	frame.MessageCode = cemi.LDataInd

	cemiBytes, err := frame.Encode()
	if err != nil {
		t.Fatalf("cemi Encode: %v", err)
	}
	wantCEMI := []byte{0x29, 0x00, 0xBC, 0xE0, 0xFF, 0xF9, 0x01, 0x49, 0x01, 0x00, 0x81}
	if !bytes.Equal(cemiBytes, wantCEMI) {
		t.Fatalf("cemi Encode() = % X, want % X", cemiBytes, wantCEMI)
	}

	raw := Encode(RoutingIndicationService, RoutingIndicationBody{CEMI: cemiBytes})

	want := []byte{0x06, 0x10, 0x05, 0x30, 0x00, 0x11}
	want = append(want, wantCEMI...)
	if !bytes.Equal(raw, want) {
		t.Fatalf("Encode() = % X, want % X", raw, want)
	}

	st, decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if st != RoutingIndicationService {
		t.Errorf("ServiceType = %#x, want RoutingIndicationService", st)
	}
	got := decoded.(RoutingIndicationBody)
	if !bytes.Equal(got.CEMI, wantCEMI) {
		t.Errorf("CEMI = % X, want % X", got.CEMI, wantCEMI)
	}

	decodedFrame, err := cemi.Decode(got.CEMI)
	if err != nil {
		t.Fatalf("cemi Decode: %v", err)
	}
	backTg, err := decodedFrame.ToTelegram()
	if err != nil {
		t.Fatalf("ToTelegram: %v", err)
	}
	if backTg.Destination.ToUint16() != 329 {
		t.Errorf("Destination = %d, want 329", backTg.Destination.ToUint16())
	}
	if backTg.APCI != telegram.GroupValueWrite || !backTg.Value.Small || backTg.Value.Value6 != 1 {
		t.Errorf("telegram = %+v, want GroupValueWrite(Small=1)", backTg)
	}
}

func TestDecode_UnsupportedService(t *testing.T) {
	raw := EncodeHeader(ServiceType(0x9999), 0)
	_, _, err := Decode(raw)
	if err != ErrUnsupportedService {
		t.Errorf("Decode: err = %v, want ErrUnsupportedService", err)
	}
}

func TestDecode_TotalLengthMismatch(t *testing.T) {
	raw := EncodeHeader(RoutingIndicationService, 5)
	raw = append(raw, []byte{0x29, 0x00, 0xBC}...) // only 3 body bytes, header claims 5
	_, _, err := Decode(raw)
	if err != ErrTotalLengthMismatch {
		t.Errorf("Decode: err = %v, want ErrTotalLengthMismatch", err)
	}
}

func TestDecode_ConnectResponse(t *testing.T) {
	raw := []byte{
		0x06, 0x10, 0x02, 0x06, 0x00, 0x14,
		0x01, 0x00,
		0x08, 0x01, 0xC0, 0xA8, 0x2A, 0x0A, 0x0E, 0x57,
		0x04, 0x04, 0x11, 0xFF,
	}
	st, decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if st != ConnectResponseService {
		t.Errorf("ServiceType = %#x, want ConnectResponseService", st)
	}
	got := decoded.(ConnectResponseBody)
	if got.ChannelID != 1 || got.Status != StatusNoError {
		t.Errorf("channel/status = %d/%v", got.ChannelID, got.Status)
	}
	if got.DataHPAI.Port != 3671 || got.DataHPAI.IP.String() != "192.168.42.10" {
		t.Errorf("DataHPAI = %+v", got.DataHPAI)
	}
	if got.CRD.IndividualAddress != 4607 {
		t.Errorf("CRD.IndividualAddress = %d, want 4607", got.CRD.IndividualAddress)
	}

	reencoded := Encode(ConnectResponseService, got)
	if !bytes.Equal(reencoded, raw) {
		t.Errorf("re-encode = % X, want % X", reencoded, raw)
	}
}

func TestDecode_TunnellingAck(t *testing.T) {
	raw := []byte{0x06, 0x10, 0x04, 0x21, 0x00, 0x0A, 0x04, 0x2A, 0x17, 0x00}
	st, decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if st != TunnellingAckService {
		t.Errorf("ServiceType = %#x, want TunnellingAckService", st)
	}
	got := decoded.(TunnellingAckBody)
	if got.ChannelID != 42 || got.SeqCount != 23 || got.Status != StatusNoError {
		t.Errorf("got = %+v", got)
	}
	reencoded := Encode(TunnellingAckService, got)
	if !bytes.Equal(reencoded, raw) {
		t.Errorf("re-encode = % X, want % X", reencoded, raw)
	}
}

func TestDescriptionResponse_ParsesDeviceAndServices(t *testing.T) {
	devInfo := &DeviceInformationDIB{FriendlyName: "Gira KNX/IP-Router"}
	svc := &SuppSvcFamiliesDIB{Families: []FamilyVersion{
		{Family: FamilyRouting, Version: 1},
		{Family: FamilyTunnelling, Version: 1},
	}}
	raw := Encode(DescriptionResponse, DescriptionResponseBody{DIBs: []DIB{devInfo, svc}})

	_, decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got := decoded.(DescriptionResponseBody)

	di := DeviceInfo(got.DIBs)
	if di == nil || di.FriendlyName != "Gira KNX/IP-Router" {
		t.Fatalf("DeviceInfo = %+v", di)
	}
	sf := SuppSvcFamilies(got.DIBs)
	if sf == nil || !sf.Supports(FamilyRouting) || !sf.Supports(FamilyTunnelling) || sf.Supports(FamilyObjServer) {
		t.Fatalf("SuppSvcFamilies = %+v", sf)
	}
}

func TestHPAI_RouteBack(t *testing.T) {
	h := RouteBackHPAI(ProtocolUDP)
	if !h.IsRouteBack() {
		t.Error("IsRouteBack() = false, want true")
	}
	want := []byte{0x08, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(h.Encode(), want) {
		t.Errorf("Encode() = % X, want % X", h.Encode(), want)
	}
}
