package cemi

import (
	"bytes"
	"testing"

	"github.com/nerrad567/knxip-core/knx/address"
	"github.com/nerrad567/knxip-core/knx/telegram"
)

func TestFrame_GroupWrite_EncodeDecodeRoundTrip(t *testing.T) {
	src, _ := address.ParseIndividual("1.1.1")
	dst := address.GroupFromUint16(329)
	tg := telegram.NewWrite(dst, telegram.SmallValue(1))
	tg.Source = src

	f := FromTelegram(tg)
	raw, err := f.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// mc=0x11, add_info_len=0, ctrl1=0xBC, ctrl2=0xE0 (group dest, hop
	// count 6), src=0x1101, dst=0x0149, npdu_len=1, tpci_apci=0x00,0x81.
	want := []byte{0x11, 0x00, 0xBC, 0xE0, 0x11, 0x01, 0x01, 0x49, 0x01, 0x00, 0x81}
	if !bytes.Equal(raw, want) {
		t.Fatalf("Encode() = % X, want % X", raw, want)
	}

	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	back, err := got.ToTelegram()
	if err != nil {
		t.Fatalf("ToTelegram: %v", err)
	}
	if back.Destination.ToUint16() != 329 {
		t.Errorf("Destination = %d, want 329", back.Destination.ToUint16())
	}
	if back.APCI != telegram.GroupValueWrite {
		t.Errorf("APCI = %v, want GroupValueWrite", back.APCI)
	}
	if !back.Value.Small || back.Value.Value6 != 1 {
		t.Errorf("Value = %+v, want Small=true Value6=1", back.Value)
	}
}

func TestFrame_GroupRead(t *testing.T) {
	dst := address.GroupFromUint16(1)
	tg := telegram.NewRead(dst)
	f := FromTelegram(tg)
	raw, err := f.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	back, err := got.ToTelegram()
	if err != nil {
		t.Fatalf("ToTelegram: %v", err)
	}
	if back.APCI != telegram.GroupValueRead {
		t.Errorf("APCI = %v, want GroupValueRead", back.APCI)
	}
}

func TestFrame_LongFormValue(t *testing.T) {
	dst := address.GroupFromUint16(500)
	tg := telegram.NewWrite(dst, telegram.BytesValue([]byte{0x01, 0x02, 0x03}))
	f := FromTelegram(tg)
	raw, err := f.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	back, err := got.ToTelegram()
	if err != nil {
		t.Fatalf("ToTelegram: %v", err)
	}
	if back.Value.Small {
		t.Fatal("Value.Small = true, want false")
	}
	if !bytes.Equal(back.Value.Bytes, []byte{0x01, 0x02, 0x03}) {
		t.Errorf("Value.Bytes = % X, want 01 02 03", back.Value.Bytes)
	}
}

func TestDecode_Truncated(t *testing.T) {
	if _, err := Decode([]byte{0x11}); err != ErrTruncated {
		t.Errorf("Decode: err = %v, want ErrTruncated", err)
	}
}

func TestDecode_LengthMismatch(t *testing.T) {
	raw := []byte{0x11, 0x00, 0xBC, 0xD0, 0x11, 0x01, 0x01, 0x49, 0x02, 0x00, 0x81}
	if _, err := Decode(raw); err != ErrLengthMismatch {
		t.Errorf("Decode: err = %v, want ErrLengthMismatch", err)
	}
}

func TestEncode_PayloadTooLong(t *testing.T) {
	dst := address.GroupFromUint16(1)
	tg := telegram.NewWrite(dst, telegram.BytesValue(make([]byte, 20)))
	f := FromTelegram(tg)
	if _, err := f.Encode(); err != ErrPayloadTooLong {
		t.Errorf("Encode: err = %v, want ErrPayloadTooLong", err)
	}
}

func TestDecode_IndividualAddressedFrame_NoTelegram(t *testing.T) {
	f := Frame{
		MessageCode: LDataInd,
		Control1:    DefaultControl1(),
		Control2:    Control2{AddressType: AddressIndividual, HopCount: DefaultHopCount},
		Source:      address.IndividualFromUint16(0x1101),
		Destination: 0x1102,
		APCI:        APCI{Command: CommandGroupValueWrite, Short: 1},
	}
	tg, err := f.ToTelegram()
	if err != nil {
		t.Fatalf("ToTelegram: %v", err)
	}
	if tg != nil {
		t.Errorf("ToTelegram() = %+v, want nil", tg)
	}
}
