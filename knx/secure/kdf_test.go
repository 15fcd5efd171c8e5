package secure

import (
	"encoding/hex"
	"testing"
)

func TestDeriveDeviceKey_TrustmeVector(t *testing.T) {
	got := DeriveDeviceKey("trustme")
	want, _ := hex.DecodeString("E158E4012047BD6CC41AAFBC5C04C1FC")
	if hex.EncodeToString(got[:]) != hex.EncodeToString(want) {
		t.Errorf("DeriveDeviceKey(\"trustme\") = % X, want % X", got, want)
	}
}

func TestDeriveUserKey_SecretVector(t *testing.T) {
	got := DeriveUserKey("secret")
	want, _ := hex.DecodeString("03FCEDB66660251EC81A1A716901696A")
	if hex.EncodeToString(got[:]) != hex.EncodeToString(want) {
		t.Errorf("DeriveUserKey(\"secret\") = % X, want % X", got, want)
	}
}
