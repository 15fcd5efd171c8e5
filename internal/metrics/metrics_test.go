package metrics

import (
	"testing"

	"github.com/nerrad567/knxip-core/knx/address"
	"github.com/nerrad567/knxip-core/knx/telegram"
)

func TestRecorder_NilAndDisconnected_NeverPanics(t *testing.T) {
	var nilRecorder *Recorder
	nilRecorder.RecordTelegram(telegram.NewRead(address.GroupFromUint16(1)))
	nilRecorder.RecordRoutingBusy(3)
	nilRecorder.RecordSecureSession("10.0.0.1", SecureSessionOpened)
	if err := nilRecorder.Close(); err != nil {
		t.Fatalf("Close() on nil Recorder error = %v", err)
	}

	disconnected := &Recorder{}
	disconnected.RecordTelegram(telegram.NewRead(address.GroupFromUint16(1)))
	disconnected.RecordRoutingBusy(3)
	disconnected.RecordSecureSession("10.0.0.1", SecureSessionOpened)
	if err := disconnected.Close(); err != nil {
		t.Fatalf("Close() on disconnected Recorder error = %v", err)
	}
}
