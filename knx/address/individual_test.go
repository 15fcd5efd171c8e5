package address

import "testing"

func TestParseIndividual(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    uint16
		wantErr bool
	}{
		{name: "typical", input: "1.1.250", want: 0x11FA},
		{name: "zero", input: "0.0.0", want: 0},
		{name: "max", input: "15.15.255", want: 0xFFFF},
		{name: "area overflow", input: "16.0.0", wantErr: true},
		{name: "line overflow", input: "0.16.0", wantErr: true},
		{name: "device overflow", input: "0.0.256", wantErr: true},
		{name: "malformed", input: "1.1", wantErr: true},
		{name: "non-numeric", input: "a.b.c", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIndividual(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseIndividual(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.ToUint16() != tt.want {
				t.Errorf("ParseIndividual(%q).ToUint16() = 0x%04X, want 0x%04X", tt.input, got.ToUint16(), tt.want)
			}
		})
	}
}

func TestIndividualString(t *testing.T) {
	a := IndividualFromUint16(0x11FA)
	if got := a.String(); got != "1.1.250" {
		t.Errorf("String() = %q, want %q", got, "1.1.250")
	}
}

func TestIndividualIsUnset(t *testing.T) {
	if !IndividualFromUint16(0).IsUnset() {
		t.Error("IsUnset() = false for 0.0.0, want true")
	}
	if IndividualFromUint16(1).IsUnset() {
		t.Error("IsUnset() = true for non-zero address, want false")
	}
}

func TestIndividualFields(t *testing.T) {
	a, err := ParseIndividual("4.3.200")
	if err != nil {
		t.Fatalf("ParseIndividual: %v", err)
	}
	if a.Area() != 4 {
		t.Errorf("Area() = %d, want 4", a.Area())
	}
	if a.Line() != 3 {
		t.Errorf("Line() = %d, want 3", a.Line())
	}
	if a.Device() != 200 {
		t.Errorf("Device() = %d, want 200", a.Device())
	}
}
