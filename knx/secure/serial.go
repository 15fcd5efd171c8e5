package secure

// XKNXSerial is the fixed serial number this implementation advertises
// in TimerNotify and SecureWrapper frames it originates (spec §6).
var XKNXSerial = [6]byte{0x00, 0x00, 0x78, 0x6b, 0x6e, 0x78}
