package secure

import "crypto/subtle"

// sessionMACCounter is the fixed AES-CTR counter block the Secure
// session handshake uses to obscure a CBC-MAC for wire transmission:
// all-zero except the last two bytes, per spec §4.8.
var sessionMACCounter = [16]byte{14: 0xFF, 15: 0x00}

// ComputeSessionMAC computes the CBC-MAC the SessionResponse and
// SessionAuthenticate handshake frames use to authenticate their
// fixed-shape message (header/session_id/xor'd public keys, or
// header/user_id/xor'd public keys), then obscures it for the wire
// with the same AES-CTR XOR step SecureWrapper uses to hide its raw
// MAC. The handshake has no per-frame seq/serial/tag nonce yet, so
// block0 is zero and the counter is the fixed sessionMACCounter. The
// message is passed as additional data with an empty payload, matching
// the handshake's MAC construction.
func ComputeSessionMAC(key [16]byte, message []byte) ([16]byte, error) {
	raw, err := cbcMAC(key, [16]byte{}, message, nil)
	if err != nil {
		return [16]byte{}, err
	}
	obscured, err := ctrXOR(key, sessionMACCounter, raw[:])
	if err != nil {
		return [16]byte{}, err
	}
	var out [16]byte
	copy(out[:], obscured)
	return out, nil
}

// VerifySessionMAC recomputes ComputeSessionMAC over message and
// compares it against wireMAC in constant time.
func VerifySessionMAC(key [16]byte, message []byte, wireMAC [16]byte) (bool, error) {
	expected, err := ComputeSessionMAC(key, message)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(expected[:], wireMAC[:]) == 1, nil
}
