package secure

import "crypto/sha256"

// sha256Truncated returns the first 16 bytes of SHA-256(data), the
// session-key derivation KNX IP Secure uses atop an ECDH shared
// secret.
func sha256Truncated(data []byte) [16]byte {
	sum := sha256.Sum256(data)
	var out [16]byte
	copy(out[:], sum[:16])
	return out
}

// XOR32 XORs two 32-byte values, used to fold the client and server
// ECDH public keys into the session handshake MAC inputs.
func XOR32(a, b [32]byte) [32]byte {
	var out [32]byte
	for i := range out {
		out[i] = a[i] ^ b[i]
	}
	return out
}
