package secure

import (
	"crypto/subtle"
	"fmt"
)

// Nonce is the 14-byte value (sequence_info || serial_number ||
// msg_tag) that seeds both the CBC-MAC block0 and the CTR
// keystream for one SecureWrapper or SessionAuthenticate frame.
type Nonce struct {
	Sequence [6]byte
	Serial   [6]byte
	MsgTag   uint16
}

func (n Nonce) bytes() [14]byte {
	var b [14]byte
	copy(b[0:6], n.Sequence[:])
	copy(b[6:12], n.Serial[:])
	b[12] = byte(n.MsgTag >> 8)
	b[13] = byte(n.MsgTag)
	return b
}

func (n Nonce) block0(payloadLen int) [16]byte {
	var b [16]byte
	nb := n.bytes()
	copy(b[:14], nb[:])
	b[14] = byte(payloadLen >> 8)
	b[15] = byte(payloadLen)
	return b
}

// EncryptWrapper authenticates and encrypts plain under key, using aad
// (the wrapper header plus session_id) as additional authenticated
// data. It returns the ciphertext and the wire MAC (the raw CBC-MAC
// value XORed with the CTR keystream block so it cannot be used to
// forge a second frame).
func EncryptWrapper(key [16]byte, n Nonce, aad, plain []byte) (ciphertext []byte, wireMAC [16]byte, err error) {
	rawMAC, err := cbcMAC(key, n.block0(len(plain)), aad, plain)
	if err != nil {
		return nil, [16]byte{}, fmt.Errorf("secure: computing MAC: %w", err)
	}
	obscured, err := ctrXOR(key, macCounter(n.bytes()), rawMAC[:])
	if err != nil {
		return nil, [16]byte{}, fmt.Errorf("secure: obscuring MAC: %w", err)
	}
	copy(wireMAC[:], obscured)

	ciphertext, err = ctrXOR(key, dataCounter(n.bytes(), 1), plain)
	if err != nil {
		return nil, [16]byte{}, fmt.Errorf("secure: encrypting payload: %w", err)
	}
	return ciphertext, wireMAC, nil
}

// DecryptWrapper reverses EncryptWrapper and verifies the recovered
// MAC against the recomputed one. Returns ErrMACMismatch (the single
// error this layer surfaces — the caller discards the frame, it never
// becomes a fatal error outside the handshake) when verification
// fails.
func DecryptWrapper(key [16]byte, n Nonce, aad, ciphertext []byte, wireMAC [16]byte) ([]byte, error) {
	plain, err := ctrXOR(key, dataCounter(n.bytes(), 1), ciphertext)
	if err != nil {
		return nil, fmt.Errorf("secure: decrypting payload: %w", err)
	}

	rawMAC, err := cbcMAC(key, n.block0(len(plain)), aad, plain)
	if err != nil {
		return nil, fmt.Errorf("secure: computing MAC: %w", err)
	}
	expectedWire, err := ctrXOR(key, macCounter(n.bytes()), rawMAC[:])
	if err != nil {
		return nil, fmt.Errorf("secure: obscuring MAC: %w", err)
	}

	if subtle.ConstantTimeCompare(expectedWire, wireMAC[:]) != 1 {
		return nil, ErrMACMismatch
	}
	return plain, nil
}
