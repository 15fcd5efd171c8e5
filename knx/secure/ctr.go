package secure

import (
	"crypto/aes"
	"crypto/cipher"
)

// ctrXOR produces the AES-CTR keystream for the given 16-byte counter
// block under key and XORs it into a copy of data, returning the
// result. Used both to obscure a computed MAC for wire transmission
// and to encrypt/decrypt SecureWrapper payloads.
func ctrXOR(key [16]byte, counter [16]byte, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	stream := cipher.NewCTR(block, counter[:])
	out := make([]byte, len(data))
	stream.XORKeyStream(out, data)
	return out, nil
}

// macCounter builds the fixed counter block KNX IP Secure uses to
// obscure a CBC-MAC for wire transmission: nonce || 0xFF00, where
// nonce is the 14-byte seq||serial||msg_tag the frame's MAC was
// computed over.
func macCounter(nonce [14]byte) [16]byte {
	var c [16]byte
	copy(c[:14], nonce[:])
	c[14] = 0xFF
	c[15] = 0x00
	return c
}

// dataCounter builds the counter block for encrypting payload block
// index i (1-based) of a SecureWrapper or SessionAuthenticate: the
// fixed counter_0 (macCounter) treated as a 128-bit big-endian integer
// and advanced by blockIndex, matching AES-CTR's own block-to-block
// counter increment so the MAC (block 0) and payload (block 1, 2, …)
// are encrypted under one continuous keystream.
func dataCounter(nonce [14]byte, blockIndex uint16) [16]byte {
	c := macCounter(nonce)
	for i := uint16(0); i < blockIndex; i++ {
		incrementCounter(&c)
	}
	return c
}

// incrementCounter increments a 16-byte big-endian counter block by one.
func incrementCounter(c *[16]byte) {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]++
		if c[i] != 0 {
			break
		}
	}
}
