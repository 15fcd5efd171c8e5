package secure

import (
	"crypto/aes"
	"crypto/cipher"
)

const blockSize = aes.BlockSize // 16

// cbcMAC runs the CBC-MAC chain KNX Data Security uses to authenticate
// a frame: block0 || len(aad):2 || aad || payload, zero-padded once as
// a single blob and encrypted under a zero IV with only the final
// ciphertext block kept.
func cbcMAC(key [16]byte, block0 [16]byte, aad, payload []byte) ([16]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return [16]byte{}, err
	}
	mode := cipher.NewCBCEncrypter(block, make([]byte, blockSize))

	buf := append([]byte{}, block0[:]...)
	buf = append(buf, byte(len(aad)>>8), byte(len(aad)))
	buf = append(buf, aad...)
	buf = append(buf, payload...)
	buf = zeroPad(buf)

	out := make([]byte, len(buf))
	mode.CryptBlocks(out, buf)

	var mac [16]byte
	copy(mac[:], out[len(out)-blockSize:])
	return mac, nil
}

// zeroPad pads b up to the next multiple of the AES block size with
// zero bytes. An empty input yields an empty output (no block to
// process) rather than a spurious all-zero block.
func zeroPad(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	rem := len(b) % blockSize
	if rem == 0 {
		return b
	}
	return append(append([]byte{}, b...), make([]byte, blockSize-rem)...)
}
