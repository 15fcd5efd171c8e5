package secure

import (
	"crypto/ecdh"
	"crypto/rand"
	"fmt"
)

// KeyPair is an ephemeral X25519 key pair used once per session
// handshake.
type KeyPair struct {
	priv      *ecdh.PrivateKey
	PublicKey [32]byte
}

// GenerateKeyPair creates a fresh ephemeral X25519 key pair.
func GenerateKeyPair() (KeyPair, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("secure: generating X25519 key: %w", err)
	}
	var kp KeyPair
	kp.priv = priv
	copy(kp.PublicKey[:], priv.PublicKey().Bytes())
	return kp, nil
}

// SharedSecret computes ECDH(priv, peerPublicKey) and returns the
// first 16 bytes of SHA-256 of the raw shared secret — the session
// key a SecureWrapper is encrypted under.
func (kp KeyPair) SharedSecret(peerPublicKey [32]byte) ([16]byte, error) {
	peer, err := ecdh.X25519().NewPublicKey(peerPublicKey[:])
	if err != nil {
		return [16]byte{}, fmt.Errorf("secure: invalid peer public key: %w", err)
	}
	shared, err := kp.priv.ECDH(peer)
	if err != nil {
		return [16]byte{}, fmt.Errorf("secure: ECDH: %w", err)
	}
	return sha256Truncated(shared), nil
}
