// Package secure implements the cryptographic primitives Secure
// tunnelling and Secure routing build on: PBKDF2 password-to-key
// derivation, the AES-CBC-MAC/AES-CTR construction KNX IP Secure uses
// to authenticate and encrypt frames, and X25519 key agreement for
// the session handshake.
//
// It has no knowledge of KNXnet/IP framing; knx/session and
// knx/routing call into it with the byte slices those layers already
// parsed out of knxip bodies.
package secure
