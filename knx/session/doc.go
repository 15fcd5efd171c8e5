// Package session implements the Secure session (TCP) handshake of
// spec §4.8: an ephemeral X25519 ECDH key exchange authenticated by a
// device password, followed by a SessionAuthenticate exchange
// authenticated by a user password, establishing a session_key that
// wraps every subsequent frame in a SecureWrapper.
package session
