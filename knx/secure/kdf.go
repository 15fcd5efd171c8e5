package secure

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

// Fixed PBKDF2 salts from KNX AN159: every device/user password is
// stretched with the same salt string and iteration count, so the
// security margin rests entirely on the password's own entropy.
const (
	deviceAuthSalt   = "device-authentication-code.1.secure.ip.knx.org"
	userPasswordSalt = "user-password.1.secure.ip.knx.org"
	pbkdf2Iterations = 65536
	derivedKeyLen    = 16
)

// DeriveDeviceKey turns a device authentication password into the
// 16-byte key used to verify a SessionResponse's MAC.
func DeriveDeviceKey(password string) [16]byte {
	return derive(password, deviceAuthSalt)
}

// DeriveUserKey turns a tunnelling user's password into the 16-byte
// key used to authenticate and encrypt its SessionAuthenticate.
func DeriveUserKey(password string) [16]byte {
	return derive(password, userPasswordSalt)
}

func derive(password, salt string) [16]byte {
	k := pbkdf2.Key([]byte(password), []byte(salt), pbkdf2Iterations, derivedKeyLen, sha256.New)
	var out [16]byte
	copy(out[:], k)
	return out
}
