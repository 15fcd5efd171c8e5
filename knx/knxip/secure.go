package knxip

import "encoding/binary"

// SessionRequestBody opens a Secure session; ControlHPAI is normally
// the route-back form and ClientPublicKey is the ephemeral X25519
// public key.
type SessionRequestBody struct {
	ControlHPAI     HPAI
	ClientPublicKey [32]byte
}

func (b SessionRequestBody) Encode() []byte {
	return append(b.ControlHPAI.Encode(), b.ClientPublicKey[:]...)
}

func decodeSessionRequestBody(b []byte) (SessionRequestBody, error) {
	hpai, n, err := DecodeHPAI(b)
	if err != nil {
		return SessionRequestBody{}, err
	}
	if len(b) < n+32 {
		return SessionRequestBody{}, ErrParse
	}
	r := SessionRequestBody{ControlHPAI: hpai}
	copy(r.ClientPublicKey[:], b[n:n+32])
	return r, nil
}

// SessionResponseBody answers a SessionRequest with the server's
// ephemeral public key and a MAC authenticating the exchange.
type SessionResponseBody struct {
	SessionID       uint16
	ServerPublicKey [32]byte
	MAC             [16]byte
}

func (b SessionResponseBody) Encode() []byte {
	out := make([]byte, 2, 50)
	binary.BigEndian.PutUint16(out[0:2], b.SessionID)
	out = append(out, b.ServerPublicKey[:]...)
	out = append(out, b.MAC[:]...)
	return out
}

func decodeSessionResponseBody(b []byte) (SessionResponseBody, error) {
	if len(b) < 50 {
		return SessionResponseBody{}, ErrParse
	}
	r := SessionResponseBody{SessionID: binary.BigEndian.Uint16(b[0:2])}
	copy(r.ServerPublicKey[:], b[2:34])
	copy(r.MAC[:], b[34:50])
	return r, nil
}

// SessionAuthenticateBody is carried, encrypted, inside a
// SecureWrapper to complete user authentication.
type SessionAuthenticateBody struct {
	UserID uint8
	MAC    [16]byte
}

func (b SessionAuthenticateBody) Encode() []byte {
	out := make([]byte, 2, 18)
	out[1] = b.UserID
	return append(out, b.MAC[:]...)
}

func decodeSessionAuthenticateBody(b []byte) (SessionAuthenticateBody, error) {
	if len(b) < 18 {
		return SessionAuthenticateBody{}, ErrParse
	}
	r := SessionAuthenticateBody{UserID: b[1]}
	copy(r.MAC[:], b[2:18])
	return r, nil
}

// SessionStatusBody reports or requests session state: keepalive,
// close, or an authentication outcome.
type SessionStatusBody struct {
	Status StatusCode
}

func (b SessionStatusBody) Encode() []byte { return []byte{byte(b.Status)} }

func decodeSessionStatusBody(b []byte) (SessionStatusBody, error) {
	if len(b) < 1 {
		return SessionStatusBody{}, ErrParse
	}
	return SessionStatusBody{Status: StatusCode(b[0])}, nil
}

// SecureWrapperBody envelopes any other KNXnet/IP frame for transport
// over a Secure session or multicast group. EncryptedData is the
// AES-CTR ciphertext of the wrapped frame's bytes; MAC authenticates
// it (see knx/secure for the cipher construction).
type SecureWrapperBody struct {
	SessionID     uint16
	SequenceInfo  [6]byte
	SerialNumber  [6]byte
	MessageTag    uint16
	EncryptedData []byte
	MAC           [16]byte
}

func (b SecureWrapperBody) Encode() []byte {
	out := make([]byte, 16, 16+len(b.EncryptedData)+16)
	binary.BigEndian.PutUint16(out[0:2], b.SessionID)
	copy(out[2:8], b.SequenceInfo[:])
	copy(out[8:14], b.SerialNumber[:])
	binary.BigEndian.PutUint16(out[14:16], b.MessageTag)
	out = append(out, b.EncryptedData...)
	out = append(out, b.MAC[:]...)
	return out
}

func decodeSecureWrapperBody(b []byte) (SecureWrapperBody, error) {
	if len(b) < 32 { // 16-byte fixed header + 16-byte MAC, 0+ encrypted bytes
		return SecureWrapperBody{}, ErrParse
	}
	r := SecureWrapperBody{SessionID: binary.BigEndian.Uint16(b[0:2])}
	copy(r.SequenceInfo[:], b[2:8])
	copy(r.SerialNumber[:], b[8:14])
	r.MessageTag = binary.BigEndian.Uint16(b[14:16])
	r.EncryptedData = append([]byte(nil), b[16:len(b)-16]...)
	copy(r.MAC[:], b[len(b)-16:])
	return r, nil
}

// TimerNotifyBody carries the shared group timer and a MAC computed
// over it with the backbone key, used to bootstrap and re-synchronize
// Secure routing's replay-protection clock.
type TimerNotifyBody struct {
	TimerValue   [6]byte // 48-bit monotonic ms
	SerialNumber [6]byte
	MessageTag   uint16
	MAC          [16]byte
}

func (b TimerNotifyBody) Encode() []byte {
	out := make([]byte, 0, 30)
	out = append(out, b.TimerValue[:]...)
	out = append(out, b.SerialNumber[:]...)
	mt := make([]byte, 2)
	binary.BigEndian.PutUint16(mt, b.MessageTag)
	out = append(out, mt...)
	out = append(out, b.MAC[:]...)
	return out
}

func decodeTimerNotifyBody(b []byte) (TimerNotifyBody, error) {
	if len(b) < 30 {
		return TimerNotifyBody{}, ErrParse
	}
	r := TimerNotifyBody{}
	copy(r.TimerValue[:], b[0:6])
	copy(r.SerialNumber[:], b[6:12])
	r.MessageTag = binary.BigEndian.Uint16(b[12:14])
	copy(r.MAC[:], b[14:30])
	return r, nil
}
