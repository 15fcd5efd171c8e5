package knxip

// ConnectRequestBody opens a logical connection of the type named in
// CRI (tunnelling, device management, ...).
type ConnectRequestBody struct {
	ControlHPAI HPAI
	DataHPAI    HPAI
	CRI         CRI
}

func (b ConnectRequestBody) Encode() []byte {
	out := append(b.ControlHPAI.Encode(), b.DataHPAI.Encode()...)
	return append(out, b.CRI.Encode()...)
}

func decodeConnectRequestBody(b []byte) (ConnectRequestBody, error) {
	control, n1, err := DecodeHPAI(b)
	if err != nil {
		return ConnectRequestBody{}, err
	}
	data, n2, err := DecodeHPAI(b[n1:])
	if err != nil {
		return ConnectRequestBody{}, err
	}
	cri, _, err := DecodeCRI(b[n1+n2:])
	if err != nil {
		return ConnectRequestBody{}, err
	}
	return ConnectRequestBody{ControlHPAI: control, DataHPAI: data, CRI: cri}, nil
}

// ConnectResponseBody answers a ConnectRequest. DataHPAI and CRD are
// only meaningful when Status is StatusNoError.
type ConnectResponseBody struct {
	ChannelID uint8
	Status    StatusCode
	DataHPAI  HPAI
	CRD       CRD
}

func (b ConnectResponseBody) Encode() []byte {
	out := []byte{b.ChannelID, byte(b.Status)}
	if !b.Status.Ok() {
		return out
	}
	out = append(out, b.DataHPAI.Encode()...)
	return append(out, b.CRD.Encode()...)
}

func decodeConnectResponseBody(b []byte) (ConnectResponseBody, error) {
	if len(b) < 2 {
		return ConnectResponseBody{}, ErrParse
	}
	r := ConnectResponseBody{ChannelID: b[0], Status: StatusCode(b[1])}
	if !r.Status.Ok() {
		return r, nil
	}
	hpai, n, err := DecodeHPAI(b[2:])
	if err != nil {
		return ConnectResponseBody{}, err
	}
	crd, _, err := DecodeCRD(b[2+n:])
	if err != nil {
		return ConnectResponseBody{}, err
	}
	r.DataHPAI = hpai
	r.CRD = crd
	return r, nil
}

// ConnectionStateRequestBody is the tunnel heartbeat request.
type ConnectionStateRequestBody struct {
	ChannelID   uint8
	ControlHPAI HPAI
}

func (b ConnectionStateRequestBody) Encode() []byte {
	return append([]byte{b.ChannelID, 0x00}, b.ControlHPAI.Encode()...)
}

func decodeConnectionStateRequestBody(b []byte) (ConnectionStateRequestBody, error) {
	if len(b) < 2 {
		return ConnectionStateRequestBody{}, ErrParse
	}
	hpai, _, err := DecodeHPAI(b[2:])
	if err != nil {
		return ConnectionStateRequestBody{}, err
	}
	return ConnectionStateRequestBody{ChannelID: b[0], ControlHPAI: hpai}, nil
}

// ConnectionStateResponseBody answers a heartbeat request.
type ConnectionStateResponseBody struct {
	ChannelID uint8
	Status    StatusCode
}

func (b ConnectionStateResponseBody) Encode() []byte { return []byte{b.ChannelID, byte(b.Status)} }

func decodeConnectionStateResponseBody(b []byte) (ConnectionStateResponseBody, error) {
	if len(b) < 2 {
		return ConnectionStateResponseBody{}, ErrParse
	}
	return ConnectionStateResponseBody{ChannelID: b[0], Status: StatusCode(b[1])}, nil
}

// DisconnectRequestBody tears down a connection, initiated by either
// peer.
type DisconnectRequestBody struct {
	ChannelID   uint8
	ControlHPAI HPAI
}

func (b DisconnectRequestBody) Encode() []byte {
	return append([]byte{b.ChannelID, 0x00}, b.ControlHPAI.Encode()...)
}

func decodeDisconnectRequestBody(b []byte) (DisconnectRequestBody, error) {
	if len(b) < 2 {
		return DisconnectRequestBody{}, ErrParse
	}
	hpai, _, err := DecodeHPAI(b[2:])
	if err != nil {
		return DisconnectRequestBody{}, err
	}
	return DisconnectRequestBody{ChannelID: b[0], ControlHPAI: hpai}, nil
}

// DisconnectResponseBody acknowledges a DisconnectRequest.
type DisconnectResponseBody struct {
	ChannelID uint8
	Status    StatusCode
}

func (b DisconnectResponseBody) Encode() []byte { return []byte{b.ChannelID, byte(b.Status)} }

func decodeDisconnectResponseBody(b []byte) (DisconnectResponseBody, error) {
	if len(b) < 2 {
		return DisconnectResponseBody{}, ErrParse
	}
	return DisconnectResponseBody{ChannelID: b[0], Status: StatusCode(b[1])}, nil
}
