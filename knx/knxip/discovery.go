package knxip

// SearchRequestBody solicits SearchResponses from gateways reachable
// on the multicast group; DiscoveryHPAI is the endpoint responses are
// sent to (or route-back).
type SearchRequestBody struct {
	DiscoveryHPAI HPAI
}

func (b SearchRequestBody) Encode() []byte { return b.DiscoveryHPAI.Encode() }

func decodeSearchRequestBody(b []byte) (SearchRequestBody, error) {
	hpai, _, err := DecodeHPAI(b)
	if err != nil {
		return SearchRequestBody{}, err
	}
	return SearchRequestBody{DiscoveryHPAI: hpai}, nil
}

// SearchRequestExtendedBody adds optional SRP selectors to a search.
type SearchRequestExtendedBody struct {
	DiscoveryHPAI HPAI
	SRPs          []SRP
}

func (b SearchRequestExtendedBody) Encode() []byte {
	return append(b.DiscoveryHPAI.Encode(), EncodeSRPs(b.SRPs)...)
}

func decodeSearchRequestExtendedBody(b []byte) (SearchRequestExtendedBody, error) {
	hpai, n, err := DecodeHPAI(b)
	if err != nil {
		return SearchRequestExtendedBody{}, err
	}
	srps, err := DecodeSRPs(b[n:])
	if err != nil {
		return SearchRequestExtendedBody{}, err
	}
	return SearchRequestExtendedBody{DiscoveryHPAI: hpai, SRPs: srps}, nil
}

// SearchResponseBody (and SearchResponseExtendedBody, identical wire
// shape) carries the responding gateway's control endpoint and a DIB
// sequence describing it.
type SearchResponseBody struct {
	ControlHPAI HPAI
	DIBs        []DIB
}

func (b SearchResponseBody) Encode() []byte {
	return append(b.ControlHPAI.Encode(), EncodeDIBs(b.DIBs)...)
}

func decodeSearchResponseBody(b []byte) (SearchResponseBody, error) {
	hpai, n, err := DecodeHPAI(b)
	if err != nil {
		return SearchResponseBody{}, err
	}
	dibs, err := DecodeDIBs(b[n:])
	if err != nil {
		return SearchResponseBody{}, err
	}
	return SearchResponseBody{ControlHPAI: hpai, DIBs: dibs}, nil
}

// DescriptionRequestBody solicits a DescriptionResponse from a
// specific control endpoint.
type DescriptionRequestBody struct {
	ControlHPAI HPAI
}

func (b DescriptionRequestBody) Encode() []byte { return b.ControlHPAI.Encode() }

func decodeDescriptionRequestBody(b []byte) (DescriptionRequestBody, error) {
	hpai, _, err := DecodeHPAI(b)
	if err != nil {
		return DescriptionRequestBody{}, err
	}
	return DescriptionRequestBody{ControlHPAI: hpai}, nil
}

// DescriptionResponseBody is a bare DIB sequence describing the
// gateway (no endpoint — this reply is unicast to the requester).
type DescriptionResponseBody struct {
	DIBs []DIB
}

func (b DescriptionResponseBody) Encode() []byte { return EncodeDIBs(b.DIBs) }

func decodeDescriptionResponseBody(b []byte) (DescriptionResponseBody, error) {
	dibs, err := DecodeDIBs(b)
	if err != nil {
		return DescriptionResponseBody{}, err
	}
	return DescriptionResponseBody{DIBs: dibs}, nil
}

// DeviceInfo and SuppSvcFamilies extracts the commonly needed fields
// from a DIB sequence, matching what knx/discovery turns into a
// GatewayDescriptor.
func DeviceInfo(dibs []DIB) *DeviceInformationDIB {
	for _, d := range dibs {
		if di, ok := d.(*DeviceInformationDIB); ok {
			return di
		}
	}
	return nil
}

func SuppSvcFamilies(dibs []DIB) *SuppSvcFamiliesDIB {
	for _, d := range dibs {
		if sf, ok := d.(*SuppSvcFamiliesDIB); ok {
			return sf
		}
	}
	return nil
}
