package knxip

// Body is any decoded service body. Concrete types are the
// *...Body structs in this package; callers type-switch on the value
// returned by Decode.
type Body interface {
	Encode() []byte
}

// Encode serializes a complete KNXnet/IP frame: header plus body.
func Encode(st ServiceType, body Body) []byte {
	bb := body.Encode()
	return append(EncodeHeader(st, len(bb)), bb...)
}

// Decode parses a complete KNXnet/IP frame and dispatches the body by
// the header's service_type. It returns ErrUnsupportedService for a
// well-formed header naming a service_type this package has no body
// decoder for.
func Decode(raw []byte) (ServiceType, Body, error) {
	h, err := DecodeHeader(raw)
	if err != nil {
		return 0, nil, err
	}
	if int(h.TotalLength) != len(raw) {
		return 0, nil, ErrTotalLengthMismatch
	}
	body := raw[headerLen:]

	switch h.ServiceType {
	case SearchRequest:
		b, err := decodeSearchRequestBody(body)
		return h.ServiceType, b, err
	case SearchRequestExtended:
		b, err := decodeSearchRequestExtendedBody(body)
		return h.ServiceType, b, err
	case SearchResponse, SearchResponseExtended:
		b, err := decodeSearchResponseBody(body)
		return h.ServiceType, b, err
	case DescriptionRequest:
		b, err := decodeDescriptionRequestBody(body)
		return h.ServiceType, b, err
	case DescriptionResponse:
		b, err := decodeDescriptionResponseBody(body)
		return h.ServiceType, b, err
	case ConnectRequestService:
		b, err := decodeConnectRequestBody(body)
		return h.ServiceType, b, err
	case ConnectResponseService:
		b, err := decodeConnectResponseBody(body)
		return h.ServiceType, b, err
	case ConnectionStateRequest:
		b, err := decodeConnectionStateRequestBody(body)
		return h.ServiceType, b, err
	case ConnectionStateResp:
		b, err := decodeConnectionStateResponseBody(body)
		return h.ServiceType, b, err
	case DisconnectRequest:
		b, err := decodeDisconnectRequestBody(body)
		return h.ServiceType, b, err
	case DisconnectResponse:
		b, err := decodeDisconnectResponseBody(body)
		return h.ServiceType, b, err
	case TunnellingRequestService:
		b, err := decodeTunnellingRequestBody(body)
		return h.ServiceType, b, err
	case TunnellingAckService:
		b, err := decodeTunnellingAckBody(body)
		return h.ServiceType, b, err
	case TunnellingFeatureGet, TunnellingFeatureResp, TunnellingFeatureSet, TunnellingFeatureInfo:
		b, err := decodeTunnellingFeatureBody(body)
		return h.ServiceType, b, err
	case DeviceConfigurationRequest:
		b, err := decodeDeviceConfigurationRequestBody(body)
		return h.ServiceType, b, err
	case DeviceConfigurationAck:
		b, err := decodeDeviceConfigurationAckBody(body)
		return h.ServiceType, b, err
	case RoutingIndicationService:
		b, err := decodeRoutingIndicationBody(body)
		return h.ServiceType, b, err
	case RoutingLostMessage:
		b, err := decodeRoutingLostMessageBody(body)
		return h.ServiceType, b, err
	case RoutingBusyService:
		b, err := decodeRoutingBusyBody(body)
		return h.ServiceType, b, err
	case SecureWrapperService:
		b, err := decodeSecureWrapperBody(body)
		return h.ServiceType, b, err
	case SessionRequestService:
		b, err := decodeSessionRequestBody(body)
		return h.ServiceType, b, err
	case SessionResponseService:
		b, err := decodeSessionResponseBody(body)
		return h.ServiceType, b, err
	case SessionAuthenticate:
		b, err := decodeSessionAuthenticateBody(body)
		return h.ServiceType, b, err
	case SessionStatusService:
		b, err := decodeSessionStatusBody(body)
		return h.ServiceType, b, err
	case TimerNotifyService:
		b, err := decodeTimerNotifyBody(body)
		return h.ServiceType, b, err
	default:
		return h.ServiceType, nil, ErrUnsupportedService
	}
}
