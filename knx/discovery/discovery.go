package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/nerrad567/knxip-core/knx/address"
	"github.com/nerrad567/knxip-core/knx/knxip"
	"github.com/nerrad567/knxip-core/knx/reqresp"
	"github.com/nerrad567/knxip-core/knx/routing"
	"github.com/nerrad567/knxip-core/knx/transport"
)

// CollectionWindow is how long Scan gathers SearchResponse frames
// before returning, per spec §4.11 ("collect responses for a fixed
// window, roughly 3s").
const CollectionWindow = 3 * time.Second

// GatewayDescriptor is the parsed result of a gateway's SearchResponse
// or DescriptionResponse DIBs.
type GatewayDescriptor struct {
	IP                   net.IP
	Port                 uint16
	Name                 string
	IndividualAddress    address.Individual
	SerialNumber         [6]byte
	MulticastAddress     net.IP
	SupportsTunneling    bool
	SupportsRouting      bool
	SupportsSecureWrap   bool
	SupportsSecureTunnel bool
}

func describe(controlHPAI knxip.HPAI, dibs []knxip.DIB) GatewayDescriptor {
	d := GatewayDescriptor{IP: controlHPAI.IP, Port: controlHPAI.Port}

	if info := knxip.DeviceInfo(dibs); info != nil {
		d.Name = info.FriendlyName
		d.SerialNumber = info.SerialNumber
		d.MulticastAddress = net.IP(info.MulticastAddress[:])
		d.IndividualAddress = address.IndividualFromUint16(info.IndividualAddress)
	}
	if fams := knxip.SuppSvcFamilies(dibs); fams != nil {
		d.SupportsTunneling = fams.Supports(knxip.FamilyTunnelling)
		d.SupportsRouting = fams.Supports(knxip.FamilyRouting)
		// The secure family byte is overloaded on the wire: its version
		// field distinguishes secure tunnelling (handshake-based) from
		// secure routing (pre-shared backbone key) capability, but this
		// library only needs "is Secure offered at all" until a gateway
		// that splits them shows up in the field.
		d.SupportsSecureWrap = fams.Supports(knxip.FamilySecure)
		d.SupportsSecureTunnel = fams.Supports(knxip.FamilySecure)
	}
	return d
}

// Config configures a Scan or Describe call.
type Config struct {
	Group     string
	Port      int
	Interface *net.Interface
	Window    time.Duration
}

func (c *Config) applyDefaults() {
	if c.Group == "" {
		c.Group = routing.DefaultMulticastGroup
	}
	if c.Port == 0 {
		c.Port = routing.DefaultMulticastPort
	}
	if c.Window == 0 {
		c.Window = CollectionWindow
	}
}

// Scan sends a SearchRequest to the multicast group and collects
// SearchResponses for Config.Window, returning every distinct gateway
// that answered.
func Scan(ctx context.Context, cfg Config) ([]GatewayDescriptor, error) {
	cfg.applyDefaults()
	group := net.ParseIP(cfg.Group)
	if group == nil {
		return nil, fmt.Errorf("discovery: invalid multicast group %q", cfg.Group)
	}

	registry := transport.NewRegistry(nil)
	defer registry.Stop()
	mc := transport.NewMulticast(group, cfg.Port, cfg.Interface, registry)
	if err := mc.Connect(); err != nil {
		return nil, fmt.Errorf("discovery: connect: %w", err)
	}
	defer mc.Stop()

	var (
		mu   sync.Mutex
		seen = make(map[string]GatewayDescriptor)
	)
	_, id := registry.On(knxip.SearchResponse, func(_ knxip.ServiceType, body knxip.Body, _ net.Addr) {
		resp, ok := body.(knxip.SearchResponseBody)
		if !ok {
			return
		}
		d := describe(resp.ControlHPAI, resp.DIBs)
		mu.Lock()
		seen[d.IP.String()+":"+fmt.Sprint(d.Port)] = d
		mu.Unlock()
	})
	defer registry.Off(knxip.SearchResponse, id)

	req := knxip.SearchRequestBody{DiscoveryHPAI: knxip.RouteBackHPAI(knxip.ProtocolUDP)}
	if err := mc.Send(knxip.Encode(knxip.SearchRequest, req), nil); err != nil {
		return nil, fmt.Errorf("discovery: send SearchRequest: %w", err)
	}

	timer := time.NewTimer(cfg.Window)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	mu.Lock()
	defer mu.Unlock()
	out := make([]GatewayDescriptor, 0, len(seen))
	for _, d := range seen {
		out = append(out, d)
	}
	return out, nil
}

// Describe sends a unicast DescriptionRequest to a known gateway
// control endpoint and parses its DescriptionResponse.
func Describe(ctx context.Context, gateway net.UDPAddr) (GatewayDescriptor, error) {
	registry := transport.NewRegistry(nil)
	defer registry.Stop()
	udp := transport.NewUDP(net.UDPAddr{}, &gateway, registry)
	if err := udp.Connect(); err != nil {
		return GatewayDescriptor{}, fmt.Errorf("discovery: connect: %w", err)
	}
	defer udp.Stop()

	engine := reqresp.New(registry)
	req := knxip.DescriptionRequestBody{ControlHPAI: knxip.RouteBackHPAI(knxip.ProtocolUDP)}

	body, from, err := engine.Do(ctx, knxip.DescriptionResponse, reqresp.DefaultTimeout,
		func() error {
			return udp.Send(knxip.Encode(knxip.DescriptionRequest, req), &gateway)
		},
		func(knxip.Body, net.Addr) bool { return true },
	)
	if err != nil {
		return GatewayDescriptor{}, fmt.Errorf("discovery: DescriptionRequest: %w", err)
	}
	resp, ok := body.(knxip.DescriptionResponseBody)
	if !ok {
		return GatewayDescriptor{}, fmt.Errorf("discovery: unexpected response body %T", body)
	}

	controlHPAI := knxip.HPAI{Protocol: knxip.ProtocolUDP, Port: gateway.AddrPort().Port()}
	if udpFrom, ok := from.(*net.UDPAddr); ok {
		controlHPAI.IP = udpFrom.IP
	} else {
		controlHPAI.IP = gateway.IP
	}
	return describe(controlHPAI, resp.DIBs), nil
}
