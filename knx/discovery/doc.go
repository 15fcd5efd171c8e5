// Package discovery solicits SearchResponse and DescriptionResponse
// frames from KNXnet/IP gateways reachable on the local multicast
// group, per spec §4.11, and parses their DIBs into a GatewayDescriptor.
package discovery
