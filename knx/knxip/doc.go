// Package knxip implements the KNXnet/IP frame header and service
// bodies: discovery, connection management, tunnelling, device
// configuration, routing, and the Secure session/routing envelopes.
// knx/cemi frames travel inside several of these bodies unmodified;
// this package never interprets a CEMI payload itself.
package knxip
