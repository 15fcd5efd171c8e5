// Package cemi implements the Common External Message Interface data-link
// frame embedded in KNXnet/IP tunnelling, routing, and device-configuration
// bodies, plus the 10-bit APCI application layer carried in its last
// octets.
//
// Frame covers L_Data_req/ind/con — the variants the connection state
// machines in knx/routing and knx/tunnel generate and consume — and
// round-trips poll and raw message codes it does not otherwise interpret.
package cemi
