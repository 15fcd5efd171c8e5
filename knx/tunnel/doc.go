// Package tunnel implements the KNXnet/IP Tunnelling connection mode:
// Connect/ConnectionState/Disconnect lifecycle management over either
// UDP (with per-frame acknowledgement and sequence counters) or TCP
// (no acknowledgement layer), per spec §4.7.
package tunnel
