// Package transport implements the three wire carriers a gateway talks
// over: UDP unicast, UDP multicast (routing), and a TCP byte stream.
// All three share the same shape: connect, send a frame to an address,
// and dispatch every received frame to listeners registered by service
// type. Reassembly and socket options are the only parts that differ.
package transport
