// Package routing implements the KNXnet/IP Routing connection mode: a
// multicast send/receive state machine with RoutingBusy flow control
// and an optional Secure (SecureWrapper + TimerNotify) envelope, per
// spec §4.6 and §4.9.
package routing
