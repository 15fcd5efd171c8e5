// Package httpapi provides the gateway's HTTP admin/status surface.
//
// It is deliberately small: a health check, a passive-discovery listing,
// a metrics snapshot, one JWT-protected reload endpoint, and a websocket
// that streams decoded telegrams to connected UIs. There is no device
// registry, automation engine, or multi-user model here — those belong
// to a home-automation core, not a KNXnet/IP gateway process.
//
// The server follows the same lifecycle pattern as the rest of the
// application's infrastructure components:
//
//	server, err := httpapi.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package httpapi
