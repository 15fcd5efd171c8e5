// Package reqresp implements the one-shot send-and-await-response engine
// used by every connect/disconnect/heartbeat/discovery exchange in this
// library: send a request, wait for a matching response service type or
// a timeout, and always unregister from the transport's dispatch
// registry when done — on success, on timeout, and on cancellation.
package reqresp
