// Package proxy defines the HTTP surface through which an external
// schedule search drives the replay engine: it submits scripts, reads
// back traces and verdicts, and scrapes the engine metrics. The daemon
// never explores schedules itself; it replays what it is given.
package proxy

import (
	"net"
	"net/http"
)

// Proxy defines the primitives to implement an http server that handles
// the requests of the search collaborator.
type Proxy interface {
	// Listen starts the proxy server. This call is assumed to be blocking
	Listen()

	// Stop stops the proxy server
	Stop()

	// GetAddr returns the address of the listener, or nil before Listen
	// bound it
	GetAddr() net.Addr

	// RegisterHandler registers a new handler
	RegisterHandler(path string, handler func(http.ResponseWriter, *http.Request))
}
