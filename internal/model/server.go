package model

import (
	"context"
	"net"
)

// SecurityLayer opens the listener a Server accepts connections on, with or
// without TLS.
type SecurityLayer interface {
	Listen(protocol, addr string) (net.Listener, error)
}

// Server is a transport with a blocking Start and a graceful Stop.
type Server interface {
	// Start serves until Stop is called. A clean stop returns nil.
	Start(securityLayer SecurityLayer) error
	// Stop waits for in-flight requests until ctx is done.
	Stop(ctx context.Context) error
	Address() string
}
