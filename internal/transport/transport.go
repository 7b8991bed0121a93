// Package transport opens the outbound connection of the BRi line
// client, either directly over TCP or through an SSH gateway.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound network connections.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH connection).  Stateless dialers return nil.
	Close() error
}
