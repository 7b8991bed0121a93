// Package tunnel wraps an SSH client connection.  The BRi client uses
// it to reach a server behind a gateway, and the server uses it to run
// services that live on a remote host.
package tunnel

import (
	"context"
	"io"
	"net"
)

// Tunnel abstracts an encrypted channel to a gateway host.
type Tunnel interface {
	// Connect establishes the tunnel to the gateway.
	Connect(ctx context.Context) error

	// Dial opens a connection to address through the tunnel.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Exec runs command on the gateway with its stdio bound to stdin
	// and stdout.  It returns when the command exits.
	Exec(ctx context.Context, command string, stdin io.Reader, stdout io.Writer) error

	// Close tears down the tunnel and frees resources.
	Close() error

	// IsAlive reports whether the underlying connection is still up.
	IsAlive() bool
}
