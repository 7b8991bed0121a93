// Package core is the orchestration layer.  It composes sessions,
// services and transports into complete operational modes and provides
// a builder that selects the right mode from a Config.
//
// Architecture layers (bottom → top):
//
//	transport/session  →  service  →  services  →  core  →  cmd (CLI)
package core

import "context"

// Mode represents a complete operational mode of bri (the server or
// one of the two line clients).  Each mode owns its full lifecycle from
// connection establishment to teardown.
type Mode interface {
	Run(ctx context.Context) error
}
