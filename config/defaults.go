package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, the seed file, and environment variable loading.

const (
	// DefaultProgPort is where programmers manage their services.
	DefaultProgPort = 7500

	// DefaultAmatPort is where amateurs pick a service to use.
	DefaultAmatPort = 7600

	// DefaultHost is the server a client dials when none is given.
	DefaultHost = "localhost"

	// DefaultSeedPath is read at start-up for the programmer accounts.
	DefaultSeedPath = "~/.bri/seed.toml"

	// DefaultBanner is the text of the demo banner service.
	DefaultBanner = "Welcome to the BRi platform"

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultConnTimeout is the TCP/SSH connection timeout.
	DefaultConnTimeout = 30 * time.Second

	// DefaultDialRetries is how many times a client tries to reach the
	// server before giving up.
	DefaultDialRetries = 5

	// DefaultGracePeriod is how long shutdown waits for running
	// services after the listeners close.
	DefaultGracePeriod = 5 * time.Second
)

// Demo programmer used when no seed file exists.
const (
	DemoUsername = "toto"
	DemoPassword = "toto"
	DemoLocation = "ftp://localhost:2121/classes/"
)
