// Package config defines the runtime configuration for bri and provides
// helpers for parsing tunnel specifications and the programmer seed file.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	brierr "bri/internal/errors"
)

// Client roles a line client can play.
const (
	ClientProg = "prog"
	ClientAmat = "amat"
)

// Config holds every tuneable for one bri process, server or client.
type Config struct {
	// ── Server ───────────────────────────────────────────────────────
	ProgPort    int
	AmatPort    int
	BindAddress string // empty binds every interface
	SeedPath    string // TOML programmer seed
	ServiceDir  string // root for file:// service locations; empty = no file loader
	Banner      string // text of the demo banner service

	// ── Client ───────────────────────────────────────────────────────
	Client      string // "prog" or "amat"; empty runs the server
	Host        string
	Port        int // 0 = the default port of Client
	DialRetries int
	Timeout     time.Duration

	// ── SSH ──────────────────────────────────────────────────────────
	TunnelSpec     string // raw user@host[:port] from -T
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string
	TunnelPort     int
	SSHUser        string // default user for ssh:// service locations
	SSHKeyPath     string
	SSHPassword    bool // true → prompt interactively (client only)
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{
		ProgPort:    DefaultProgPort,
		AmatPort:    DefaultAmatPort,
		SeedPath:    DefaultSeedPath,
		Banner:      DefaultBanner,
		Host:        DefaultHost,
		DialRetries: DefaultDialRetries,
		Timeout:     DefaultConnTimeout,
	}
}

// ClientPort returns the port a client dials: Port when set, otherwise
// the server's port for the client's role.
func (c *Config) ClientPort() int {
	if c.Port > 0 {
		return c.Port
	}
	if c.Client == ClientAmat {
		return c.AmatPort
	}
	return c.ProgPort
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("tunnel host is required")
	}
	return user, host, port, nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	for _, p := range []struct {
		field string
		port  int
	}{{"prog-port", c.ProgPort}, {"amat-port", c.AmatPort}} {
		if p.port < 1 || p.port > 65535 {
			return &brierr.ConfigError{
				Field: p.field, Value: p.port,
				Message: "port out of range 1-65535",
			}
		}
	}

	if c.Client == "" {
		if c.ProgPort == c.AmatPort {
			return &brierr.ConfigError{
				Field: "amat-port", Value: c.AmatPort,
				Message: "programmer and amateur ports must differ",
				Hint:    fmt.Sprintf("the defaults are %d and %d", DefaultProgPort, DefaultAmatPort),
			}
		}
		if c.TunnelEnabled {
			return &brierr.ConfigError{
				Field:   "tunnel",
				Message: "the server does not listen through an SSH tunnel",
				Hint:    "use -T with bri prog or bri amat",
			}
		}
		return nil
	}

	if c.Client != ClientProg && c.Client != ClientAmat {
		return &brierr.ConfigError{
			Field: "client", Value: c.Client,
			Message: "unknown client role",
			Hint:    "use prog (port 7500) or amat (port 7600)",
		}
	}
	if c.Host == "" {
		return &brierr.ConfigError{Field: "host", Message: "hostname is required"}
	}
	if c.Port < 0 || c.Port > 65535 {
		return &brierr.ConfigError{Field: "port", Value: c.Port, Message: "port out of range 1-65535"}
	}
	if c.DialRetries < 1 {
		return &brierr.ConfigError{
			Field: "retries", Value: c.DialRetries,
			Message: "at least one dial attempt is required",
		}
	}
	if c.TunnelEnabled && c.TunnelHost == "" {
		return &brierr.ConfigError{Field: "tunnel", Value: c.TunnelSpec, Message: "tunnel host is required"}
	}
	return nil
}
