package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the BRI_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	// Server
	if v := envInt("BRI_PROG_PORT"); v > 0 {
		cfg.ProgPort = v
	}
	if v := envInt("BRI_AMAT_PORT"); v > 0 {
		cfg.AmatPort = v
	}
	if v := os.Getenv("BRI_BIND"); v != "" {
		cfg.BindAddress = v
	}
	if v := os.Getenv("BRI_SEED"); v != "" {
		cfg.SeedPath = v
	}
	if v := os.Getenv("BRI_SERVICE_DIR"); v != "" {
		cfg.ServiceDir = v
	}
	if v := os.Getenv("BRI_BANNER"); v != "" {
		cfg.Banner = v
	}

	// Client
	if v := os.Getenv("BRI_HOST"); v != "" {
		cfg.Host = v
	}
	if v := envInt("BRI_RETRIES"); v > 0 {
		cfg.DialRetries = v
	}
	if v := envInt("BRI_TIMEOUT"); v > 0 {
		cfg.Timeout = secondsDuration(v)
	}

	// SSH
	if v := os.Getenv("BRI_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("BRI_SSH_USER"); v != "" {
		cfg.SSHUser = v
	}
	if v := os.Getenv("BRI_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("BRI_SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("BRI_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("BRI_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("BRI_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := envInt("BRI_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
