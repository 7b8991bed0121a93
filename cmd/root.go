// Package cmd wires up the CLI flags and dispatches to the core modes.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	flag "github.com/spf13/pflag"

	"bri/config"
	"bri/internal/core"
	"bri/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X bri/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the server or one of the line clients.
func Execute(ctx context.Context, args []string) error {
	cfg := config.Default()
	config.LoadFromEnv(cfg)
	fs := flag.NewFlagSet("bri", flag.ContinueOnError)

	// ── server ───────────────────────────────────────────────────
	fs.IntVar(&cfg.ProgPort, "prog-port", cfg.ProgPort, "Programmer port")
	fs.IntVar(&cfg.AmatPort, "amat-port", cfg.AmatPort, "Amateur port")
	fs.StringVarP(&cfg.BindAddress, "bind", "b", cfg.BindAddress, "Address to listen on (all interfaces if empty)")
	fs.StringVar(&cfg.SeedPath, "seed", cfg.SeedPath, "Programmer seed file (TOML)")
	fs.StringVar(&cfg.ServiceDir, "service-dir", cfg.ServiceDir, "Root directory for file:// service locations")
	fs.StringVar(&cfg.Banner, "banner", cfg.Banner, "Text of the banner demo service")
	fs.StringVar(&cfg.SSHUser, "ssh-user", cfg.SSHUser, "Default user for ssh:// service locations")

	// ── client ───────────────────────────────────────────────────
	fs.IntVarP(&cfg.DialRetries, "retries", "r", cfg.DialRetries, "Dial attempts before giving up")
	timeoutSec := int(cfg.Timeout / time.Second)
	fs.IntVarP(&timeoutSec, "timeout", "w", timeoutSec, "Connection timeout in seconds")

	// ── SSH ──────────────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "Client: reach the server via [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password (client)")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")

	var showVersion, showHelp, dryRun bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")
	fs.BoolVar(&dryRun, "dry-run", false, "Validate the configuration and exit")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || len(args) == 0 {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Printf("bri %s\n", version)
		return nil
	}

	cfg.Timeout = time.Duration(timeoutSec) * time.Second

	// ── positional arguments ─────────────────────────────────────
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}

	// ── tunnel spec ──────────────────────────────────────────────
	if cfg.TunnelSpec != "" {
		user, host, port, err := config.ParseTunnelSpec(cfg.TunnelSpec)
		if err != nil {
			return fmt.Errorf("tunnel: %w", err)
		}
		cfg.TunnelEnabled = true
		cfg.TunnelUser = user
		cfg.TunnelHost = host
		cfg.TunnelPort = port
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	// ── build and run ────────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)

	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	if dryRun {
		fmt.Fprintf(os.Stderr, "bri: configuration OK (%T)\n", mode)
		return nil
	}
	return mode.Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

// parsePositional reads "serve" or "prog|amat [host [port]]".
func parsePositional(cfg *config.Config, remaining []string) error {
	if len(remaining) == 0 {
		return fmt.Errorf("mode required: serve, prog or amat (use --help for usage)")
	}

	switch remaining[0] {
	case "serve":
		if len(remaining) > 1 {
			return fmt.Errorf("serve takes no arguments")
		}
		cfg.Client = ""
		return nil
	case config.ClientProg, config.ClientAmat:
		cfg.Client = remaining[0]
	default:
		return fmt.Errorf("unknown mode %q: use serve, prog or amat", remaining[0])
	}

	switch len(remaining) {
	case 1:
	case 2, 3:
		cfg.Host = remaining[1]
		if len(remaining) == 3 {
			port, err := strconv.Atoi(remaining[2])
			if err != nil || port < 1 || port > 65535 {
				return fmt.Errorf("invalid port %q", remaining[2])
			}
			cfg.Port = port
		}
	default:
		return fmt.Errorf("too many arguments for %s", remaining[0])
	}
	return nil
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `BRi – service platform v%s

Programmers publish services on one port; amateurs pick one on the other
and are handed over to it.

Usage:
  bri serve [options]                         Run the platform (7500 / 7600)
  bri prog [options] [host [port]]            Programmer console
  bri amat [options] [host [port]]            Amateur console

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  bri serve -v --seed ./seed.toml             Serve with a seed file
  bri serve --service-dir /srv/bri            Allow file:// locations below /srv/bri
  bri prog                                    Log in on localhost:7500
  bri amat bri.example.com                    Use a service on a remote platform
  bri prog -T admin@bastion bri-internal      Reach the platform through SSH
`)
}
