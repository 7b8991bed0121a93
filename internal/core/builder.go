package core

import (
	"fmt"

	"bri/config"
	"bri/internal/loader"
	"bri/internal/metrics"
	"bri/internal/registry"
	"bri/internal/retry"
	"bri/internal/services"
	"bri/internal/transport"
	"bri/tunnel"
	"bri/util"
)

// Build constructs the appropriate Mode from the given configuration.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	if cfg.Client != "" {
		return buildClient(cfg, logger)
	}
	return buildServe(cfg, logger)
}

// ── mode builders ────────────────────────────────────────────────────

func buildServe(cfg *config.Config, logger *util.Logger) (Mode, error) {
	reg, err := seedRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}

	cat := loader.NewCatalog()
	services.RegisterDemo(cat, cfg.Banner)
	logger.Verbose("compiled-in services: %v", cat.Keys())

	ssh := &loader.SSH{
		Template: tunnel.SSHConfig{
			User:          cfg.SSHUser,
			KeyPath:       cfg.SSHKeyPath,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   cfg.Timeout,
		},
		Breakers: retry.NewBreakers(nil),
		Logger:   logger,
	}
	reportHosts := func() error {
		for host, st := range ssh.Breakers.States() {
			if st != retry.StateClosed {
				logger.Verbose("ssh host %s left %s", host, st)
			}
		}
		return nil
	}

	return &ServeMode{
		ProgAddress: util.FormatAddr(cfg.BindAddress, cfg.ProgPort),
		AmatAddress: util.FormatAddr(cfg.BindAddress, cfg.AmatPort),
		Registry:    reg,
		Loader:      NewLoader(cat, cfg.ServiceDir, ssh, logger),
		Metrics:     metrics.New(),
		Logger:      logger,
		GracePeriod: config.DefaultGracePeriod,
		Closers:     []func() error{reportHosts, ssh.Close},
	}, nil
}

func buildClient(cfg *config.Config, logger *util.Logger) (Mode, error) {
	b := retry.DefaultBackoff()
	b.MaxAttempts = cfg.DialRetries

	return &ClientMode{
		Dialer:  buildDialer(cfg, logger),
		Address: util.FormatAddr(cfg.Host, cfg.ClientPort()),
		Backoff: b,
		Logger:  logger,
	}, nil
}

// ── shared helpers ───────────────────────────────────────────────────

// seedRegistry creates the registry and adds the seed programmers.
func seedRegistry(cfg *config.Config, logger *util.Logger) (*registry.Registry, error) {
	seed, found, err := config.LoadSeed(cfg.SeedPath)
	if err != nil {
		return nil, err
	}
	if !found {
		logger.Warn("no seed file at %s, using the demo programmer %s", cfg.SeedPath, config.DemoUsername)
	}

	reg := registry.New()
	for _, p := range seed.Programmers {
		ok, err := reg.AddProgrammer(p.Username, p.Password, p.Location)
		if err != nil {
			return nil, fmt.Errorf("seed programmer %s: %w", p.Username, err)
		}
		if !ok {
			logger.Warn("seed: duplicate programmer %s ignored", p.Username)
			continue
		}
		logger.Verbose("programmer %s at %s", p.Username, p.Location)
	}
	return reg, nil
}

// buildDialer creates the right transport.Dialer for the given config.
func buildDialer(cfg *config.Config, logger *util.Logger) transport.Dialer {
	if cfg.TunnelEnabled {
		return transport.NewSSHDialer(&tunnel.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   cfg.Timeout,
		}, logger)
	}
	return &transport.TCPDialer{Timeout: cfg.Timeout}
}
