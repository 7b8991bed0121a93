package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/singleflight"

	brierr "bri/internal/errors"
	"bri/internal/retry"
	"bri/internal/service"
	"bri/internal/session"
	"bri/tunnel"
	"bri/util"
)

// SSH serves ssh://[user@]host[:port]/dir/ locations.  A unit is an
// executable on the remote host; every connection runs it over a fresh
// SSH session.  One connection per host is shared by all its services
// and each host has its own circuit breaker.
type SSH struct {
	// Template supplies credentials and host-key policy.  User, Host
	// and Port come from the location.
	Template tunnel.SSHConfig
	Breakers *retry.Breakers
	Logger   *util.Logger

	// Dial opens a tunnel.  Nil means tunnel.NewSSHTunnel + Connect.
	Dial func(ctx context.Context, cfg *tunnel.SSHConfig) (tunnel.Tunnel, error)

	mu      sync.Mutex
	tunnels map[string]tunnel.Tunnel
	dials   singleflight.Group
}

// Load implements service.Loader.  It checks that the resolved path is
// executable on the remote host.
func (s *SSH) Load(ctx context.Context, loc *url.URL, owner, name string, kind service.Kind) (service.Factory, error) {
	if loc.Scheme != "ssh" {
		return nil, fmt.Errorf("ssh loader cannot read %q: %w", loc.Scheme, brierr.ErrBadURL)
	}
	cfg, err := s.configFor(loc)
	if err != nil {
		return nil, err
	}
	path := service.Resolve(loc, owner, name, kind).Path

	err = s.exec(ctx, cfg, "test -x "+shellQuote(path), nil, io.Discard)
	var exitErr *ssh.ExitError
	switch {
	case errors.As(err, &exitErr):
		return nil, fmt.Errorf("%s on %s: %w", path, cfg.Addr(), brierr.ErrNotFound)
	case err != nil:
		return nil, err
	}
	return &sshFactory{name: name, path: path, cfg: cfg, loader: s}, nil
}

// Close drops every cached connection.
func (s *SSH) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for key, t := range s.tunnels {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(s.tunnels, key)
	}
	return brierr.Join(errs...)
}

func (s *SSH) configFor(loc *url.URL) (*tunnel.SSHConfig, error) {
	cfg := s.Template
	if u := loc.User.Username(); u != "" {
		cfg.User = u
	}
	cfg.Host = loc.Hostname()
	cfg.Port = 22
	if p := loc.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return nil, fmt.Errorf("ssh port %q: %w", p, brierr.ErrBadURL)
		}
		cfg.Port = n
	}
	// Servers never prompt.
	cfg.PromptPass = false
	return &cfg, nil
}

// exec runs command on the host of cfg through its breaker.  A command
// that ran and exited non-zero does not count against the host.
func (s *SSH) exec(ctx context.Context, cfg *tunnel.SSHConfig, command string, stdin io.Reader, stdout io.Writer) error {
	var runErr error
	err := s.breaker(cfg).Execute(func() error {
		t, err := s.tunnel(ctx, cfg)
		if err != nil {
			return err
		}
		runErr = t.Exec(ctx, command, stdin, stdout)
		var exitErr *ssh.ExitError
		if runErr != nil && !errors.As(runErr, &exitErr) && ctx.Err() == nil {
			s.drop(cfg, t)
			return runErr
		}
		return nil
	})
	if err != nil {
		return err
	}
	return runErr
}

func (s *SSH) breaker(cfg *tunnel.SSHConfig) *retry.CircuitBreaker {
	s.mu.Lock()
	if s.Breakers == nil {
		s.Breakers = retry.NewBreakers(nil)
	}
	b := s.Breakers
	s.mu.Unlock()
	return b.Get(cfg.Addr())
}

func tunnelKey(cfg *tunnel.SSHConfig) string { return cfg.User + "@" + cfg.Addr() }

// tunnel returns the live connection for cfg, dialing a new one when
// none is cached or the cached one died.  Dials run outside mu and are
// collapsed per key, so a slow host only delays callers of that host.
func (s *SSH) tunnel(ctx context.Context, cfg *tunnel.SSHConfig) (tunnel.Tunnel, error) {
	key := tunnelKey(cfg)
	if t := s.cached(key); t != nil {
		return t, nil
	}

	v, err, _ := s.dials.Do(key, func() (any, error) {
		if t := s.cached(key); t != nil {
			return t, nil
		}
		s.logger().Verbose("ssh: connecting to %s", key)
		t, err := s.dial(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.tunnels[key] = t
		s.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(tunnel.Tunnel), nil
}

// cached returns the live tunnel for key, closing and forgetting a dead one.
func (s *SSH) cached(key string) tunnel.Tunnel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tunnels == nil {
		s.tunnels = make(map[string]tunnel.Tunnel)
	}
	t, ok := s.tunnels[key]
	if !ok {
		return nil
	}
	if t.IsAlive() {
		return t
	}
	t.Close() //nolint:errcheck
	delete(s.tunnels, key)
	return nil
}

func (s *SSH) drop(cfg *tunnel.SSHConfig, t tunnel.Tunnel) {
	key := tunnelKey(cfg)
	s.mu.Lock()
	if s.tunnels[key] == t {
		delete(s.tunnels, key)
	}
	s.mu.Unlock()
	t.Close() //nolint:errcheck
}

func (s *SSH) dial(ctx context.Context, cfg *tunnel.SSHConfig) (tunnel.Tunnel, error) {
	if s.Dial != nil {
		return s.Dial(ctx, cfg)
	}
	t := tunnel.NewSSHTunnel(cfg, s.logger())
	if err := t.Connect(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SSH) logger() *util.Logger {
	if s.Logger == nil {
		return util.NewLogger(0)
	}
	return s.Logger
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

type sshFactory struct {
	name   string
	path   string
	cfg    *tunnel.SSHConfig
	loader *SSH
}

func (f *sshFactory) Name() string { return f.name }

func (f *sshFactory) New(sess *session.Session) service.Service {
	return service.Func(func(ctx context.Context) error {
		in, out, err := sess.Stream()
		if err != nil {
			return err
		}
		sess.Logger().Debug("ssh exec %s on %s", f.path, f.cfg.Addr())
		return f.loader.exec(ctx, f.cfg, shellQuote(f.path), in, out)
	})
}
