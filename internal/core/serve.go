package core

import (
	"context"
	"time"

	brierr "bri/internal/errors"
	"bri/internal/loader"
	"bri/internal/metrics"
	"bri/internal/registry"
	"bri/internal/service"
	"bri/internal/services"
	"bri/util"
)

// ServeMode runs a BRi server: the programmer and amateur acceptors
// sharing one registry.
type ServeMode struct {
	ProgAddress string
	AmatAddress string
	Registry    *registry.Registry
	Loader      service.Loader
	Metrics     *metrics.Collector
	Logger      *util.Logger

	// GracePeriod bounds how long Run waits for services still running
	// after the listeners closed.
	GracePeriod time.Duration

	// Closers run after shutdown (cached SSH connections and the like).
	Closers []func() error

	// ready, when set, receives the bound acceptors once both listen.
	ready func(prog, amat *Acceptor)
}

// Run binds both ports, serves until ctx is cancelled, then waits for
// the running services.  A bind failure is returned immediately.
func (m *ServeMode) Run(ctx context.Context) error {
	runner := &service.Runner{Logger: m.Logger, Metrics: m.Metrics}

	prog := &Acceptor{
		Address: m.ProgAddress,
		Factory: &services.Prog{Registry: m.Registry, Loader: m.Loader, Metrics: m.Metrics},
		Runner:  runner,
		Logger:  m.Logger,
		Metrics: m.Metrics,
	}
	amat := &Acceptor{
		Address: m.AmatAddress,
		Factory: &services.Amat{Registry: m.Registry, Runner: runner, Metrics: m.Metrics},
		Runner:  runner,
		Logger:  m.Logger,
		Metrics: m.Metrics,
	}

	if err := prog.Listen(); err != nil {
		return err
	}
	if err := amat.Listen(); err != nil {
		prog.ln.Close()
		return err
	}
	if m.ready != nil {
		m.ready(prog, amat)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 2)
	for _, a := range []*Acceptor{prog, amat} {
		go func(a *Acceptor) { errc <- a.Serve(ctx) }(a)
	}

	// Either acceptor failing takes the server down.
	var errs []error
	for i := 0; i < 2; i++ {
		if err := <-errc; err != nil {
			errs = append(errs, err)
			cancel()
		}
	}

	m.Logger.Info("shutting down")
	m.wait(runner)
	for _, c := range m.Closers {
		if err := c(); err != nil {
			m.Logger.Debug("close: %v", err)
		}
	}
	if m.Metrics != nil {
		m.Logger.Verbose("metrics: %s", m.Metrics.JSON())
	}
	return brierr.Join(errs...)
}

func (m *ServeMode) wait(runner *service.Runner) {
	done := make(chan struct{})
	go func() {
		runner.Wait()
		close(done)
	}()

	grace := m.GracePeriod
	if grace <= 0 {
		grace = 5 * time.Second
	}
	select {
	case <-done:
	case <-time.After(grace):
		m.Logger.Warn("%d session(s) still open after %s", m.Metrics.ActiveSessions(), grace)
	}
}

// NewLoader assembles the scheme router used by programmers' locations.
// Compiled-in units (the demo services included) serve ftp, http, https
// and jar; serviceDir, when set, enables file locations below it; ssh
// enables ssh locations.
func NewLoader(cat *loader.Catalog, serviceDir string, ssh *loader.SSH, logger *util.Logger) *loader.Mux {
	mux := loader.NewMux(logger)
	for _, scheme := range []string{"ftp", "http", "https", "jar"} {
		mux.Handle(scheme, cat)
	}
	if serviceDir != "" {
		mux.Handle("file", &loader.Exec{Root: serviceDir})
	}
	if ssh != nil {
		mux.Handle("ssh", ssh)
	}
	return mux
}
