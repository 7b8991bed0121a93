package services

import (
	"context"

	"bri/internal/metrics"
	"bri/internal/registry"
	"bri/internal/service"
	"bri/internal/session"
)

// Amat is the factory behind the amateur port.  It lists the active
// services, reads the peer's choice and hands the connection to it.
type Amat struct {
	Registry *registry.Registry
	Runner   *service.Runner
	Metrics  *metrics.Collector
}

// Name implements service.Factory.
func (a *Amat) Name() string { return "amat" }

// New implements service.Factory.
func (a *Amat) New(sess *session.Session) service.Service {
	return service.Func(func(ctx context.Context) error {
		return a.run(ctx, sess)
	})
}

func (a *Amat) run(ctx context.Context, sess *session.Session) error {
	sess.Write(a.Registry.ListActiveServiceNames())
	choice, err := sess.Read()
	if err != nil {
		return err
	}

	f := a.Registry.GetActive(choice)
	if f == nil {
		sess.Logger().Verbose("amateur asked for unknown service %q", choice)
		sess.Write("Service not found")
		return sess.Finish()
	}

	next, err := sess.Handoff()
	if err != nil {
		return err
	}
	a.Metrics.Handoff()
	sess.Logger().Verbose("handing off to %s", f.Name())
	a.Runner.Start(ctx, f, next)
	return nil
}
