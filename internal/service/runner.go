package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	brierr "bri/internal/errors"
	"bri/internal/metrics"
	"bri/internal/session"
	"bri/util"
)

// Runner starts services on their own goroutine.
type Runner struct {
	Logger  *util.Logger
	Metrics *metrics.Collector

	wg sync.WaitGroup
}

// Start runs f.New(sess) in a new goroutine and returns immediately.
// The session is finished when the service returns, panics included;
// finishing a handed-off session is a no-op.
func (r *Runner) Start(ctx context.Context, f Factory, sess *session.Session) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(ctx, f, sess)
	}()
}

// Wait blocks until every service started by r has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
	r.logger().Debug("all services returned")
}

func (r *Runner) logger() *util.Logger {
	if r.Logger == nil {
		return util.NewLogger(0)
	}
	return r.Logger
}

func (r *Runner) run(ctx context.Context, f Factory, sess *session.Session) {
	log := sess.Logger()
	defer func() {
		if err := sess.Finish(); err != nil {
			log.Debug("finish: %v", err)
		}
		log.Verbose("%s returned", f.Name())
	}()
	defer func() {
		if p := recover(); p != nil {
			log.Error("service %s panicked: %v", f.Name(), p)
			log.Debug("%s", debug.Stack())
			r.Metrics.RecordError(fmt.Sprintf("%s: panic: %v", f.Name(), p))
		}
	}()

	svc := f.New(sess)
	if svc == nil {
		r.logger().Error("%s built no service for %s", f.Name(), sess.PeerAddress())
		return
	}
	log.Verbose("starting %s", f.Name())
	err := svc.Run(ctx)
	switch {
	case err == nil:
	case brierr.IsDisconnect(err):
		log.Verbose("%s: peer left: %v", f.Name(), err)
	default:
		log.Error("%s: %v", f.Name(), err)
		r.Metrics.RecordError(fmt.Sprintf("%s: %v", f.Name(), err))
	}
}
