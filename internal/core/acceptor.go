package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"bri/internal/metrics"
	"bri/internal/service"
	"bri/internal/session"
	"bri/util"
)

// acceptBackoff is how long the loop pauses after a failed accept, such
// as running out of file descriptors.
const acceptBackoff = 100 * time.Millisecond

// Acceptor binds one port and runs a fresh instance of Factory on every
// inbound connection.  It knows nothing about the line protocol.
type Acceptor struct {
	Address string // "host:port"; empty host binds every interface
	Factory service.Factory
	Runner  *service.Runner
	Logger  *util.Logger
	Metrics *metrics.Collector

	mu sync.Mutex
	ln net.Listener
}

// Listen binds the address.  Callers treat a failure as fatal.
func (a *Acceptor) Listen() error {
	ln, err := net.Listen("tcp", a.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.Address, err)
	}
	a.mu.Lock()
	a.ln = ln
	a.mu.Unlock()
	a.Logger.Info("%s listening on %s", a.Factory.Name(), ln.Addr())
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (a *Acceptor) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ln == nil {
		return nil
	}
	return a.ln.Addr()
}

// Serve accepts connections until ctx is cancelled.  It calls Listen
// first when the address is not bound yet.
func (a *Acceptor) Serve(ctx context.Context) error {
	if a.Addr() == nil {
		if err := a.Listen(); err != nil {
			return err
		}
	}
	a.mu.Lock()
	ln := a.ln
	a.mu.Unlock()
	defer ln.Close()

	// Shut the listener down when the context expires.
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				a.Logger.Verbose("%s: stopped accepting", a.Factory.Name())
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("accept on %s: %w", ln.Addr(), err)
			}
			// Any other failure concerns one connection, not the port.
			a.Logger.Warn("%s: accept: %v", a.Factory.Name(), err)
			a.Metrics.RecordError("accept: " + err.Error())
			select {
			case <-ctx.Done():
			case <-time.After(acceptBackoff):
			}
			continue
		}

		sess := session.New(ctx, conn, session.Options{
			Logger:  a.Logger,
			Metrics: a.Metrics,
		})
		sess.Logger().Verbose("connected to %s", a.Factory.Name())
		a.Runner.Start(ctx, a.Factory, sess)
	}
}
