// Package service defines what runs over an accepted connection.
//
// A Factory is the loadable unit a programmer registers: it has a
// stable display name and builds one Service per connection.  The
// Runner executes services on their own goroutine and guarantees the
// session is finished when the service ends.
package service

import (
	"context"

	"bri/internal/session"
)

// Service converses with one peer over its session.  Run blocks until
// the conversation is over or ctx is cancelled.
type Service interface {
	Run(ctx context.Context) error
}

// Factory builds services bound to a session.
type Factory interface {
	// Name is the display name amateurs select the service by.
	Name() string
	// New binds a fresh service to sess.  It must not block.
	New(sess *session.Session) Service
}

// Func adapts an ordinary function to the Service interface.
type Func func(ctx context.Context) error

// Run calls f(ctx).
func (f Func) Run(ctx context.Context) error { return f(ctx) }

type funcFactory struct {
	name string
	fn   func(sess *session.Session) Service
}

func (f *funcFactory) Name() string                       { return f.name }
func (f *funcFactory) New(sess *session.Session) Service { return f.fn(sess) }

// FactoryFunc returns a Factory named name that builds services with fn.
func FactoryFunc(name string, fn func(sess *session.Session) Service) Factory {
	return &funcFactory{name: name, fn: fn}
}
