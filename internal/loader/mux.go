// Package loader turns a programmer's location and a service name into
// a service factory.
//
// Go cannot load code at run time, so a location selects one of three
// strategies by scheme: a catalog of services compiled into the server
// (ftp, http, https, jar), executables on the local disk (file) and
// executables on a remote host reached over SSH (ssh).
package loader

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"

	brierr "bri/internal/errors"
	"bri/internal/service"
	"bri/util"
)

// Mux dispatches Load to the loader registered for the location scheme.
type Mux struct {
	Logger *util.Logger

	mu     sync.RWMutex
	routes map[string]service.Loader
}

// NewMux returns a Mux with no routes.
func NewMux(logger *util.Logger) *Mux {
	if logger == nil {
		logger = util.NewLogger(0)
	}
	return &Mux{Logger: logger, routes: make(map[string]service.Loader)}
}

// Handle routes scheme to l, replacing any previous route.
func (m *Mux) Handle(scheme string, l service.Loader) {
	m.mu.Lock()
	m.routes[scheme] = l
	m.mu.Unlock()
}

// Schemes lists the routed schemes, sorted.
func (m *Mux) Schemes() []string {
	m.mu.RLock()
	out := make([]string, 0, len(m.routes))
	for s := range m.routes {
		out = append(out, s)
	}
	m.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Load implements service.Loader.
func (m *Mux) Load(ctx context.Context, loc *url.URL, owner, name string, kind service.Kind) (service.Factory, error) {
	m.mu.RLock()
	l := m.routes[loc.Scheme]
	m.mu.RUnlock()
	if l == nil {
		return nil, fmt.Errorf("no loader for scheme %q: %w", loc.Scheme, brierr.ErrBadURL)
	}

	f, err := l.Load(ctx, loc, owner, name, kind)
	if err != nil {
		m.Logger.Verbose("load %s (%s) for %s: %v", name, kind, owner, err)
		return nil, err
	}
	m.Logger.Verbose("loaded %s (%s) for %s from %s", name, kind, owner, service.Resolve(loc, owner, name, kind))
	return f, nil
}
