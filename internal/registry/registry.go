// Package registry holds the shared state of a BRi server: the known
// programmers and the services currently offered to amateurs.
//
// Everything is in memory.  A Registry is created once by the serve
// mode and injected into the services that need it.
package registry

import (
	"sort"
	"strings"
	"sync"

	"bri/internal/service"
)

// Registry maps usernames to programmers and display names to active
// service factories.  All methods are safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	programmers map[string]*Programmer

	svcMu    sync.RWMutex
	services map[string]service.Factory
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		programmers: make(map[string]*Programmer),
		services:    make(map[string]service.Factory),
	}
}

// ── Programmers ──────────────────────────────────────────────────────

// AddProgrammer registers a programmer.  It reports false, leaving the
// registry unchanged, when username is already taken.  A location that
// does not parse fails with ErrBadURL.
func (r *Registry) AddProgrammer(username, password, location string) (bool, error) {
	p, err := newProgrammer(r, username, password, location)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.programmers[username]; exists {
		return false, nil
	}
	r.programmers[username] = p
	return true, nil
}

// Authenticate returns the programmer when username exists and password
// matches, nil otherwise.
func (r *Registry) Authenticate(username, password string) *Programmer {
	p := r.Programmer(username)
	if p == nil || !p.Login(password) {
		return nil
	}
	return p
}

// Programmer returns the programmer registered as username, or nil.
func (r *Registry) Programmer(username string) *Programmer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.programmers[username]
}

// Programmers returns the registered usernames, sorted.
func (r *Registry) Programmers() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.programmers))
	for u := range r.programmers {
		names = append(names, u)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// ── Active services ──────────────────────────────────────────────────

// AddService offers f to amateurs under f.Name(), replacing whatever was
// there.  A nil factory is ignored.
func (r *Registry) AddService(f service.Factory) {
	if f == nil {
		return
	}
	name := f.Name()
	r.svcMu.Lock()
	r.services[name] = f
	r.svcMu.Unlock()
}

// RemoveService withdraws the service named f.Name().  A nil factory is
// ignored.
func (r *Registry) RemoveService(f service.Factory) {
	if f == nil {
		return
	}
	name := f.Name()
	r.svcMu.Lock()
	delete(r.services, name)
	r.svcMu.Unlock()
}

// GetActive returns the active factory named name, or nil.
func (r *Registry) GetActive(name string) service.Factory {
	r.svcMu.RLock()
	defer r.svcMu.RUnlock()
	return r.services[name]
}

// ActiveNames returns a sorted snapshot of the active service names.
func (r *Registry) ActiveNames() []string {
	r.svcMu.RLock()
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	r.svcMu.RUnlock()
	sort.Strings(names)
	return names
}

// ListActiveServiceNames renders the listing shown to amateurs.
func (r *Registry) ListActiveServiceNames() string {
	var b strings.Builder
	b.WriteString("Available services :")
	for _, name := range r.ActiveNames() {
		b.WriteString("\n")
		b.WriteString(name)
	}
	return b.String()
}
