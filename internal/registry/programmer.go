package registry

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	brierr "bri/internal/errors"
	"bri/internal/service"
)

// Programmer is an authenticated user who publishes services from a
// location of their own.
type Programmer struct {
	username string
	registry *Registry

	mu       sync.Mutex
	password [sha256.Size]byte
	location *url.URL
	services map[string]service.Factory
}

func newProgrammer(reg *Registry, username, password, location string) (*Programmer, error) {
	loc, err := service.ParseLocation(location)
	if err != nil {
		return nil, err
	}
	return &Programmer{
		username: username,
		registry: reg,
		password: digest(password),
		location: loc,
		services: make(map[string]service.Factory),
	}, nil
}

func digest(password string) [sha256.Size]byte {
	return sha256.Sum256([]byte(password))
}

// Username returns the programmer's login name.
func (p *Programmer) Username() string { return p.username }

// Location returns a copy of the base URL services are loaded from.
func (p *Programmer) Location() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()
	u := *p.location
	return &u
}

// Login reports whether attempt matches the stored password.
func (p *Programmer) Login(attempt string) bool {
	sum := digest(attempt)
	p.mu.Lock()
	defer p.mu.Unlock()
	return subtle.ConstantTimeCompare(p.password[:], sum[:]) == 1
}

// SetPassword replaces the password when old matches the current one.
func (p *Programmer) SetPassword(old, next string) bool {
	oldSum, nextSum := digest(old), digest(next)
	p.mu.Lock()
	defer p.mu.Unlock()
	if subtle.ConstantTimeCompare(p.password[:], oldSum[:]) != 1 {
		return false
	}
	p.password = nextSum
	return true
}

// SetLocation changes the base URL.  On ErrBadURL the location is kept.
func (p *Programmer) SetLocation(raw string) error {
	loc, err := service.ParseLocation(raw)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.location = loc
	p.mu.Unlock()
	return nil
}

// AddService loads name through loader and stores it in the catalog,
// replacing an existing entry of the same name.  The new factory is not
// activated.
func (p *Programmer) AddService(ctx context.Context, loader service.Loader, name string, kind service.Kind) error {
	if name == "" || strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("service name %q: %w", name, brierr.ErrSyntax)
	}
	loc := p.Location()

	f, err := loader.Load(ctx, loc, p.username, name, kind)
	if err != nil {
		return err
	}
	if err := service.Validate(f); err != nil {
		return err
	}

	p.mu.Lock()
	p.services[name] = f
	p.mu.Unlock()
	return nil
}

// Service returns the catalog entry for name, or nil.
func (p *Programmer) Service(name string) service.Factory {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.services[name]
}

// Names returns the catalog names, sorted.
func (p *Programmer) Names() []string {
	p.mu.Lock()
	names := make([]string, 0, len(p.services))
	for name := range p.services {
		names = append(names, name)
	}
	p.mu.Unlock()
	sort.Strings(names)
	return names
}

// ServiceList renders the catalog with each entry's activation state.
func (p *Programmer) ServiceList() string {
	var b strings.Builder
	b.WriteString("Services :")
	for _, name := range p.Names() {
		state := "off"
		if f := p.Service(name); f != nil && p.registry.GetActive(f.Name()) != nil {
			state = "on"
		}
		fmt.Fprintf(&b, "\n%s - %s", name, state)
	}
	return b.String()
}

// Activate offers the catalog entry name to amateurs.  Unknown names
// are ignored.
func (p *Programmer) Activate(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registry.AddService(p.services[name])
}

// Deactivate withdraws the catalog entry name.  Unknown names are
// ignored.
func (p *Programmer) Deactivate(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registry.RemoveService(p.services[name])
}

// RemoveService deactivates name and drops it from the catalog.
func (p *Programmer) RemoveService(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registry.RemoveService(p.services[name])
	delete(p.services, name)
}
