package loader

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"

	brierr "bri/internal/errors"
	"bri/internal/service"
)

// Catalog serves factories compiled into the server.  A unit is looked
// up as "owner/name" first, then as "name", so a catalog can hold both
// per-programmer and shared services.  The location itself only names
// where the unit would live; it is echoed in errors.
type Catalog struct {
	mu    sync.RWMutex
	units map[string]service.Factory
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{units: make(map[string]service.Factory)}
}

// Register stores f under key ("owner/name" or "name").
func (c *Catalog) Register(key string, f service.Factory) {
	c.mu.Lock()
	c.units[key] = f
	c.mu.Unlock()
}

// Keys returns the registered keys, sorted.
func (c *Catalog) Keys() []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.units))
	for k := range c.units {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Load implements service.Loader.
func (c *Catalog) Load(_ context.Context, loc *url.URL, owner, name string, kind service.Kind) (service.Factory, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, key := range []string{owner + "/" + name, name} {
		if f, ok := c.units[key]; ok {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", service.Resolve(loc, owner, name, kind), brierr.ErrNotFound)
}
