package service

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	brierr "bri/internal/errors"
)

// Kind says how a service name maps onto a programmer's location.
type Kind int

const (
	// KindClass loads <name> directly under the location.
	KindClass Kind = iota
	// KindJar loads <name> from inside the <name>.jar archive.
	KindJar
)

func (k Kind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindJar:
		return "jar"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind parses "class" or "jar".  Anything else is ErrSyntax.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "class":
		return KindClass, nil
	case "jar":
		return KindJar, nil
	}
	return 0, fmt.Errorf("kind %q: %w", s, brierr.ErrSyntax)
}

// Loader resolves a service by owner and name against a base location
// and returns a validated factory.
//
// Errors: ErrNotFound when nothing exists at the resolved location,
// ErrBadURL for a location the loader cannot handle, and
// *NotConformantError when the unit exists but breaks the contract.
type Loader interface {
	Load(ctx context.Context, location *url.URL, owner, name string, kind Kind) (Factory, error)
}

// Schemes accepted for a programmer location.
var locationSchemes = map[string]bool{
	"ftp":   true,
	"http":  true,
	"https": true,
	"file":  true,
	"ssh":   true,
	"jar":   true,
}

// ParseLocation parses a programmer's service location.  The result
// always denotes a directory: its path ends with "/".
func ParseLocation(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty location: %w", brierr.ErrBadURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("location %q: %v: %w", raw, err, brierr.ErrBadURL)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if !locationSchemes[u.Scheme] {
		return nil, fmt.Errorf("location %q: unsupported scheme %q: %w", raw, u.Scheme, brierr.ErrBadURL)
	}
	if u.Scheme != "file" && u.Scheme != "jar" && u.Host == "" {
		return nil, fmt.Errorf("location %q: missing host: %w", raw, brierr.ErrBadURL)
	}
	if u.Opaque != "" {
		return nil, fmt.Errorf("location %q: not hierarchical: %w", raw, brierr.ErrBadURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// Resolve returns where the unit for owner/name lives under location.
// A jar is treated as a nested directory named <name>.jar.
func Resolve(location *url.URL, owner, name string, kind Kind) *url.URL {
	u := *location
	base := u.Path
	if base == "" {
		base = "/"
	}
	switch kind {
	case KindJar:
		u.Path = path.Join(base, name+".jar", owner, name)
	default:
		u.Path = path.Join(base, owner, name)
	}
	return &u
}
