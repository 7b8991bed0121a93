package service

import (
	"fmt"
	"strings"
	"unicode"

	brierr "bri/internal/errors"
	"bri/internal/session"
)

// Validate checks that f satisfies the service contract: a non-empty,
// whitespace-free, stable display name and a New that returns a service
// without panicking.  Failures are *errors.NotConformantError.
func Validate(f Factory) (err error) {
	if f == nil {
		return brierr.NotConformant("", "Service is missing")
	}

	name, err := probeName(f)
	if err != nil {
		return err
	}
	switch {
	case name == "":
		return brierr.NotConformant(name, "Service must have a name")
	case strings.IndexFunc(name, unicode.IsSpace) >= 0:
		return brierr.NotConformant(name, "Service name must not contain spaces")
	}
	if again, err := probeName(f); err != nil || again != name {
		return brierr.NotConformant(name, "Service name must not change")
	}

	defer func() {
		if r := recover(); r != nil {
			err = brierr.NotConformant(name, fmt.Sprintf("Service constructor failed: %v", r))
		}
	}()
	if f.New(session.Detached()) == nil {
		return brierr.NotConformant(name, "Service constructor returned nothing")
	}
	return nil
}

func probeName(f Factory) (name string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = brierr.NotConformant("", fmt.Sprintf("Service name failed: %v", r))
		}
	}()
	return f.Name(), nil
}
