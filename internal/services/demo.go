package services

import (
	"context"
	"strings"
	"time"

	"bri/internal/loader"
	"bri/internal/service"
	"bri/internal/session"
)

// Echo repeats every line until the peer sends an empty line.
func Echo() service.Factory {
	return lineService("echo", "Type a line (empty to quit): ", func(s string) string { return s })
}

// Upper repeats every line in upper case until the peer sends an empty
// line.
func Upper() service.Factory {
	return lineService("upper", "Type a line to shout (empty to quit): ", strings.ToUpper)
}

func lineService(name, prompt string, transform func(string) string) service.Factory {
	return service.FactoryFunc(name, func(sess *session.Session) service.Service {
		return service.Func(func(context.Context) error {
			for {
				sess.Write(prompt)
				line, err := sess.Read()
				if err != nil {
					return err
				}
				if line == "" {
					sess.Write("Bye")
					return nil
				}
				sess.Write(transform(line) + "\n")
			}
		})
	})
}

// Clock writes the server time and ends the session.  now defaults to
// time.Now.
func Clock(now func() time.Time) service.Factory {
	if now == nil {
		now = time.Now
	}
	return service.FactoryFunc("clock", func(sess *session.Session) service.Service {
		return service.Func(func(context.Context) error {
			sess.Write("Server time: " + now().Format(time.RFC1123))
			return nil
		})
	})
}

// Banner writes text and ends the session.
func Banner(text string) service.Factory {
	return service.FactoryFunc("banner", func(sess *session.Session) service.Service {
		return service.Func(func(context.Context) error {
			sess.Write(text)
			return nil
		})
	})
}

// RegisterDemo adds the demo services to c as shared units, so every
// programmer can add them whatever their location.
func RegisterDemo(c *loader.Catalog, banner string) {
	for _, f := range []service.Factory{Echo(), Upper(), Clock(nil), Banner(banner)} {
		c.Register(f.Name(), f)
	}
}
