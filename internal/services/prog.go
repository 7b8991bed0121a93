// Package services implements the two entry-point services of a BRi
// server, the programmer console and the amateur selector, plus the
// demo services compiled into the default catalog.
package services

import (
	"context"
	"strings"

	brierr "bri/internal/errors"
	"bri/internal/metrics"
	"bri/internal/registry"
	"bri/internal/service"
	"bri/internal/session"
)

// Replies shared by several commands.
const (
	replySuccess       = "Success"
	replyInvalidSyntax = "Invalid syntax"
	replyUnknown       = "unknown command"
	replyBadLogin      = "Invalid username or password, please try again."
	replyWelcome       = "Type help to obtain list of available command."
	promptCommand      = "\n>> "
)

// Prog is the factory behind the programmer port.
type Prog struct {
	Registry *registry.Registry
	Loader   service.Loader
	Metrics  *metrics.Collector
}

// Name implements service.Factory.
func (p *Prog) Name() string { return "prog" }

// New implements service.Factory.
func (p *Prog) New(sess *session.Session) service.Service {
	return &progSession{Prog: p, sess: sess}
}

type progSession struct {
	*Prog
	sess *session.Session
	user *registry.Programmer
}

type command struct {
	usage string
	blurb string
	// run handles the arguments after the command word.  It returns
	// true when the session is over.
	run func(ps *progSession, ctx context.Context, args []string) bool
}

// commands in the order help lists them.
var commandOrder = []string{"changeftp", "add", "see", "on", "off", "update", "rem", "passwd", "close"}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help": {
			usage: "help [command] - lists the commands or shows how to use one",
			run:   (*progSession).help,
		},
		"changeftp": {
			usage: "changeftp <url> - sets your service location to url",
			blurb: "changeftp - to change your service location.",
			run:   (*progSession).changeftp,
		},
		"add": {
			usage: "add <name> <class|jar> [on|off] - adds the service to the BRiPlatform",
			blurb: "add - add a service to the BRiPlatform.",
			run:   (*progSession).add,
		},
		"see": {
			usage: "see - to see your services and their status",
			blurb: "see - to see your services and their status.",
			run:   (*progSession).see,
		},
		"on": {
			usage: "on <name> - activates the specified service",
			blurb: "on - to activate one of your services.",
			run:   (*progSession).on,
		},
		"off": {
			usage: "off <name> - deactivates the specified service",
			blurb: "off - to deactivate one of your services.",
			run:   (*progSession).off,
		},
		"update": {
			usage: "update <name> <class|jar> [on|off] - updates the specified service",
			blurb: "update - to update one of your services.",
			run:   (*progSession).update,
		},
		"rem": {
			usage: "rem <name> - uninstalls the specified service",
			blurb: "rem - to remove one of your services.",
			run:   (*progSession).rem,
		},
		"passwd": {
			usage: "passwd <old> <new> - changes your password",
			blurb: "passwd - to change your password.",
			run:   (*progSession).passwd,
		},
		"close": {
			usage: "close - to end the connection.",
			blurb: "close - to end the connection.",
			run:   (*progSession).close,
		},
	}
}

// Run authenticates the peer and then serves commands until the peer
// leaves or sends close.
func (ps *progSession) Run(ctx context.Context) error {
	if err := ps.login(); err != nil {
		return err
	}
	ps.sess.Logger().Info("programmer %s logged in", ps.user.Username())
	ps.sess.Write(replyWelcome)

	for {
		ps.sess.Write(promptCommand)
		line, err := ps.sess.Read()
		if err != nil {
			return err
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			ps.sess.Write(replyUnknown)
			continue
		}
		cmd, ok := commands[fields[0]]
		if !ok {
			ps.sess.Write(replyUnknown)
			continue
		}
		ps.sess.Logger().Debug("%s: %s", ps.user.Username(), fields[0])
		if cmd.run(ps, ctx, fields[1:]) {
			return nil
		}
	}
}

func (ps *progSession) login() error {
	for {
		ps.sess.Write("Username: ")
		username, err := ps.sess.Read()
		if err != nil {
			return err
		}
		ps.sess.Write("Password: ")
		password, err := ps.sess.Read()
		if err != nil {
			return err
		}

		if ps.user = ps.Registry.Authenticate(username, password); ps.user != nil {
			return nil
		}
		ps.Metrics.AuthFailure()
		ps.sess.Logger().Warn("failed login for %q", username)
		ps.sess.Write(replyBadLogin)
	}
}

// ── commands ─────────────────────────────────────────────────────────

func (ps *progSession) help(_ context.Context, args []string) bool {
	if len(args) == 0 {
		blurbs := make([]string, 0, len(commandOrder))
		for _, name := range commandOrder {
			blurbs = append(blurbs, commands[name].blurb)
		}
		ps.sess.Write(strings.Join(blurbs, "\n"))
		return false
	}
	if cmd, ok := commands[args[0]]; ok {
		ps.sess.Write(cmd.usage)
	} else {
		ps.sess.Write(args[0] + " : " + replyUnknown)
	}
	return false
}

func (ps *progSession) changeftp(_ context.Context, args []string) bool {
	if len(args) == 0 {
		ps.sess.Write(replyInvalidSyntax)
		return false
	}
	ps.reply(ps.user.SetLocation(args[0]))
	return false
}

func (ps *progSession) add(ctx context.Context, args []string) bool {
	if len(args) < 2 {
		ps.sess.Write(replyInvalidSyntax)
		return false
	}
	kind, err := service.ParseKind(args[1])
	if err != nil {
		ps.sess.Write(replyInvalidSyntax)
		return false
	}
	name := args[0]
	if err := ps.user.AddService(ctx, ps.Loader, name, kind); err != nil {
		ps.sess.Logger().Verbose("add %s for %s: %v", name, ps.user.Username(), err)
		ps.reply(err)
		return false
	}
	if len(args) < 3 || args[2] != "off" {
		ps.user.Activate(name)
	}
	ps.sess.Write(replySuccess)
	return false
}

func (ps *progSession) see(context.Context, []string) bool {
	ps.sess.Write(ps.user.ServiceList())
	return false
}

func (ps *progSession) on(_ context.Context, args []string) bool {
	if len(args) == 0 {
		ps.sess.Write(replyUnknown)
		return false
	}
	ps.user.Activate(args[0])
	ps.sess.Write(replySuccess)
	return false
}

func (ps *progSession) off(_ context.Context, args []string) bool {
	if len(args) == 0 {
		ps.sess.Write(replyUnknown)
		return false
	}
	ps.user.Deactivate(args[0])
	ps.sess.Write(replySuccess)
	return false
}

func (ps *progSession) update(ctx context.Context, args []string) bool {
	if len(args) < 2 {
		ps.sess.Write(replyInvalidSyntax)
		return false
	}
	ps.user.RemoveService(args[0])
	return ps.add(ctx, args)
}

func (ps *progSession) rem(_ context.Context, args []string) bool {
	if len(args) == 0 {
		ps.sess.Write(replyUnknown)
		return false
	}
	ps.user.RemoveService(args[0])
	ps.sess.Write(replySuccess)
	return false
}

func (ps *progSession) passwd(_ context.Context, args []string) bool {
	if len(args) < 2 {
		ps.sess.Write(replyInvalidSyntax)
		return false
	}
	if !ps.user.SetPassword(args[0], args[1]) {
		ps.Metrics.AuthFailure()
		ps.sess.Write(replyBadLogin)
		return false
	}
	ps.sess.Write(replySuccess)
	return false
}

func (ps *progSession) close(context.Context, []string) bool {
	ps.sess.Logger().Info("programmer %s closed the session", ps.user.Username())
	if err := ps.sess.Finish(); err != nil {
		ps.sess.Logger().Debug("finish: %v", err)
	}
	return true
}

// reply writes the line a programmer sees for err.
func (ps *progSession) reply(err error) {
	msg := brierr.UserMessage(err)
	if msg == brierr.MsgUnavailable {
		ps.sess.Logger().Warn("programmer %s: %v", ps.user.Username(), err)
	}
	ps.sess.Write(msg)
}
