package loader

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	brierr "bri/internal/errors"
	"bri/internal/service"
	"bri/internal/session"
)

// Exec serves file:// locations.  A unit is an executable file; every
// connection runs it with stdin and stdout bound to the peer.
type Exec struct {
	// Root, when set, confines resolved paths to this directory.
	Root string
}

// Load implements service.Loader.
func (e *Exec) Load(_ context.Context, loc *url.URL, owner, name string, kind service.Kind) (service.Factory, error) {
	if loc.Scheme != "file" {
		return nil, fmt.Errorf("exec loader cannot read %q: %w", loc.Scheme, brierr.ErrBadURL)
	}
	path := filepath.Clean(filepath.FromSlash(service.Resolve(loc, owner, name, kind).Path))

	if e.Root != "" {
		root, err := filepath.Abs(e.Root)
		if err != nil {
			return nil, fmt.Errorf("service root %s: %w", e.Root, err)
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("%s is outside %s: %w", path, root, brierr.ErrBadURL)
		}
	}

	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, brierr.ErrNotFound)
		}
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		return nil, brierr.NotConformant(name, "Service is not a regular file")
	}
	if runtime.GOOS != "windows" && fi.Mode().Perm()&0o111 == 0 {
		return nil, brierr.NotConformant(name, "Service is not executable")
	}
	return &execFactory{name: name, path: path}, nil
}

type execFactory struct {
	name string
	path string
}

func (f *execFactory) Name() string { return f.name }

func (f *execFactory) New(sess *session.Session) service.Service {
	return &execService{path: f.path, sess: sess}
}

type execService struct {
	path string
	sess *session.Session
}

// Run starts the program with its stdio connected to the session's raw
// stream and waits for it to exit.
func (s *execService) Run(ctx context.Context) error {
	in, out, err := s.sess.Stream()
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, s.path)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = time.Second
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}

	s.sess.Logger().Debug("exec: %s", cmd.String())
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("exec %q: %w", s.path, err)
	}
	// Left blocked on the peer after the process exits; the session
	// close that follows Run unblocks it.
	go func() {
		io.Copy(stdin, in) //nolint:errcheck
		stdin.Close()
	}()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("exec %q: %w", s.path, err)
	}
	return nil
}
