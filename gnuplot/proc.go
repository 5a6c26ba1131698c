package gnuplot

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// DefaultPath is the gnuplot binary used when none is configured.
const DefaultPath = "gnuplot"

// diagChanBuffer absorbs stderr bursts while the caller is mid-write and not
// yet draining checkpoints. A burst larger than the OS pipe buffer would
// otherwise stop the child reading stdin and stall a payload write.
const diagChanBuffer = 256

// StartRequest configures how the child process is launched.
type StartRequest struct {
	// Path is the gnuplot binary to run. Defaults to DefaultPath.
	Path string

	// Persist requests that interactive plot windows outlive the child.
	// Only honored if the binary supports --persist.
	Persist bool

	// Dump skips spawning a process entirely; commands and payload go to
	// Out (or the caller's stdout) instead. Used for debugging and dry
	// runs of command assembly.
	Dump bool

	// Out overrides the dump destination. Ignored unless Dump is set.
	Out io.Writer

	Env []string
}

// Proc owns a gnuplot child process: its stdin (the command/payload stream)
// and its stderr (the diagnostic stream). The stderr pipe is drained by a
// reader goroutine into Diag so that callers can wait on it with a bounded
// timeout.
type Proc struct {
	log *zap.SugaredLogger

	cmd   *exec.Cmd
	stdin io.WriteCloser

	// Diag receives stderr chunks as they arrive. Closed when the child
	// closes its stderr.
	Diag <-chan []byte

	dump bool
	out  io.Writer

	waitOnce sync.Once
	waitErr  error
}

type dumpWriter struct {
	io.Writer
}

func (w *dumpWriter) Close() error { return nil }

// Start launches the child per req. A launch failure is returned as a
// *SpawnError and is fatal to the caller; it is not retried.
func Start(log *zap.SugaredLogger, req StartRequest) (*Proc, error) {
	log = log.Named("proc")

	if req.Dump {
		out := req.Out
		if out == nil {
			out = os.Stdout
		}
		diag := make(chan []byte)
		close(diag)
		return &Proc{
			log:   log,
			stdin: &dumpWriter{Writer: out},
			Diag:  diag,
			dump:  true,
			out:   out,
		}, nil
	}

	path := req.Path
	if path == "" {
		path = DefaultPath
	}

	var args []string
	if req.Persist && PersistSupported(path) {
		args = append(args, "--persist")
	}

	cmd := exec.Command(path, args...)
	if len(req.Env) > 0 {
		cmd.Env = append(os.Environ(), req.Env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &SpawnError{Path: path, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &SpawnError{Path: path, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Path: path, Err: err}
	}
	log.Debugw("started gnuplot", "Path", path, "Args", args, "PID", cmd.Process.Pid)

	diag := make(chan []byte, diagChanBuffer)
	go func() {
		defer close(diag)
		buf := make([]byte, 4096)
		for {
			n, err := stderr.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				diag <- chunk
			}
			if err != nil {
				if err != io.EOF {
					log.Debugf("stderr reader stopping: %s", err)
				}
				return
			}
		}
	}()

	return &Proc{
		log:   log,
		cmd:   cmd,
		stdin: stdin,
		Diag:  diag,
	}, nil
}

// Dump reports whether this proc writes to a dump sink rather than a real
// child process.
func (p *Proc) Dump() bool { return p.dump }

// Write writes command or payload bytes to the child's stdin.
func (p *Proc) Write(b []byte) (int, error) {
	return p.stdin.Write(b)
}

// Terminate shuts the child down and reaps it. If stuck is set the child is
// assumed to be wedged mid-read and cannot process an exit command, so it is
// killed outright. Otherwise a graceful exit command is written first.
func (p *Proc) Terminate(stuck bool) error {
	if p.dump {
		return nil
	}
	if stuck {
		p.log.Debugw("killing stuck gnuplot", "PID", p.cmd.Process.Pid)
		if err := p.cmd.Process.Kill(); err != nil {
			p.log.Debugf("error killing process: %s", err)
		}
	} else {
		if _, err := p.stdin.Write([]byte("exit\n")); err != nil {
			p.log.Debugf("error writing exit command, killing instead: %s", err)
			p.cmd.Process.Kill()
		}
	}
	p.stdin.Close()

	// Always reap to avoid a zombie.
	p.waitOnce.Do(func() {
		err := p.cmd.Wait()
		if err != nil {
			if _, ok := err.(*exec.ExitError); !ok {
				p.waitErr = err
			}
		}
	})
	return p.waitErr
}

var (
	persistOnce      sync.Once
	persistSupported bool
)

// PersistSupported reports whether the gnuplot binary understands --persist.
// The probe runs at most once per process lifetime; the result is cached for
// all sessions regardless of path.
func PersistSupported(path string) bool {
	persistOnce.Do(func() {
		out := &bytes.Buffer{}
		cmd := exec.Command(path, "--help")
		cmd.Stdout = out
		cmd.Stderr = out
		// gnuplot --help exits non-zero on some builds; the output is
		// still usable.
		_ = cmd.Run()
		persistSupported = strings.Contains(out.String(), "persist")
	})
	return persistSupported
}
