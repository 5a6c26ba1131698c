package gnuplot

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultPollTimeout bounds each wait for diagnostic output during a
// checkpoint. If the child produces nothing for this long, it is declared
// stuck.
const DefaultPollTimeout = 5 * time.Second

// Conn is the command channel to a gnuplot child: it writes newline-terminated
// command lines and payload bytes to the child's stdin, and synchronizes with
// the child by round-tripping sync tokens over its stderr.
//
// Conn is not safe for concurrent use. The sync protocol has no request IDs,
// so overlapping operations would desynchronize token matching; one caller
// drives one Conn at a time.
type Conn struct {
	log  *zap.SugaredLogger
	proc *Proc

	pollTimeout time.Duration
	warnSink    func(string)

	// pending accumulates stderr bytes read but not yet consumed by a
	// checkpoint.
	pending strings.Builder

	// stuckErr is set permanently after a checkpoint timeout. Every later
	// call short-circuits to it without writing to the child.
	stuckErr error

	taps *tapSet
}

type ConnOption func(c *Conn)

// WithPollTimeout overrides DefaultPollTimeout.
func WithPollTimeout(d time.Duration) ConnOption {
	return func(c *Conn) {
		c.pollTimeout = d
	}
}

// WithWarningSink installs a destination for gnuplot warnings collected
// during checkpoints that request forwarding.
func WithWarningSink(f func(string)) ConnOption {
	return func(c *Conn) {
		c.warnSink = f
	}
}

func NewConn(log *zap.SugaredLogger, proc *Proc, opts ...ConnOption) *Conn {
	c := &Conn{
		log:         log.Named("conn"),
		proc:        proc,
		pollTimeout: DefaultPollTimeout,
		taps:        &tapSet{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Stuck reports whether the connection has entered the terminal stuck state.
func (c *Conn) Stuck() bool { return c.stuckErr != nil }

// AddTap registers a writer that receives a copy of every byte written to the
// child. Tap write errors are logged, never propagated.
func (c *Conn) AddTap(w io.Writer) { c.taps.Add(w) }

// RemoveTap unregisters a previously added tap.
func (c *Conn) RemoveTap(w io.Writer) { c.taps.Remove(w) }

// Write sends raw payload bytes to the child, mirroring them to any taps.
func (c *Conn) Write(b []byte) (int, error) {
	if c.stuckErr != nil {
		return 0, c.stuckErr
	}
	n, err := c.proc.Write(b)
	c.taps.Mirror(c.log, b)
	return n, err
}

// Send writes exactly one newline-terminated command line, unconditionally.
func (c *Conn) Send(line string) error {
	if c.stuckErr != nil {
		return c.stuckErr
	}
	_, err := c.Write([]byte(line + "\n"))
	if err != nil {
		return fmt.Errorf("writing command %q: %w", line, err)
	}
	return nil
}

// Allow flags unlock specific classes of guarded commands. Each flag exists
// for one purpose and is used only by the session's own configuration paths.
type Allow uint8

const (
	AllowTerminal Allow = 1 << iota // set terminal / set term
	AllowOutput                     // set output / unset output
	AllowPrint                      // print and set print
)

// guard returns the Allow flag required to send line, or 0 if the line is
// unconditionally safe. Guarded commands are the ones that could suppress or
// redirect the stderr stream this Conn synchronizes on, or silently change
// the rendering target.
func guard(line string) (Allow, string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, ""
	}
	switch fields[0] {
	case "print":
		return AllowPrint, "print writes to the diagnostic stream used for synchronization"
	case "set":
		if len(fields) < 2 {
			return 0, ""
		}
		switch fields[1] {
		case "print":
			return AllowPrint, "set print redirects the diagnostic stream used for synchronization"
		case "terminal", "term":
			return AllowTerminal, "set terminal changes the rendering target outside the session's terminal path"
		case "output":
			return AllowOutput, "set output changes the rendering target outside the session's output path"
		}
	case "unset":
		if len(fields) >= 2 && fields[1] == "print" {
			return AllowPrint, "unset print redirects the diagnostic stream used for synchronization"
		}
		if len(fields) >= 2 && fields[1] == "output" {
			return AllowOutput, "unset output changes the rendering target outside the session's output path"
		}
	}
	return 0, ""
}

// SendGuarded splits cmds on newlines and sends each non-empty line,
// rejecting lines that would break the sync protocol unless the matching
// Allow flag is passed. After each line it checkpoints, forwarding warnings,
// and fails fast with the offending line attached if the child reported
// anything else.
func (c *Conn) SendGuarded(cmds string, allow Allow) error {
	for _, line := range strings.Split(cmds, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if need, reason := guard(line); need != 0 && allow&need == 0 {
			return &GuardError{Line: line, Reason: reason}
		}
		if err := c.Send(line); err != nil {
			return err
		}
		if _, err := c.Checkpoint(CheckpointOpts{ForwardWarnings: true}); err != nil {
			if cmdErr, ok := err.(*CommandError); ok {
				cmdErr.Line = line
			}
			return err
		}
	}
	return nil
}

// CheckpointOpts selects how checkpoint output is interpreted.
type CheckpointOpts struct {
	// ForwardWarnings sends recognized warning lines to the warning sink
	// instead of discarding them.
	ForwardWarnings bool

	// FilterProbeNoise drops the known-benign error class produced when a
	// dry-run probe's placeholder payload lands on the command
	// interpreter.
	FilterProbeNoise bool

	// Expect, if non-empty, is a marker whose presence in the captured
	// text is reported via CheckpointResult.Found. The marker is removed
	// from the text before deciding whether an error remains.
	Expect string
}

// CheckpointResult carries the diagnostic text captured between the previous
// checkpoint and this one.
type CheckpointResult struct {
	Text     string
	Warnings []string
	Found    bool
}

var (
	warningRe = regexp.MustCompile(`(?m)^.*?[Ww]arning:[ \t]*(.*?)[ \t]*$\n?`)

	// Noise produced when a failed probe command leaves placeholder
	// payload lines to be parsed as commands.
	probeNoiseRes = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^gnuplot> .*$\n?`),
		regexp.MustCompile(`(?m)^[ \t]*\^[ \t]*$\n?`),
		regexp.MustCompile(`(?m)^.*input data \('e' ends\).*$\n?`),
		regexp.MustCompile(`(?m)^.*line \d+: invalid command.*$\n?`),
		regexp.MustCompile(`(?m)^.*Skipping data file with no valid points.*$\n?`),
	}
)

// Checkpoint writes a command that makes the child echo a unique sync token
// on stderr, then reads stderr with a bounded per-poll wait until the token
// appears. The text preceding the token is everything the child said since
// the previous checkpoint.
//
// A poll that yields nothing within the timeout marks the connection stuck
// permanently and returns a *HangTimeoutError. If, after warning stripping
// and filtering, any diagnostic text remains, a *CommandError carrying that
// text is returned along with the captured result.
func (c *Conn) Checkpoint(opts CheckpointOpts) (CheckpointResult, error) {
	if c.stuckErr != nil {
		return CheckpointResult{}, c.stuckErr
	}
	if c.proc.Dump() {
		// No child, no diagnostics to synchronize with.
		return CheckpointResult{Found: opts.Expect != ""}, nil
	}

	token := "plotpipe-sync-" + uuid.NewString()
	if _, err := c.Write([]byte("print \"" + token + "\"\n")); err != nil {
		return CheckpointResult{}, fmt.Errorf("writing sync token: %w", err)
	}

	for !strings.Contains(c.pending.String(), token) {
		select {
		case chunk, ok := <-c.proc.Diag:
			if !ok {
				err := &ExitedError{Partial: c.pending.String()}
				c.stuckErr = err
				return CheckpointResult{}, err
			}
			c.pending.Write(chunk)
		case <-time.After(c.pollTimeout):
			err := &HangTimeoutError{Timeout: c.pollTimeout, Partial: c.pending.String()}
			c.stuckErr = err
			c.log.Errorw("checkpoint timed out, marking session stuck", "Timeout", c.pollTimeout)
			return CheckpointResult{}, err
		}
	}

	buffered := c.pending.String()
	idx := strings.Index(buffered, token)
	captured := buffered[:idx]
	rest := buffered[idx+len(token):]
	rest = strings.TrimPrefix(rest, "\n")
	c.pending.Reset()
	c.pending.WriteString(rest)

	res := CheckpointResult{}
	text := captured

	for _, m := range warningRe.FindAllStringSubmatch(text, -1) {
		res.Warnings = append(res.Warnings, m[1])
	}
	text = warningRe.ReplaceAllString(text, "")
	if opts.ForwardWarnings && c.warnSink != nil {
		for _, w := range res.Warnings {
			c.warnSink(w)
		}
	}

	if opts.FilterProbeNoise {
		for _, re := range probeNoiseRes {
			text = re.ReplaceAllString(text, "")
		}
	}

	if opts.Expect != "" && strings.Contains(text, opts.Expect) {
		res.Found = true
		text = strings.Replace(text, opts.Expect, "", 1)
	}

	text = strings.TrimSpace(text)
	res.Text = text
	if text != "" {
		return res, &CommandError{Diagnostics: text}
	}
	return res, nil
}
