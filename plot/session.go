package plot

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/guseggert/plotpipe/gnuplot"
	"go.uber.org/zap"
)

// Session owns one gnuplot child process and drives draws through it
// sequentially. Session-scoped options are fixed at construction; curve-level
// options arrive with each draw call.
//
// A Session serializes its operations with an internal mutex, but the
// underlying protocol is strictly sequential: one draw is fully written and
// synchronized before the next begins.
type Session struct {
	log *zap.SugaredLogger

	mu     sync.Mutex
	proc   *gnuplot.Proc
	conn   *gnuplot.Conn
	opts   PlotOptions
	binary bool
	threeD bool

	// started is kept for diagnostic timing only.
	started time.Time
	closed  bool
}

type sessionConfig struct {
	log      *zap.SugaredLogger
	path     string
	persist  bool
	dump     bool
	dumpOut  io.Writer
	timeout  time.Duration
	warnSink func(string)
	binary   bool
	tap      io.Writer
	env      []string
}

type SessionOption func(*sessionConfig)

func WithLogger(l *zap.Logger) SessionOption {
	return func(c *sessionConfig) {
		c.log = l.Sugar().Named(loggerName)
	}
}

// WithGnuplotPath overrides the gnuplot binary.
func WithGnuplotPath(path string) SessionOption {
	return func(c *sessionConfig) {
		c.path = path
	}
}

// WithPersist asks for plot windows that outlive the child, if the binary
// supports it.
func WithPersist() SessionOption {
	return func(c *sessionConfig) {
		c.persist = true
	}
}

// WithDump skips spawning gnuplot and writes all commands and payload to w
// instead (the caller's stdout if w is nil).
func WithDump(w io.Writer) SessionOption {
	return func(c *sessionConfig) {
		c.dump = true
		c.dumpOut = w
	}
}

// WithTimeout overrides the per-poll checkpoint timeout.
func WithTimeout(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		c.timeout = d
	}
}

// WithWarningSink receives gnuplot warnings collected during draws.
func WithWarningSink(f func(string)) SessionOption {
	return func(c *sessionConfig) {
		c.warnSink = f
	}
}

// WithBinary transfers payload as packed doubles instead of text rows.
func WithBinary() SessionOption {
	return func(c *sessionConfig) {
		c.binary = true
	}
}

// WithVerboseTap mirrors every byte sent to the child into w, for debugging
// the wire protocol.
func WithVerboseTap(w io.Writer) SessionOption {
	return func(c *sessionConfig) {
		c.tap = w
	}
}

func WithEnv(env []string) SessionOption {
	return func(c *sessionConfig) {
		c.env = env
	}
}

// NewSession spawns a gnuplot child and applies the session-scoped options.
// A spawn failure is fatal and surfaced immediately; it is not retried.
func NewSession(opts PlotOptions, sopts ...SessionOption) (*Session, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	cfg := sessionConfig{
		log: defaultLogger,
	}
	for _, o := range sopts {
		o(&cfg)
	}

	proc, err := gnuplot.Start(cfg.log, gnuplot.StartRequest{
		Path:    cfg.path,
		Persist: cfg.persist,
		Dump:    cfg.dump,
		Out:     cfg.dumpOut,
		Env:     cfg.env,
	})
	if err != nil {
		return nil, err
	}

	var connOpts []gnuplot.ConnOption
	if cfg.timeout != 0 {
		connOpts = append(connOpts, gnuplot.WithPollTimeout(cfg.timeout))
	}
	if cfg.warnSink != nil {
		connOpts = append(connOpts, gnuplot.WithWarningSink(cfg.warnSink))
	}
	conn := gnuplot.NewConn(cfg.log, proc, connOpts...)
	if cfg.tap != nil {
		conn.AddTap(cfg.tap)
	}

	s := &Session{
		log:     cfg.log,
		proc:    proc,
		conn:    conn,
		opts:    opts,
		binary:  cfg.binary,
		threeD:  opts[Opt3D] != "" && opts[Opt3D] != "off",
		started: time.Now(),
	}

	if err := s.init(); err != nil {
		proc.Terminate(conn.Stuck())
		return nil, err
	}
	s.log.Debugw("session ready", "Elapsed", time.Since(s.started))
	return s, nil
}

// init verifies the sync protocol works before its first real use, then
// applies the session options.
func (s *Session) init() error {
	if _, err := s.conn.Checkpoint(gnuplot.CheckpointOpts{}); err != nil {
		return fmt.Errorf("initial sync with gnuplot: %w", err)
	}

	if term, ok := s.opts[OptTerminal]; ok {
		if err := s.conn.SendGuarded("set terminal "+term, gnuplot.AllowTerminal); err != nil {
			return err
		}
	}
	if out, ok := s.opts[OptOutput]; ok {
		if err := s.conn.SendGuarded("set output "+quote(out), gnuplot.AllowOutput); err != nil {
			return err
		}
	}
	if cmds := s.opts.setCommands(); cmds != "" {
		if err := s.conn.SendGuarded(cmds, 0); err != nil {
			return err
		}
	}
	if extra, ok := s.opts[OptExtraCmd]; ok {
		// User-supplied commands go through the guard with no overrides.
		if err := s.conn.SendGuarded(extra, 0); err != nil {
			return err
		}
	}
	return nil
}

// Options returns the session-scoped options. The returned map must not be
// mutated during a draw.
func (s *Session) Options() PlotOptions { return s.opts }

// Stuck reports whether the session has entered the terminal stuck state.
func (s *Session) Stuck() bool { return s.conn.Stuck() }

// SendCommand sends arbitrary gnuplot commands through the guarded channel.
// Commands that could break the sync protocol are refused.
func (s *Session) SendCommand(cmds string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session is closed")
	}
	return s.conn.SendGuarded(cmds, 0)
}

// Draw validates the draw command against the child with a minimal dry-run
// probe, then streams the real payload. A rejected command fails only this
// draw; the session stays usable. A checkpoint timeout poisons the session
// permanently.
func (s *Session) Draw(chunks ...Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("session is closed")
	}
	if len(chunks) == 0 {
		return fmt.Errorf("nothing to draw")
	}
	for i := range chunks {
		if err := chunks[i].Validate(); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
	}

	d := buildDraw(chunks, s.binary, s.threeD)
	s.log.Debugw("drawing", "Command", d.real)

	if !s.proc.Dump() {
		if err := s.dryRun(&d); err != nil {
			return err
		}
	}

	if err := s.conn.Send(d.real); err != nil {
		return err
	}
	if err := d.writePayload(s.conn); err != nil {
		return err
	}
	if _, err := s.conn.Checkpoint(gnuplot.CheckpointOpts{ForwardWarnings: true}); err != nil {
		if cmdErr, ok := err.(*gnuplot.CommandError); ok {
			cmdErr.Line = d.real
		}
		return err
	}
	return nil
}

// dryRun submits the minimal probe variant against an inert terminal. The
// probe line carries a success marker after the draw command; gnuplot skips
// the rest of an input line when a command fails, so the marker's absence
// means the command itself was rejected.
func (s *Session) dryRun(d *drawCommand) error {
	if err := s.conn.SendGuarded("set terminal push\nset terminal dumb", gnuplot.AllowTerminal); err != nil {
		return err
	}

	okToken := "plotpipe-render-ok-" + uuid.NewString()
	if err := s.conn.Send(d.probe + `; print "` + okToken + `"`); err != nil {
		return err
	}
	if err := d.writePlaceholder(s.conn); err != nil {
		return err
	}

	res, err := s.conn.Checkpoint(gnuplot.CheckpointOpts{
		ForwardWarnings:  true,
		FilterProbeNoise: true,
		Expect:           okToken,
	})
	if s.conn.Stuck() {
		// No point restoring the terminal, nothing can reach the child.
		return err
	}

	if !res.Found || err != nil {
		restoreErr := s.conn.SendGuarded("set terminal pop", gnuplot.AllowTerminal)
		if restoreErr != nil {
			s.log.Debugf("error restoring terminal after rejected probe: %s", restoreErr)
		}
		text := res.Text
		if text == "" {
			text = "no diagnostics, success marker missing"
		}
		return &gnuplot.CommandError{Line: d.real, Diagnostics: text}
	}

	return s.conn.SendGuarded("set terminal pop", gnuplot.AllowTerminal)
}

// Close tears the session down. A stuck child cannot process an exit command,
// so it is killed; otherwise shutdown is graceful. The child is always
// reaped.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.log.Debugw("closing session", "Stuck", s.conn.Stuck(), "Uptime", time.Since(s.started))
	return s.proc.Terminate(s.conn.Stuck())
}

// MustDraw is Draw that panics on error.
func (s *Session) MustDraw(chunks ...Chunk) {
	Must(s.Draw(chunks...))
}

// MustClose is Close that panics on error.
func (s *Session) MustClose() {
	Must(s.Close())
}
