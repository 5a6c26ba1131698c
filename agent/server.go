// Package agent provides an HTTP agent that renders draw requests through a
// server-side gnuplot session, plus a client for it. The plain POST endpoint
// returns everything in one response; the WebSocket endpoint streams gnuplot
// warnings back while the draw runs.
package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/guseggert/plotpipe/gnuplot"
	"github.com/guseggert/plotpipe/plot"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Agent serves draw requests over HTTP. Each request gets its own one-shot
// gnuplot session, so requests are independent and a poisoned session never
// outlives its request.
type Agent struct {
	logger *zap.SugaredLogger

	listenAddr     string
	gnuplotPath    string
	sessionTimeout time.Duration

	httpServer *http.Server

	startedMut sync.Mutex
	started    time.Time
}

// badRequestError marks failures caused by the request itself rather than
// the agent, so the HTTP layer can answer 400 instead of 500.
type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

type Option func(a *Agent)

func WithListenAddr(s string) Option {
	return func(a *Agent) {
		a.listenAddr = s
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(a *Agent) {
		a.logger = l.Sugar().Named("plotagent")
	}
}

func WithLogLevel(l zapcore.Level) Option {
	return func(a *Agent) {
		a.logger = a.logger.WithOptions(zap.IncreaseLevel(l))
	}
}

// WithGnuplotPath sets the gnuplot binary used for server-side sessions.
func WithGnuplotPath(path string) Option {
	return func(a *Agent) {
		a.gnuplotPath = path
	}
}

// WithSessionTimeout bounds each checkpoint wait in server-side sessions.
func WithSessionTimeout(d time.Duration) Option {
	return func(a *Agent) {
		a.sessionTimeout = d
	}
}

// New constructs a plot agent.
func New(opts ...Option) (*Agent, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	a := &Agent{
		logger:     logger.Named("plotagent").Sugar(),
		listenAddr: "127.0.0.1:8080",
	}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

// Run runs the agent and returns once it has stopped.
func (a *Agent) Run() error {
	a.startedMut.Lock()
	a.started = time.Now()
	a.startedMut.Unlock()

	tcpListener, err := net.Listen("tcp", a.listenAddr)
	if err != nil {
		return fmt.Errorf("listening TCP: %w", err)
	}

	router := httprouter.New()
	router.GET("/healthcheck", a.healthcheck)
	router.POST("/plot", a.plotHandler)
	router.GET("/plot/ws", a.plotWS)

	server := http.Server{Handler: router}
	a.httpServer = &server

	err = server.Serve(tcpListener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *Agent) Stop() error {
	return a.httpServer.Close()
}

func (a *Agent) healthcheck(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	a.startedMut.Lock()
	started := a.started
	a.startedMut.Unlock()
	response := struct {
		Uptime string
	}{
		Uptime: time.Since(started).String(),
	}
	b, err := json.Marshal(response)
	if err != nil {
		a.logger.Debugf("error marshaling healthcheck response: %s", err)
	}
	w.Header().Add("Content-Type", "application/json")
	w.Write(b)
}

// plotHandler renders one draw request through a fresh session and returns
// the outcome in a single JSON response.
func (a *Agent) plotHandler(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	var req DrawRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := a.draw(&req, nil)
	if err != nil {
		var badReq *badRequestError
		if errors.As(err, &badReq) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	b, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Add("Content-Type", "application/json")
	w.Write(b)
}

// draw runs req through a one-shot session. Draw rejections are reported in
// the response, not as errors; errors are reserved for bad requests and
// infrastructure failures. onWarning, if non-nil, observes warnings as they
// arrive in addition to the response's Warnings list.
func (a *Agent) draw(req *DrawRequest, onWarning func(string)) (*DrawResponse, error) {
	plotOpts, err := req.plotOptions()
	if err != nil {
		return nil, &badRequestError{err: err}
	}
	chunks, err := req.chunks()
	if err != nil {
		return nil, &badRequestError{err: err}
	}

	// If the caller did not pick an output, render into a temp file and
	// return the bytes.
	var outPath string
	if _, ok := plotOpts[plot.OptOutput]; !ok {
		dir, err := os.MkdirTemp("", "plotpipe-agent")
		if err != nil {
			return nil, fmt.Errorf("creating temp render dir: %w", err)
		}
		defer os.RemoveAll(dir)
		outPath = filepath.Join(dir, "render.out")
		plotOpts[plot.OptOutput] = outPath
		if _, ok := plotOpts[plot.OptTerminal]; !ok {
			plotOpts[plot.OptTerminal] = "dumb"
		}
	}

	resp := &DrawResponse{}
	warnSink := func(warning string) {
		resp.Warnings = append(resp.Warnings, warning)
		if onWarning != nil {
			onWarning(warning)
		}
	}

	sopts := []plot.SessionOption{
		plot.WithWarningSink(warnSink),
	}
	if a.gnuplotPath != "" {
		sopts = append(sopts, plot.WithGnuplotPath(a.gnuplotPath))
	}
	if a.sessionTimeout != 0 {
		sopts = append(sopts, plot.WithTimeout(a.sessionTimeout))
	}
	if req.Binary {
		sopts = append(sopts, plot.WithBinary())
	}

	session, err := plot.NewSession(plotOpts, sopts...)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			a.logger.Debugf("error closing session: %s", err)
		}
	}()

	if err := session.Draw(chunks...); err != nil {
		var cmdErr *gnuplot.CommandError
		if errors.As(err, &cmdErr) {
			resp.Rejected = true
			resp.Diagnostics = cmdErr.Diagnostics
			return resp, nil
		}
		return nil, err
	}

	if outPath != "" {
		// Closing flushes gnuplot's output file; the session is
		// one-shot, so closing it early is safe.
		if err := session.Close(); err != nil {
			a.logger.Debugf("error closing session before output read: %s", err)
		}
		b, err := os.ReadFile(outPath)
		if err != nil {
			a.logger.Debugf("no render output produced: %s", err)
		} else {
			resp.Output = b
		}
	}
	return resp, nil
}
