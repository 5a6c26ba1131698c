package plotpipe

import (
	"sync"

	"github.com/guseggert/plotpipe/plot"
)

// The default session gives one-shot callers an ambient session without
// explicit lifecycle management. It is created lazily on first use and
// recreated on first use after Close. It is only ever exposed through the
// same Session API explicit sessions use.
var (
	defaultMu          sync.Mutex
	defaultSession     *plot.Session
	defaultPlotOpts    plot.PlotOptions
	defaultSessionOpts []plot.SessionOption
)

// SetDefaults configures the options used when the default session is next
// created. It does not affect an already-running default session; call Close
// first to apply new defaults.
func SetDefaults(opts plot.PlotOptions, sopts ...plot.SessionOption) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultPlotOpts = opts
	defaultSessionOpts = sopts
}

// Default returns the ambient default session, creating it if needed.
func Default() (*plot.Session, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultLocked()
}

func defaultLocked() (*plot.Session, error) {
	if defaultSession != nil {
		return defaultSession, nil
	}
	s, err := plot.NewSession(defaultPlotOpts, defaultSessionOpts...)
	if err != nil {
		return nil, err
	}
	defaultSession = s
	return s, nil
}

// Plot draws chunks on the default session.
func Plot(chunks ...plot.Chunk) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	s, err := defaultLocked()
	if err != nil {
		return err
	}
	return s.Draw(chunks...)
}

// Close tears down the default session. The next Plot or Default call
// creates a fresh one.
func Close() error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultSession == nil {
		return nil
	}
	err := defaultSession.Close()
	defaultSession = nil
	return err
}
