package gnuplot

import (
	"io"
	"sync"

	"go.uber.org/zap"
)

// tapSet allows dynamic addition and removal of mirror writers. Taps receive
// a best-effort copy of everything written to the child; they exist for
// verbose byte-level logging, so a failing tap must never fail the write that
// was being mirrored.
type tapSet struct {
	m    sync.Mutex
	taps []io.Writer
}

func (t *tapSet) Add(w io.Writer) {
	t.m.Lock()
	defer t.m.Unlock()
	t.taps = append(t.taps, w)
}

func (t *tapSet) Remove(w io.Writer) {
	t.m.Lock()
	defer t.m.Unlock()
	for i := 0; i < len(t.taps); i++ {
		if t.taps[i] == w {
			t.taps = append(t.taps[:i], t.taps[i+1:]...)
			i--
		}
	}
}

// Mirror copies b to every tap, logging and continuing on failure.
func (t *tapSet) Mirror(log *zap.SugaredLogger, b []byte) {
	t.m.Lock()
	defer t.m.Unlock()
	for _, w := range t.taps {
		if _, err := w.Write(b); err != nil {
			log.Debugf("tap write error: %s", err)
		}
	}
}
