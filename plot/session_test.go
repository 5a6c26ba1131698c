package plot

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/guseggert/plotpipe/gnuplot"
	"github.com/guseggert/plotpipe/internal/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGnuplot is a stand-in child that speaks just enough of the protocol
// for session tests: it echoes `print "..."` tokens back on stderr (both
// standalone and suffixed to a draw command), rejects draw commands
// mentioning "badstyle" by reporting an error and skipping the suffixed
// print, and ignores payload lines.
const fakeGnuplotScript = `#!/bin/sh
while IFS= read -r line; do
  case "$line" in
    'print "'*)
      s=${line#*\"}
      printf '%s\n' "${s%%\"*}" >&2
      ;;
    *badstyle*)
      printf 'line 0: unrecognized plot type\n' >&2
      ;;
    plot*'; print "'*|splot*'; print "'*)
      t=${line%\"}
      printf 'Warning: fake renderer\n%s\n' "${t##*\"}" >&2
      ;;
    exit)
      exit 0
      ;;
  esac
done
`

// binaryFakeGnuplotScript additionally consumes the raw payload of an
// accepted binary draw: the real command in these tests declares one record
// of two doubles, so it reads exactly 16 bytes before returning to the line
// loop. Rejected probes never enter binary read mode, so their placeholder
// must arrive as a plain discardable line.
const binaryFakeGnuplotScript = `#!/bin/sh
while IFS= read -r line; do
  case "$line" in
    'print "'*)
      s=${line#*\"}
      printf '%s\n' "${s%%\"*}" >&2
      ;;
    *badstyle*)
      printf 'line 0: unrecognized plot type\n' >&2
      ;;
    plot*'; print "'*)
      t=${line%\"}
      printf 'Warning: fake renderer\n%s\n' "${t##*\"}" >&2
      ;;
    plot*binary*)
      dd bs=1 count=16 2>/dev/null >/dev/null
      ;;
    exit)
      exit 0
      ;;
  esac
done
`

// hangGnuplotScript stalls on any draw command, simulating a wedged child.
const hangGnuplotScript = `#!/bin/sh
while IFS= read -r line; do
  case "$line" in
    'print "'*)
      s=${line#*\"}
      printf '%s\n' "${s%%\"*}" >&2
      ;;
    plot*|splot*)
      sleep 60
      ;;
    exit)
      exit 0
      ;;
  esac
done
`

func writeFake(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-gnuplot")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func newFakeSession(t *testing.T, opts PlotOptions, sopts ...SessionOption) *Session {
	t.Helper()
	sopts = append([]SessionOption{WithGnuplotPath(writeFake(t, fakeGnuplotScript))}, sopts...)
	s, err := NewSession(opts, sopts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDrawAgainstFakeChild(t *testing.T) {
	var warnings []string
	s := newFakeSession(t, PlotOptions{OptTitle: "test plot", OptGrid: "on"},
		WithWarningSink(func(w string) { warnings = append(warnings, w) }))

	require.NoError(t, s.Draw(XYWith([]float64{1, 2, 3}, []float64{4, 5, 6}, "lines", "data")))
	// The fake emits a warning with every accepted probe; it must arrive
	// at the sink, never as an error.
	assert.Contains(t, warnings, "fake renderer")
}

func TestDrawRejectedCommandSessionStaysUsable(t *testing.T) {
	s := newFakeSession(t, PlotOptions{})

	err := s.Draw(XYWith([]float64{1}, []float64{2}, "badstyle", ""))
	var cmdErr *gnuplot.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Contains(t, cmdErr.Diagnostics, "unrecognized plot type")
	assert.False(t, s.Stuck())

	// The rejection was scoped to that draw; a valid one still works.
	require.NoError(t, s.Draw(XYWith([]float64{1}, []float64{2}, "lines", "")))
}

func TestDrawRejectedCommandBinaryModeSessionStaysUsable(t *testing.T) {
	s, err := NewSession(PlotOptions{},
		WithGnuplotPath(writeFake(t, binaryFakeGnuplotScript)),
		WithBinary(),
		WithTimeout(2*time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	// The rejected probe leaves its placeholder on the command stream; it
	// must land as a discardable line, not glue onto the next sync token
	// and wedge the checkpoint.
	err = s.Draw(XYWith([]float64{1}, []float64{2}, "badstyle", ""))
	var cmdErr *gnuplot.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Contains(t, cmdErr.Diagnostics, "unrecognized plot type")
	assert.False(t, s.Stuck())

	require.NoError(t, s.Draw(XYWith([]float64{1}, []float64{2}, "lines", "")))
}

func TestDrawHangPoisonsSession(t *testing.T) {
	s, err := NewSession(PlotOptions{},
		WithGnuplotPath(writeFake(t, hangGnuplotScript)),
		WithTimeout(150*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	start := time.Now()
	err = s.Draw(XY([]float64{1}, []float64{2}))
	var hangErr *gnuplot.HangTimeoutError
	require.ErrorAs(t, err, &hangErr)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, s.Stuck())

	// The stuck state is terminal: later draws fail without I/O.
	err = s.Draw(XY([]float64{1}, []float64{2}))
	require.ErrorAs(t, err, &hangErr)

	// Teardown of a stuck session must still reap the child.
	require.NoError(t, s.Close())
}

func TestSessionRejectsUnknownOption(t *testing.T) {
	_, err := NewSession(PlotOptions{"nope": "x"})
	assert.ErrorContains(t, err, "unknown plot option")
}

func TestSessionSpawnFailure(t *testing.T) {
	_, err := NewSession(PlotOptions{}, WithGnuplotPath("/nonexistent/gnuplot"))
	var spawnErr *gnuplot.SpawnError
	require.ErrorAs(t, err, &spawnErr)
}

func TestSendCommandGuarded(t *testing.T) {
	s := newFakeSession(t, PlotOptions{})

	require.NoError(t, s.SendCommand("set style data lines"))

	var guardErr *gnuplot.GuardError
	require.ErrorAs(t, s.SendCommand(`set print "/tmp/x"`), &guardErr)
}

func TestDumpModeWritesFullTranscript(t *testing.T) {
	out := &bytes.Buffer{}
	s, err := NewSession(PlotOptions{OptTitle: "dump"}, WithDump(out))
	require.NoError(t, err)

	require.NoError(t, s.Draw(XYWith([]float64{1, 2}, []float64{3, 4}, "lines", "d")))
	require.NoError(t, s.Close())

	transcript := out.String()
	assert.Contains(t, transcript, "set title \"dump\"\n")
	assert.Contains(t, transcript, "plot '-' using 1:2 with lines title \"d\"\n")
	assert.Contains(t, transcript, "1 3\n2 4\ne\n")
	// No child, no dry-run probe in the transcript.
	assert.NotContains(t, transcript, "set terminal dumb")
}

func TestDrawValidatesChunks(t *testing.T) {
	s := newFakeSession(t, PlotOptions{})
	assert.ErrorContains(t, s.Draw(), "nothing to draw")
	assert.ErrorContains(t, s.Draw(Chunk{}), "no curves")
}

func TestClosedSessionRefusesDraws(t *testing.T) {
	s := newFakeSession(t, PlotOptions{})
	require.NoError(t, s.Close())
	assert.ErrorContains(t, s.Draw(XY([]float64{1}, []float64{2})), "closed")
	// Close is idempotent.
	require.NoError(t, s.Close())
}

func TestVerboseTapSeesDrawBytes(t *testing.T) {
	tap := &bytes.Buffer{}
	s := newFakeSession(t, PlotOptions{}, WithVerboseTap(tap))
	require.NoError(t, s.Draw(XY([]float64{1}, []float64{2})))
	assert.Contains(t, tap.String(), "plot '-' using 1:2 notitle\n")
	assert.Contains(t, tap.String(), "1 2\ne\n")
}

// TestRealGnuplot drives an actual gnuplot binary end to end.
func TestRealGnuplot(t *testing.T) {
	test.RequireGnuplot(t)

	var warnings []string
	s, err := NewSession(
		PlotOptions{OptTerminal: "dumb", OptTitle: "integration"},
		WithWarningSink(func(w string) { warnings = append(warnings, w) }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Draw(XYWith(
		[]float64{0, 1, 2, 3},
		[]float64{0, 1, 4, 9},
		"lines", "squares",
	)))

	// An invalid style must be rejected by gnuplot itself, and the
	// session must survive it.
	err = s.Draw(XYWith([]float64{0, 1}, []float64{1, 0}, "notarealstyle", ""))
	var cmdErr *gnuplot.CommandError
	require.ErrorAs(t, err, &cmdErr)

	require.NoError(t, s.Draw(XY([]float64{0, 1}, []float64{1, 0})))
}

func TestRealGnuplotBinaryTransfer(t *testing.T) {
	test.RequireGnuplot(t)

	s, err := NewSession(PlotOptions{OptTerminal: "dumb"}, WithBinary())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	x := make([]float64, 100)
	y := make([]float64, 100)
	for i := range x {
		x[i] = float64(i)
		y[i] = float64(i * i)
	}
	require.NoError(t, s.Draw(XYWith(x, y, "lines", "binary data")))
}

func TestRealGnuplotOutputFile(t *testing.T) {
	test.RequireGnuplot(t)

	outPath := filepath.Join(t.TempDir(), "out.txt")
	s, err := NewSession(PlotOptions{
		OptTerminal: "dumb",
		OptOutput:   outPath,
	})
	require.NoError(t, err)

	require.NoError(t, s.Draw(XY([]float64{0, 1, 2}, []float64{2, 1, 0})))
	require.NoError(t, s.Close())

	b, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(string(b)))
}
