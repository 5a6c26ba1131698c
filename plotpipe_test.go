package plotpipe

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/guseggert/plotpipe/plot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeChildScript = `#!/bin/sh
while IFS= read -r line; do
  case "$line" in
    'print "'*)
      s=${line#*\"}
      printf '%s\n' "${s%%\"*}" >&2
      ;;
    plot*'; print "'*)
      t=${line%\"}
      printf '%s\n' "${t##*\"}" >&2
      ;;
    exit)
      exit 0
      ;;
  esac
done
`

func TestDefaultSessionLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake-gnuplot")
	require.NoError(t, os.WriteFile(path, []byte(fakeChildScript), 0o755))

	SetDefaults(plot.PlotOptions{}, plot.WithGnuplotPath(path))
	t.Cleanup(func() { Close() })

	require.NoError(t, Plot(plot.XY([]float64{1, 2}, []float64{3, 4})))

	s1, err := Default()
	require.NoError(t, err)

	// The default session is reused across calls...
	s2, err := Default()
	require.NoError(t, err)
	assert.Same(t, s1, s2)

	// ...and recreated after Close.
	require.NoError(t, Close())
	s3, err := Default()
	require.NoError(t, err)
	assert.NotSame(t, s1, s3)
}

func TestDefaultSessionDumpMode(t *testing.T) {
	out := &bytes.Buffer{}
	SetDefaults(plot.PlotOptions{}, plot.WithDump(out))
	t.Cleanup(func() { Close() })

	require.NoError(t, Plot(plot.XYWith([]float64{1}, []float64{2}, "lines", "x")))
	assert.Contains(t, out.String(), "plot '-' using 1:2 with lines title \"x\"\n")
	assert.Contains(t, out.String(), "1 2\ne\n")
}
