package plot

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoCurveChunks() []Chunk {
	return []Chunk{
		{
			Base: CurveOptions{With: "lines"},
			Curves: []Curve{
				{Options: CurveOptions{Legend: "first"}, Cols: [][]float64{{1, 2}, {3, 4}}},
				{Options: CurveOptions{With: "points"}, Cols: [][]float64{{5, 6}, {7, 8}}},
			},
		},
	}
}

func TestBuildDrawTextProbeIdentical(t *testing.T) {
	d := buildDraw(twoCurveChunks(), false, false)
	// Text-mode commands carry no record count, so the probe is the real
	// command.
	assert.Equal(t, d.real, d.probe)
	assert.Equal(t, "plot '-' using 1:2 with lines title \"first\", '-' using 1:2 with points notitle", d.real)
}

func TestBuildDrawBinaryProbeDiffersOnlyInRecordCount(t *testing.T) {
	d := buildDraw(twoCurveChunks(), true, false)
	assert.Contains(t, d.real, `binary record=2 format="%double%double" using 1:2`)
	assert.Contains(t, d.probe, "binary record=1 ")
	assert.Equal(t, strings.ReplaceAll(d.real, "record=2", "record=1"), d.probe)
}

func TestBuildDrawSplotVerb(t *testing.T) {
	d := buildDraw(twoCurveChunks(), false, true)
	assert.True(t, strings.HasPrefix(d.real, "splot "))
	assert.True(t, strings.HasPrefix(d.probe, "splot "))
}

func TestBuildDrawBaseOptionsCumulativeExceptLegend(t *testing.T) {
	chunks := []Chunk{
		{
			Base: CurveOptions{With: "lines", Legend: "base legend", Axes: "x1y2"},
			Curves: []Curve{
				{Cols: [][]float64{{1}, {2}}},
			},
		},
	}
	d := buildDraw(chunks, false, false)
	// With and Axes inherit; Legend does not.
	assert.Contains(t, d.real, "axes x1y2 with lines notitle")
	assert.NotContains(t, d.real, "base legend")
}

func TestBuildDrawEscapesLegend(t *testing.T) {
	chunks := []Chunk{XYWith([]float64{1}, []float64{2}, "lines", `say "hi"`)}
	d := buildDraw(chunks, false, false)
	assert.Contains(t, d.real, `title "say \"hi\""`)
}

func TestPlaceholderBinaryIsNewlineSafe(t *testing.T) {
	d := buildDraw(twoCurveChunks(), true, false)
	buf := &bytes.Buffer{}
	require.NoError(t, d.writePlaceholder(buf))
	// One record per curve, width 2, 8 bytes per double: 32 filler bytes.
	// The filler must be printable and newline-terminated so that a
	// rejected probe sees a single discardable line instead of raw bytes
	// gluing onto the next command.
	assert.Equal(t, strings.Repeat(" ", 32)+"\n", buf.String())
	assert.NotContains(t, buf.String(), "\x00")
}

func TestPlaceholderTextMode(t *testing.T) {
	d := buildDraw(twoCurveChunks(), false, false)
	buf := &bytes.Buffer{}
	require.NoError(t, d.writePlaceholder(buf))
	assert.Equal(t, "0 0\ne\n0 0\ne\n", buf.String())
}

func TestWritePayloadClauseOrder(t *testing.T) {
	d := buildDraw(twoCurveChunks(), false, false)
	buf := &bytes.Buffer{}
	require.NoError(t, d.writePayload(buf))
	assert.Equal(t, "1 3\n2 4\ne\n5 7\n6 8\ne\n", buf.String())
}
