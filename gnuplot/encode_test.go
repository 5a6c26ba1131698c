package gnuplot

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteBinaryByteExact(t *testing.T) {
	// Two points, tuple width 2: records are point-major, so the value
	// order is p0c0, p0c1, p1c0, p1c1.
	cols := [][]float64{{1.0, 2.0}, {3.0, 4.0}}

	buf := &bytes.Buffer{}
	require.NoError(t, WriteBinary(buf, cols))

	want := &bytes.Buffer{}
	for _, v := range []float64{1.0, 3.0, 2.0, 4.0} {
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
		want.Write(b)
	}
	assert.Equal(t, want.Bytes(), buf.Bytes())
	assert.Len(t, buf.Bytes(), 8*2*2)
}

func TestWriteBinaryEmpty(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteBinary(buf, nil))
	assert.Empty(t, buf.Bytes())
}

func TestWriteTextRowsAndEndMarker(t *testing.T) {
	cols := [][]float64{{1.0, 2.0}, {3.0, 4.0}}

	buf := &bytes.Buffer{}
	require.NoError(t, WriteText(buf, cols))
	assert.Equal(t, "1 3\n2 4\ne\n", buf.String())
}

func TestWriteTextEmptyStillTerminates(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteText(buf, nil))
	assert.Equal(t, "e\n", buf.String())
}

func TestWriteTextPreservesPrecision(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteText(buf, [][]float64{{0.1, 1e-20, 12345678.9}}))
	assert.Equal(t, "0.1\n1e-20\n1.23456789e+07\ne\n", buf.String())
}

func TestBinaryFormat(t *testing.T) {
	assert.Equal(t, `format="%double"`, BinaryFormat(1))
	assert.Equal(t, `format="%double%double%double"`, BinaryFormat(3))
}

func TestUsingClause(t *testing.T) {
	assert.Equal(t, "using 1", UsingClause(1))
	assert.Equal(t, "using 1:2:3:4", UsingClause(4))
}
