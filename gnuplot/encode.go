package gnuplot

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
)

// TextEndMarker terminates an inline text payload. Binary payloads have no
// marker; the draw command declares the exact record count instead.
const TextEndMarker = "e"

// WriteText writes cols as whitespace-separated rows, one row per point,
// followed by the end-of-data marker line. cols holds one equal-length slice
// per tuple element.
func WriteText(w io.Writer, cols [][]float64) error {
	bw := bufio.NewWriter(w)
	points := 0
	if len(cols) > 0 {
		points = len(cols[0])
	}
	for i := 0; i < points; i++ {
		for j, col := range cols {
			if j > 0 {
				if err := bw.WriteByte(' '); err != nil {
					return err
				}
			}
			if _, err := bw.WriteString(strconv.FormatFloat(col[i], 'g', -1, 64)); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	if _, err := bw.WriteString(TextEndMarker + "\n"); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteBinary writes cols as packed little-endian float64 records in
// point-major order: all tuple elements of point 0, then point 1, and so on.
// The byte count is exactly 8 * len(cols) * points; the reader is told the
// record count up front, so no end marker is written.
func WriteBinary(w io.Writer, cols [][]float64) error {
	points := 0
	if len(cols) > 0 {
		points = len(cols[0])
	}
	buf := make([]byte, 8*len(cols))
	for i := 0; i < points; i++ {
		for j, col := range cols {
			binary.LittleEndian.PutUint64(buf[8*j:], math.Float64bits(col[i]))
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("writing binary record %d: %w", i, err)
		}
	}
	return nil
}

// BinaryFormat returns the format clause declaring width little-endian
// doubles per record, e.g. `format="%double%double"` for width 2.
func BinaryFormat(width int) string {
	s := `format="`
	for i := 0; i < width; i++ {
		s += "%double"
	}
	return s + `"`
}

// UsingClause returns the 1-based column mapping `using 1:2:...:width`.
func UsingClause(width int) string {
	s := "using "
	for i := 1; i <= width; i++ {
		if i > 1 {
			s += ":"
		}
		s += strconv.Itoa(i)
	}
	return s
}
