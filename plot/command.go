package plot

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/guseggert/plotpipe/gnuplot"
)

// drawCommand is a fully assembled draw operation: the real command, the
// minimal probe variant used for dry-run validation, and the synthetic
// placeholder payload matching the probe.
//
// In binary mode the record count appears in the command text, so the probe
// declares a single record per curve; in text mode the command is
// record-count-independent and the probe is identical to the real command.
type drawCommand struct {
	real  string
	probe string

	binary bool
	chunks []Chunk
}

// buildDraw assembles the draw command for chunks. Chunks must already be
// validated.
func buildDraw(chunks []Chunk, binary, threeD bool) drawCommand {
	verb := "plot"
	if threeD {
		verb = "splot"
	}

	clause := func(c *Chunk, curve Curve, points int) string {
		opts := curve.Options.applyBase(c.Base)
		parts := []string{"'-'"}
		if binary {
			parts = append(parts,
				fmt.Sprintf("binary record=%d", points),
				gnuplot.BinaryFormat(c.Width()))
		}
		parts = append(parts, gnuplot.UsingClause(c.Width()))
		if opts.Axes != "" {
			parts = append(parts, "axes "+opts.Axes)
		}
		if opts.With != "" {
			parts = append(parts, "with "+opts.With)
		}
		if opts.Legend != "" {
			parts = append(parts, "title "+quote(opts.Legend))
		} else {
			parts = append(parts, "notitle")
		}
		return strings.Join(parts, " ")
	}

	var realClauses, probeClauses []string
	for i := range chunks {
		c := &chunks[i]
		for _, curve := range c.Curves {
			realClauses = append(realClauses, clause(c, curve, c.Points()))
			probeClauses = append(probeClauses, clause(c, curve, 1))
		}
	}

	return drawCommand{
		real:   verb + " " + strings.Join(realClauses, ", "),
		probe:  verb + " " + strings.Join(probeClauses, ", "),
		binary: binary,
		chunks: chunks,
	}
}

// writePlaceholder writes the synthetic probe payload: exactly one data
// record per curve, sized so that a rejected probe command leaves only lines
// the child treats as no-ops rather than blocking on a partial read.
//
// The binary filler must parse both ways: an accepted probe reads it as the
// declared one-record payloads, while a rejected probe never enters binary
// read mode and the bytes land on the command stream instead. Printable
// spaces with a single terminating newline keep the records byte-aligned
// when accepted and form one discardable blank line when rejected; raw
// packed doubles would glue onto the next command line.
func (d *drawCommand) writePlaceholder(w io.Writer) error {
	if d.binary {
		n := 0
		for i := range d.chunks {
			n += 8 * d.chunks[i].Width() * len(d.chunks[i].Curves)
		}
		filler := bytes.Repeat([]byte{' '}, n+1)
		filler[n] = '\n'
		if _, err := w.Write(filler); err != nil {
			return fmt.Errorf("writing placeholder payload: %w", err)
		}
		return nil
	}
	for i := range d.chunks {
		c := &d.chunks[i]
		zeros := make([][]float64, c.Width())
		for j := range zeros {
			zeros[j] = []float64{0}
		}
		for range c.Curves {
			if err := gnuplot.WriteText(w, zeros); err != nil {
				return fmt.Errorf("writing placeholder payload: %w", err)
			}
		}
	}
	return nil
}

// writePayload streams the real data for every curve, in clause order.
func (d *drawCommand) writePayload(w io.Writer) error {
	for i := range d.chunks {
		c := &d.chunks[i]
		for j, curve := range c.Curves {
			var err error
			if d.binary {
				err = gnuplot.WriteBinary(w, curve.Cols)
			} else {
				err = gnuplot.WriteText(w, curve.Cols)
			}
			if err != nil {
				return fmt.Errorf("writing payload for chunk %d curve %d: %w", i, j, err)
			}
		}
	}
	return nil
}
