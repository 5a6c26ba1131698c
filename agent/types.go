package agent

import (
	"fmt"

	"github.com/guseggert/plotpipe/plot"
)

// CurveSpec is the wire form of one curve: its options plus its columns.
// In a chunk's Base position only the options are meaningful.
type CurveSpec struct {
	Legend string      `json:"legend,omitempty"`
	With   string      `json:"with,omitempty"`
	Axes   string      `json:"axes,omitempty"`
	Cols   [][]float64 `json:"cols,omitempty"`
}

// ChunkSpec is the wire form of a chunk.
type ChunkSpec struct {
	Base   CurveSpec   `json:"base,omitempty"`
	Curves []CurveSpec `json:"curves"`
}

// DrawRequest is a complete remote draw: session-scoped options plus the
// chunk data. Options are validated against the closed plot-option set
// before any session is created.
type DrawRequest struct {
	Options map[string]string `json:"options,omitempty"`
	Binary  bool              `json:"binary,omitempty"`
	Chunks  []ChunkSpec       `json:"chunks"`
}

// DrawResponse reports the outcome of a remote draw. Rejected draws are not
// transport errors: the command was delivered and gnuplot itself refused it,
// with its diagnostics passed through verbatim.
type DrawResponse struct {
	Warnings    []string `json:"warnings,omitempty"`
	Rejected    bool     `json:"rejected,omitempty"`
	Diagnostics string   `json:"diagnostics,omitempty"`

	// Output holds the rendered bytes when the server chose the output
	// file. Empty when the request named its own output.
	Output []byte `json:"output,omitempty"`
}

// drawStreamMessage is one server->client message on the streaming draw
// endpoint. Warning messages arrive while the draw runs; the final message
// has Done set and carries the DrawResponse fields.
type drawStreamMessage struct {
	Warning string `json:"warning,omitempty"`

	Done        bool   `json:"done,omitempty"`
	Rejected    bool   `json:"rejected,omitempty"`
	Diagnostics string `json:"diagnostics,omitempty"`
	Output      []byte `json:"output,omitempty"`
}

func (r *DrawRequest) plotOptions() (plot.PlotOptions, error) {
	opts := plot.PlotOptions{}
	for k, v := range r.Options {
		opts[plot.PlotOption(k)] = v
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func (r *DrawRequest) chunks() ([]plot.Chunk, error) {
	if len(r.Chunks) == 0 {
		return nil, fmt.Errorf("request contained no chunks")
	}
	chunks := make([]plot.Chunk, 0, len(r.Chunks))
	for _, cs := range r.Chunks {
		c := plot.Chunk{
			Base: plot.CurveOptions{
				Legend: cs.Base.Legend,
				With:   cs.Base.With,
				Axes:   cs.Base.Axes,
			},
		}
		for _, curve := range cs.Curves {
			c.Curves = append(c.Curves, plot.Curve{
				Options: plot.CurveOptions{
					Legend: curve.Legend,
					With:   curve.With,
					Axes:   curve.Axes,
				},
				Cols: curve.Cols,
			})
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}
