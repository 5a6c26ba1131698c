package plot

import (
	"fmt"
	"sort"
	"strings"
)

// PlotOption is a session-scoped option key. The set is closed: keys are
// validated at the boundary so the protocol engine never sees an
// unrecognized key.
type PlotOption string

const (
	OptTitle    PlotOption = "title"
	OptXLabel   PlotOption = "xlabel"
	OptYLabel   PlotOption = "ylabel"
	OptZLabel   PlotOption = "zlabel"
	OptXRange   PlotOption = "xrange"
	OptYRange   PlotOption = "yrange"
	OptZRange   PlotOption = "zrange"
	OptGrid     PlotOption = "grid"
	OptKey      PlotOption = "key"
	OptSquare   PlotOption = "square"
	OptTerminal PlotOption = "terminal"
	OptOutput   PlotOption = "output"
	Opt3D       PlotOption = "3d"
	OptExtraCmd PlotOption = "cmds"
)

var plotOptionKeys = map[PlotOption]bool{
	OptTitle:    true,
	OptXLabel:   true,
	OptYLabel:   true,
	OptZLabel:   true,
	OptXRange:   true,
	OptYRange:   true,
	OptZRange:   true,
	OptGrid:     true,
	OptKey:      true,
	OptSquare:   true,
	OptTerminal: true,
	OptOutput:   true,
	Opt3D:       true,
	OptExtraCmd: true,
}

// PlotOptions are the session-scoped options, fixed at session construction
// and applied before the first draw.
type PlotOptions map[PlotOption]string

func (o PlotOptions) Validate() error {
	for k := range o {
		if !plotOptionKeys[k] {
			return fmt.Errorf("unknown plot option %q", k)
		}
	}
	return nil
}

// quote returns s as a gnuplot double-quoted string.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// setCommands renders the non-protocol options as a newline-separated block
// of set commands, in stable key order. Terminal, output, 3d, and extra
// commands are handled by the session itself, not here.
func (o PlotOptions) setCommands() string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	var cmds []string
	for _, k := range keys {
		v := o[PlotOption(k)]
		switch PlotOption(k) {
		case OptTitle:
			cmds = append(cmds, "set title "+quote(v))
		case OptXLabel:
			cmds = append(cmds, "set xlabel "+quote(v))
		case OptYLabel:
			cmds = append(cmds, "set ylabel "+quote(v))
		case OptZLabel:
			cmds = append(cmds, "set zlabel "+quote(v))
		case OptXRange:
			cmds = append(cmds, "set xrange ["+v+"]")
		case OptYRange:
			cmds = append(cmds, "set yrange ["+v+"]")
		case OptZRange:
			cmds = append(cmds, "set zrange ["+v+"]")
		case OptGrid:
			if v != "off" {
				cmds = append(cmds, "set grid")
			}
		case OptKey:
			cmds = append(cmds, "set key "+v)
		case OptSquare:
			if v != "off" {
				cmds = append(cmds, "set size ratio -1")
			}
		}
	}
	return strings.Join(cmds, "\n")
}

// CurveOptions are per-curve options. Within a chunk they are cumulative: a
// curve inherits the chunk's base options, except Legend, which never
// carries over from the base.
type CurveOptions struct {
	// Legend is the curve's key entry. Non-cumulative: an empty legend
	// renders as notitle rather than inheriting the base legend.
	Legend string

	// With is the style clause, e.g. "lines" or "points pt 7".
	With string

	// Axes selects the axes pair, e.g. "x1y2".
	Axes string
}

// applyBase returns o with unset cumulative fields filled in from base.
// Legend is deliberately not inherited.
func (o CurveOptions) applyBase(base CurveOptions) CurveOptions {
	if o.With == "" {
		o.With = base.With
	}
	if o.Axes == "" {
		o.Axes = base.Axes
	}
	return o
}
