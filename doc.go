/*
Package plotpipe plots numeric data by driving a gnuplot subprocess.

The package root offers a one-shot API over an ambient default session:

	err := plotpipe.Plot(plot.XYWith(x, y, "lines", "measurements"))

For explicit lifecycle control, create sessions directly with the plot
package; the gnuplot package underneath implements the subprocess wire
protocol, and the agent package serves draws over HTTP for remote callers.
*/
package plotpipe
