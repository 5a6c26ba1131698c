package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/guseggert/plotpipe/agent"
	"github.com/guseggert/plotpipe/config"
	"github.com/guseggert/plotpipe/plot"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func main() {
	app := &cli.App{
		Name:  "plotpipe",
		Usage: "plot numeric data through a gnuplot subprocess",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to a plotpipe.toml config file. Discovered by walking up from the working dir if unset.",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "plot",
				Usage: "read whitespace-separated numeric columns and plot them",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Input data file. Reads stdin when \"-\".",
						Value:   "-",
					},
					&cli.StringFlag{
						Name:  "terminal",
						Usage: "gnuplot terminal, e.g. pngcairo or dumb.",
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "Output file for file-producing terminals.",
					},
					&cli.StringFlag{
						Name:  "title",
						Usage: "Plot title.",
					},
					&cli.StringFlag{
						Name:  "with",
						Usage: "Curve style clause.",
						Value: "lines",
					},
					&cli.StringFlag{
						Name:  "legend",
						Usage: "Curve legend.",
					},
					&cli.BoolFlag{
						Name:  "binary",
						Usage: "Transfer payload as packed doubles instead of text rows.",
					},
					&cli.BoolFlag{
						Name:  "3d",
						Usage: "Use splot instead of plot.",
					},
					&cli.BoolFlag{
						Name:  "dump",
						Usage: "Print the gnuplot command stream to stdout instead of running gnuplot.",
					},
					&cli.BoolFlag{
						Name:  "verbose",
						Usage: "Mirror every byte sent to gnuplot onto stderr.",
					},
				},
				Action: runPlot,
			},
			{
				Name:  "serve",
				Usage: "run the plot agent HTTP server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen-addr",
						Usage: "The address for the HTTP server to listen on.",
					},
					&cli.StringFlag{
						Name:  "gnuplot",
						Usage: "The gnuplot binary for server-side sessions.",
					},
					&cli.StringFlag{
						Name:  "session-timeout",
						Usage: "Per-checkpoint timeout for server-side sessions.",
						Value: "10s",
					},
				},
				Action: runServe,
			},
		},
	}
	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func runPlot(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return err
	}

	cols, err := readColumns(ctx.String("file"))
	if err != nil {
		return err
	}

	opts := cfg.PlotOptions()
	if v := ctx.String("terminal"); v != "" {
		opts[plot.OptTerminal] = v
	}
	if v := ctx.String("output"); v != "" {
		opts[plot.OptOutput] = v
	}
	if v := ctx.String("title"); v != "" {
		opts[plot.OptTitle] = v
	}
	if ctx.Bool("3d") {
		opts[plot.Opt3D] = "on"
	}

	sopts := cfg.SessionOptions()
	if ctx.Bool("binary") {
		sopts = append(sopts, plot.WithBinary())
	}
	if ctx.Bool("dump") {
		sopts = append(sopts, plot.WithDump(os.Stdout))
	}
	if ctx.Bool("verbose") {
		sopts = append(sopts, plot.WithVerboseTap(os.Stderr))
	}
	sopts = append(sopts, plot.WithWarningSink(func(w string) {
		fmt.Fprintf(os.Stderr, "gnuplot warning: %s\n", w)
	}))

	session, err := plot.NewSession(opts, sopts...)
	if err != nil {
		return err
	}
	defer session.Close()

	chunk := plot.Chunk{Curves: []plot.Curve{{
		Options: plot.CurveOptions{
			With:   ctx.String("with"),
			Legend: ctx.String("legend"),
		},
		Cols: cols,
	}}}
	return session.Draw(chunk)
}

func runServe(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return err
	}

	listenAddr := cfg.ListenAddr
	if v := ctx.String("listen-addr"); v != "" {
		listenAddr = v
	}
	gnuplotPath := cfg.GnuplotPath
	if v := ctx.String("gnuplot"); v != "" {
		gnuplotPath = v
	}
	sessionTimeout, err := time.ParseDuration(ctx.String("session-timeout"))
	if err != nil {
		return fmt.Errorf("parsing session-timeout: %w", err)
	}

	opts := []agent.Option{
		agent.WithListenAddr(listenAddr),
		agent.WithSessionTimeout(sessionTimeout),
	}
	if gnuplotPath != "" {
		opts = append(opts, agent.WithGnuplotPath(gnuplotPath))
	}
	a, err := agent.New(opts...)
	if err != nil {
		return err
	}

	group := errgroup.Group{}
	group.Go(a.Run)
	group.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		return a.Stop()
	})
	return group.Wait()
}

// readColumns parses whitespace-separated numeric rows into columns. Blank
// lines and lines starting with '#' are skipped. Every row must have the
// same number of fields as the first.
func readColumns(path string) ([][]float64, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var cols [][]float64
	lineNum := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if cols == nil {
			cols = make([][]float64, len(fields))
		}
		if len(fields) != len(cols) {
			return nil, fmt.Errorf("line %d has %d fields, expected %d", lineNum, len(fields), len(cols))
		}
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d field %d: %w", lineNum, i+1, err)
			}
			cols[i] = append(cols[i], v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if cols == nil {
		return nil, fmt.Errorf("no data rows in input")
	}
	return cols, nil
}
