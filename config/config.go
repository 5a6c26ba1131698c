// Package config loads plotpipe settings for the CLI and the agent from a
// plotpipe.toml file, discovered by walking up from the working directory.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/guseggert/plotpipe/internal/files"
	"github.com/guseggert/plotpipe/plot"
)

// FileName is the config file searched for when no explicit path is given.
const FileName = "plotpipe.toml"

// Duration wraps time.Duration so TOML values can be written as strings like
// "5s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

type Config struct {
	// GnuplotPath is the gnuplot binary to run. Empty means whatever is
	// on the PATH.
	GnuplotPath string `toml:"gnuplot_path"`

	// CheckpointTimeout bounds each wait for child diagnostics.
	CheckpointTimeout Duration `toml:"checkpoint_timeout"`

	Terminal string `toml:"terminal"`
	Output   string `toml:"output"`
	Persist  bool   `toml:"persist"`
	Binary   bool   `toml:"binary"`

	// ListenAddr is the agent's listen address.
	ListenAddr string `toml:"listen_addr"`
}

func Default() Config {
	return Config{
		ListenAddr: "127.0.0.1:8080",
	}
}

// Load reads the config at path, or discovers one by walking up from the
// working directory if path is empty. A missing config is not an error; the
// defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return cfg, fmt.Errorf("getting working dir: %w", err)
		}
		path = files.FindUp(FileName, wd)
		if path == "" {
			return cfg, nil
		}
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("decoding config %q: %w", path, err)
	}
	return cfg, nil
}

// PlotOptions returns the session-scoped plot options the config implies.
func (c Config) PlotOptions() plot.PlotOptions {
	opts := plot.PlotOptions{}
	if c.Terminal != "" {
		opts[plot.OptTerminal] = c.Terminal
	}
	if c.Output != "" {
		opts[plot.OptOutput] = c.Output
	}
	return opts
}

// SessionOptions returns the session construction options the config
// implies.
func (c Config) SessionOptions() []plot.SessionOption {
	var opts []plot.SessionOption
	if c.GnuplotPath != "" {
		opts = append(opts, plot.WithGnuplotPath(c.GnuplotPath))
	}
	if c.CheckpointTimeout.Duration != 0 {
		opts = append(opts, plot.WithTimeout(c.CheckpointTimeout.Duration))
	}
	if c.Persist {
		opts = append(opts, plot.WithPersist())
	}
	if c.Binary {
		opts = append(opts, plot.WithBinary())
	}
	return opts
}
