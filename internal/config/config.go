// Package config reads converter settings from a TOML file.
package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"

	"github.com/idia-astro/hdf5convert/converter"
	"github.com/idia-astro/hdf5convert/internal/cube"
	"github.com/idia-astro/hdf5convert/internal/logging"
	"github.com/idia-astro/hdf5convert/internal/swizzle"
)

// Strategy names.
const (
	Full    = "full"
	Bounded = "bounded"
)

// Config is the parsed configuration file.
type Config struct {
	Convert ConvertConfig
	Logging LoggingConfig

	budget uint64
}

// ConvertConfig is the [convert] table.
type ConvertConfig struct {
	Strategy string
	// MemoryBudget is a size such as "4GiB"; empty means unlimited.
	MemoryBudget     string `toml:"memory_budget"`
	Workers          int
	MinMipmapSize    int    `toml:"min_mipmap_size"`
	HistogramBinsXY  int    `toml:"histogram_bins_xy"`
	HistogramBinsZ   int    `toml:"histogram_bins_z"`
	HistogramBinsXYZ int    `toml:"histogram_bins_xyz"`
	SwizzleTile      int    `toml:"swizzle_tile"`
	DataChunk        int    `toml:"data_chunk"`
}

// LoggingConfig is the [logging] table.
type LoggingConfig struct {
	logging.LogConfig
	Verbose bool
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		Convert: ConvertConfig{
			Strategy:         Full,
			MinMipmapSize:    128,
			HistogramBinsXY:  converter.AutoBins,
			HistogramBinsZ:   converter.NoHistogram,
			HistogramBinsXYZ: converter.AutoBins,
			SwizzleTile:      swizzle.DefaultTile,
			DataChunk:        cube.DefaultDataChunk,
		},
		Logging: LoggingConfig{
			LogConfig: logging.LogConfig{MaxSize: 100, MaxAge: 30},
		},
	}
}

// Load reads filename over the defaults. Relative paths in the file are
// taken relative to the file's directory.
func Load(filename string) (*Config, error) {
	c := Default()
	md, err := toml.DecodeFile(filename, c)
	if err != nil {
		return nil, fmt.Errorf("could not decode TOML config %s: %w", filename, err)
	}
	if err := checkUndecoded(md); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	c.Logging.Resolve(filepath.Dir(filename))
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	logging.Debugf("Loaded configuration %s: %+v", filename, c.Convert)
	return c, nil
}

// Parse decodes a configuration from text; relative paths are taken
// relative to dir.
func Parse(text, dir string) (*Config, error) {
	c := Default()
	md, err := toml.Decode(text, c)
	if err != nil {
		return nil, fmt.Errorf("could not decode TOML config: %w", err)
	}
	if err := checkUndecoded(md); err != nil {
		return nil, err
	}
	c.Logging.Resolve(dir)
	return c, c.Validate()
}

func checkUndecoded(md toml.MetaData) error {
	if keys := md.Undecoded(); len(keys) > 0 {
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = k.String()
		}
		return fmt.Errorf("unknown settings: %s", strings.Join(names, ", "))
	}
	return nil
}

// Validate checks the settings and parses the memory budget.
func (c *Config) Validate() error {
	switch c.Convert.Strategy {
	case Full, Bounded:
	default:
		return fmt.Errorf("strategy %q: must be %q or %q", c.Convert.Strategy, Full, Bounded)
	}
	c.budget = 0
	if s := strings.TrimSpace(c.Convert.MemoryBudget); s != "" {
		b, err := humanize.ParseBytes(s)
		if err != nil {
			return fmt.Errorf("memory_budget %q: %w", c.Convert.MemoryBudget, err)
		}
		c.budget = b
	}
	if c.Convert.Workers < 0 {
		return fmt.Errorf("workers %d: must be 0 (one per CPU) or positive", c.Convert.Workers)
	}
	return nil
}

// Bounded reports whether the bounded strategy is selected.
func (c *Config) Bounded() bool {
	return c.Convert.Strategy == Bounded
}

// MemoryBudget returns the parsed budget in bytes, 0 for unlimited.
func (c *Config) MemoryBudget() uint64 {
	return c.budget
}

// Workers returns the worker count, resolving 0 to the number of CPUs.
func (c *Config) Workers() int {
	if c.Convert.Workers == 0 {
		return runtime.NumCPU()
	}
	return c.Convert.Workers
}

// Options returns the converter options for the settings. Values the
// converter rejects surface from converter.SelectConverter.
func (c *Config) Options() []converter.Option {
	cc := c.Convert
	return []converter.Option{
		converter.WithMemoryBudget(c.MemoryBudget()),
		converter.WithWorkers(c.Workers()),
		converter.WithMinMipmapSize(cc.MinMipmapSize),
		converter.WithHistogramBins(cube.XY, cc.HistogramBinsXY),
		converter.WithHistogramBins(cube.Z, cc.HistogramBinsZ),
		converter.WithHistogramBins(cube.XYZ, cc.HistogramBinsXYZ),
		converter.WithSwizzleTile(cc.SwizzleTile),
		converter.WithDataChunk(cc.DataChunk),
	}
}
