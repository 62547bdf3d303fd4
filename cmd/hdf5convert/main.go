// Command-line converter from FITS image cubes to HDF5.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/idia-astro/hdf5convert/converter"
	"github.com/idia-astro/hdf5convert/internal/config"
	"github.com/idia-astro/hdf5convert/internal/logging"
	"github.com/idia-astro/hdf5convert/internal/verify"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")

	// Run in verbose mode if true.
	runVerbose = flag.Bool("verbose", false, "")

	// Path to the TOML configuration.
	configFile = flag.String("config", "", "")

	// Use the bounded-memory strategy.
	slow = flag.Bool("slow", false, "")

	// Output path; defaults to the input with an .hdf5 extension.
	outputFile = flag.String("o", "", "")

	// Check the output against the input after converting.
	runVerify = flag.Bool("verify", false, "")

	// Number of workers; overrides the configuration if set.
	useCPU = flag.Int("numcpu", 0, "")

	// Print the version and exit.
	showVersion = flag.Bool("version", false, "")
)

const helpMessage = `
hdf5convert converts a FITS image cube into an HDF5 file with statistics,
a swizzled copy for fast spectral access and a mipmap pyramid

Usage: hdf5convert [options] <input.fits>

      -o          =string   Output file.  Defaults to the input with an .hdf5 extension.
      -config     =string   TOML configuration file.
      -slow       (flag)    Use the bounded-memory strategy.
      -numcpu     =number   Number of workers.  Overrides the configuration.
      -verify     (flag)    Check the output against the input after converting.
      -verbose    (flag)    Run in verbose mode.
      -version    (flag)    Print the version and exit.
  -h, -help       (flag)    Show help message

The output is written to <output>.tmp and renamed once the conversion
succeeds, so an existing output is only replaced by a complete file.
`

// Exit codes.
const (
	exitOK = iota
	exitFailure
	exitVerify
	exitUsage
)

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = func() { fmt.Print(helpMessage) }
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s (schema %s)\n", converter.Name, converter.Version, converter.SchemaVersion)
		return
	}
	if *showHelp || flag.NArg() != 1 {
		flag.Usage()
		if *showHelp {
			return
		}
		os.Exit(exitUsage)
	}
	os.Exit(run(flag.Arg(0)))
}

func run(input string) int {
	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitUsage
		}
	}
	if *runVerbose || cfg.Logging.Verbose {
		logging.SetLogMode(logging.DebugMode)
	}
	cfg.Logging.SetLogger()
	defer logging.Shutdown()
	if b := cfg.MemoryBudget(); b > 0 {
		logging.Infof("Memory budget %s", logging.Bytes(b))
	}

	output := *outputFile
	if output == "" {
		output = outputPath(input)
	}
	opts := cfg.Options()
	if *useCPU > 0 {
		opts = append(opts, converter.WithWorkers(*useCPU))
	}

	if err := convert(input, output, cfg.Bounded() || *slow, opts); err != nil {
		logging.Criticalf("%v", err)
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, converter.ErrConfig) {
			return exitUsage
		}
		return exitFailure
	}

	if *runVerify {
		r, err := verify.Run(input, output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "verification failed: %v\n", err)
			return exitFailure
		}
		if err := r.Err(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitVerify
		}
		fmt.Printf("Verified %s: %d checks passed\n", output, len(r.Checked))
	}
	return exitOK
}

// convert writes to a temporary file and renames it over output on success.
func convert(input, output string, bounded bool, opts []converter.Option) error {
	tmp := output + ".tmp"
	for _, p := range []string{output, tmp} {
		same, err := sameFile(input, p)
		if err != nil {
			return err
		}
		if same {
			return fmt.Errorf("%w: %s would overwrite the input %s", converter.ErrConfig, p, input)
		}
	}
	c, err := converter.SelectConverter(input, tmp, bounded, opts...)
	if err != nil {
		return err
	}
	if err := c.Convert(); err != nil {
		if rmErr := os.Remove(tmp); rmErr != nil && !os.IsNotExist(rmErr) {
			logging.Warningf("removing %s: %v", tmp, rmErr)
		}
		return err
	}
	if err := os.Rename(tmp, output); err != nil {
		return fmt.Errorf("replacing %s: %w", output, err)
	}
	logging.Infof("Wrote %s", output)
	return nil
}

// sameFile reports whether a and b name the same file, either by path or,
// when both exist, by identity (links, case-insensitive file systems).
func sameFile(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	if absA == absB {
		return true, nil
	}
	infoA, errA := os.Stat(a)
	infoB, errB := os.Stat(b)
	if errA != nil || errB != nil {
		return false, nil
	}
	return os.SameFile(infoA, infoB), nil
}

func outputPath(input string) string {
	base := input
	for _, ext := range []string{".gz", ".fits", ".fit", ".fts"} {
		if strings.HasSuffix(strings.ToLower(base), ext) {
			base = base[:len(base)-len(ext)]
		}
	}
	return base + ".hdf5"
}
