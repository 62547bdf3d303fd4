package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/natefinch/lumberjack"
)

// leveledLogger prefixes each line with its level. out is the rotating log
// file, or nil when writing to stderr.
type leveledLogger struct {
	l   *log.Logger
	out io.Closer
}

var logger Logger = leveledLogger{l: log.New(os.Stderr, "", log.LstdFlags)}

// LogConfig selects a rotating log file.
type LogConfig struct {
	Logfile string
	MaxSize int `toml:"max_log_size"` // megabytes
	MaxAge  int `toml:"max_log_age"`  // days
}

// Resolve makes a relative log file path relative to dir.
func (c *LogConfig) Resolve(dir string) {
	if c.Logfile != "" && !filepath.IsAbs(c.Logfile) {
		c.Logfile = filepath.Join(dir, c.Logfile)
	}
}

// SetLogger directs the package logger to the configured file. Without a
// file, logging stays on stderr.
func (c *LogConfig) SetLogger() {
	if c == nil || c.Logfile == "" {
		return
	}
	f := &lumberjack.Logger{Filename: c.Logfile, MaxSize: c.MaxSize, MaxAge: c.MaxAge}
	fmt.Fprintf(os.Stderr, "logging to %s\n", c.Logfile)
	logger = leveledLogger{l: log.New(f, "", log.LstdFlags), out: f}
}

func (ll leveledLogger) printf(level, format string, args []interface{}) {
	ll.l.Printf("%s %s", level, fmt.Sprintf(format, args...))
}

func (ll leveledLogger) Debugf(format string, args ...interface{}) {
	ll.printf("DEBUG", format, args)
}

func (ll leveledLogger) Infof(format string, args ...interface{}) {
	ll.printf("INFO", format, args)
}

func (ll leveledLogger) Warningf(format string, args ...interface{}) {
	ll.printf("WARNING", format, args)
}

func (ll leveledLogger) Errorf(format string, args ...interface{}) {
	ll.printf("ERROR", format, args)
}

func (ll leveledLogger) Criticalf(format string, args ...interface{}) {
	ll.printf("CRITICAL", format, args)
}

func (ll leveledLogger) Shutdown() {
	if ll.out == nil {
		return
	}
	if err := ll.out.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "closing log file: %v\n", err)
	}
}
