package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recorder struct {
	lines []string
}

func (r *recorder) add(level, format string, args ...interface{}) {
	r.lines = append(r.lines, level+" "+fmt.Sprintf(format, args...))
}

func (r *recorder) Debugf(f string, a ...interface{})    { r.add("DEBUG", f, a...) }
func (r *recorder) Infof(f string, a ...interface{})     { r.add("INFO", f, a...) }
func (r *recorder) Warningf(f string, a ...interface{})  { r.add("WARNING", f, a...) }
func (r *recorder) Errorf(f string, a ...interface{})    { r.add("ERROR", f, a...) }
func (r *recorder) Criticalf(f string, a ...interface{}) { r.add("CRITICAL", f, a...) }
func (r *recorder) Shutdown()                            {}

// swapLogger installs l and returns a function restoring the previous logger.
func swapLogger(l Logger) (restore func()) {
	prev := logger
	logger = l
	return func() { logger = prev }
}

func TestLogMode(t *testing.T) {
	rec := &recorder{}
	defer swapLogger(rec)()
	prev := mode
	defer SetLogMode(prev)

	SetLogMode(WarningMode)
	Debugf("debug")
	Infof("info")
	Warningf("warn %d", 1)
	Errorf("error")
	if len(rec.lines) != 2 || rec.lines[0] != "WARNING warn 1" {
		t.Errorf("lines = %v", rec.lines)
	}

	SetLogMode(SilentMode)
	Criticalf("critical")
	if len(rec.lines) != 2 {
		t.Errorf("silent mode logged: %v", rec.lines)
	}
}

func TestTimeLog(t *testing.T) {
	rec := &recorder{}
	defer swapLogger(rec)()
	prev := mode
	defer SetLogMode(prev)
	SetLogMode(DebugMode)

	tlog := NewTimeLog()
	tlog.Infof("wrote %s", "DATA")
	if len(rec.lines) != 1 || !strings.HasPrefix(rec.lines[0], "INFO wrote DATA: ") {
		t.Errorf("lines = %v", rec.lines)
	}
}

func TestResolve(t *testing.T) {
	c := LogConfig{Logfile: "convert.log"}
	c.Resolve("/etc/hdf5convert")
	if c.Logfile != filepath.Join("/etc/hdf5convert", "convert.log") {
		t.Errorf("Logfile = %s", c.Logfile)
	}
	abs := LogConfig{Logfile: "/var/log/convert.log"}
	abs.Resolve("/etc")
	if abs.Logfile != "/var/log/convert.log" {
		t.Errorf("absolute path changed: %s", abs.Logfile)
	}
}

func TestRotatingLogFile(t *testing.T) {
	dir := t.TempDir()
	c := &LogConfig{Logfile: filepath.Join(dir, "convert.log"), MaxSize: 1, MaxAge: 1}
	prevLogger, prevMode := logger, mode
	defer func() {
		logger = prevLogger
		SetLogMode(prevMode)
	}()

	c.SetLogger()
	SetLogMode(InfoMode)
	Infof("hello %s", "file")
	Shutdown()

	data, err := os.ReadFile(c.Logfile)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if !strings.Contains(string(data), "INFO hello file") {
		t.Errorf("log file contents %q", data)
	}
}

func TestBytes(t *testing.T) {
	if got := Bytes(1536); got != "1.5 KiB" {
		t.Errorf("Bytes(1536) = %q", got)
	}
}
