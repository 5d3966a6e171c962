package monitoring

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// RotatingOutput describes a size-rotated log file.
type RotatingOutput struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewRotatingWriter returns a lumberjack writer for the output. Old files are
// compressed once rotated.
func NewRotatingWriter(o RotatingOutput) *lumberjack.Logger {
	if o.MaxSizeMB <= 0 {
		o.MaxSizeMB = 50
	}
	if o.MaxBackups <= 0 {
		o.MaxBackups = 5
	}
	return &lumberjack.Logger{
		Filename:   o.Path,
		MaxSize:    o.MaxSizeMB,
		MaxBackups: o.MaxBackups,
		MaxAge:     o.MaxAgeDays,
		Compress:   true,
	}
}

// ConfigureOutput points the standard logger at stderr and, when path is set,
// a rotating file as well. The returned closer releases the file.
func ConfigureOutput(path string) io.Closer {
	if path == "" {
		log.SetOutput(os.Stderr)
		return io.NopCloser(nil)
	}
	w := NewRotatingWriter(RotatingOutput{Path: path})
	log.SetOutput(io.MultiWriter(os.Stderr, w))
	return w
}
