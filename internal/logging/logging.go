// Package logging builds the process loggers. Log lines go to stderr
// and, when a log file is configured, to a size-rotated file as well.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures log output.
type Options struct {
	// File is the rotating log destination. Empty logs to stderr only.
	File string

	// MaxSizeMB is the rotation threshold per file (default 10).
	MaxSizeMB int

	// MaxBackups is how many rotated files to keep (default 3).
	MaxBackups int
}

// New returns a logger writing to stderr and the configured rotating
// file, plus a closer for the file writer.
func New(prefix string, opts Options) (*log.Logger, io.Closer) {
	if opts.File == "" {
		return log.New(os.Stderr, prefix, log.LstdFlags), nopCloser{}
	}

	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 10
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 3
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
	}
	return log.New(io.MultiWriter(os.Stderr, rotator), prefix, log.LstdFlags), rotator
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
