package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the process-wide logger
type Options struct {
	// File, when set, receives a rotated copy of every log line
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Verbose    bool
	// Quiet drops the console writer; only the log file, if any, is written
	Quiet bool
}

var verbose atomic.Bool

// Setup points the standard logger at stderr and, optionally, a rotated log file.
// The returned closer flushes and closes the file writer.
func Setup(opts Options) (io.Closer, error) {
	verbose.Store(opts.Verbose)

	var writers []io.Writer
	if !opts.Quiet {
		writers = append(writers, os.Stderr)
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 10), // MB
			MaxBackups: orDefault(opts.MaxBackups, 2),
			MaxAge:     orDefault(opts.MaxAgeDays, 28), // days
			Compress:   opts.Compress,
		}
		writers = append(writers, lj)
		closer = lj
	}

	if len(writers) == 0 {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(io.MultiWriter(writers...))
	}
	log.SetFlags(log.Ldate | log.Ltime)
	if opts.Verbose {
		log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	}
	return closer, nil
}

// SetVerbose toggles debug output
func SetVerbose(v bool) {
	verbose.Store(v)
}

// Verbose reports whether debug output is enabled
func Verbose() bool {
	return verbose.Load()
}

// Printf calls the standard log.Printf()
func Printf(format string, v ...interface{}) {
	log.Output(2, fmt.Sprintf(format, v...))
}

// Println calls the standard log.Println()
func Println(v ...interface{}) {
	log.Output(2, fmt.Sprintln(v...))
}

// Debugf logs only when verbose output is enabled
func Debugf(format string, v ...interface{}) {
	if !verbose.Load() {
		return
	}
	log.Output(2, "DEBUG "+fmt.Sprintf(format, v...))
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
