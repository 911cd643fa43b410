package cli

import (
	"io"
	"log/slog"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Log rotation defaults for --log-file.
const (
	DefaultLogMaxSizeMB  = 10
	DefaultLogMaxBackups = 3
	DefaultLogMaxAgeDays = 7
)

// setupLogging installs the default slog logger for a command and returns
// it with a func that releases the log file.
//
// Levels: --verbose logs every event decision (Debug). With --log-file the
// "Repro sequence:" lines are kept (Info). Otherwise stderr only gets
// warnings and failures, so exploration does not flood the terminal.
func setupLogging(opts *RootOptions, stderr io.Writer) (*slog.Logger, func()) {
	level := slog.LevelWarn
	var w io.Writer = stderr
	closeFn := func() {}

	if opts.LogFile != "" {
		level = slog.LevelInfo
		rotated := &lj.Logger{
			Filename:   opts.LogFile,
			MaxSize:    DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAge:     DefaultLogMaxAgeDays,
		}
		w = rotated
		closeFn = func() { _ = rotated.Close() }
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, closeFn
}
