// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package logging builds the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/phsym/console-slog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ffutop/relay8x/internal/config"
)

// ParseLevel maps a configured level name to a slog level. Unknown names
// fall back to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Output returns the writer for cfg.File. Empty or "-" means stdout,
// anything else is a rotated file.
func Output(cfg config.LogConfig) io.Writer {
	if cfg.File == "" || cfg.File == "-" {
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
}

// NewHandler creates the handler for cfg.Format writing to w.
func NewHandler(w io.Writer, cfg config.LogConfig) slog.Handler {
	level := ParseLevel(cfg.Level)

	switch cfg.Format {
	case "json":
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case "console":
		return console.NewHandler(w, &console.HandlerOptions{Level: level})
	default:
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}
}

// Setup installs the configured logger as the slog default and returns it.
// The returned closer releases the log file, if any.
func Setup(cfg config.LogConfig) (*slog.Logger, io.Closer) {
	w := Output(cfg)
	logger := slog.New(NewHandler(w, cfg))
	slog.SetDefault(logger)

	if c, ok := w.(io.Closer); ok && w != os.Stdout {
		return logger, c
	}
	return logger, nopCloser{}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
