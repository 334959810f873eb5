// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ffutop/relay8x/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestOutput(t *testing.T) {
	assert.Equal(t, os.Stdout, Output(config.LogConfig{}))
	assert.Equal(t, os.Stdout, Output(config.LogConfig{File: "-"}))

	path := filepath.Join(t.TempDir(), "relay8x.log")
	w := Output(config.LogConfig{File: path, MaxSizeMB: 5, MaxBackups: 2})
	lj, ok := w.(*lumberjack.Logger)
	require.True(t, ok)
	assert.Equal(t, path, lj.Filename)
	assert.Equal(t, 5, lj.MaxSize)
	assert.Equal(t, 2, lj.MaxBackups)
}

func TestNewHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, config.LogConfig{Level: "warn", Format: "json"}))

	logger.Info("dropped")
	logger.Warn("kept", "card", 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, float64(2), rec["card"])
}

func TestNewHandler_TextAndConsole(t *testing.T) {
	for _, format := range []string{"text", "console"} {
		var buf bytes.Buffer
		logger := slog.New(NewHandler(&buf, config.LogConfig{Level: "debug", Format: format}))
		logger.Debug("frame sent", "frame", "06011512")
		assert.Contains(t, buf.String(), "frame sent", format)
		assert.Contains(t, buf.String(), "06011512", format)
	}
}

func TestSetup_File(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "relay8x.log")
	logger, closer := Setup(config.LogConfig{Level: "info", File: path, MaxSizeMB: 1})
	logger.Info("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}
