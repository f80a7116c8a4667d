/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package log provides the slog-based application logger. Records carry the app name and
// version plus optional component, operation and scene fields.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"gocutscene/internal/version"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger initialization.
// Values can be provided directly or via environment variables:
//   - GCS_LOG_LEVEL=debug|info|warn|error
//   - GCS_LOG_FORMAT=console|json
//   - GCS_LOG_FILE=<path> (enables rotated JSON file logging)
//   - GCS_LOG_SOURCE=true|false
type Options struct {
	Level     string
	Format    string // "console" or "json"
	AddSource bool
	File      string

	// Output replaces stderr for the console handler. Used by tests and the play command.
	Output io.Writer
}

var (
	defaultLoggerMu sync.RWMutex
	defaultLogger   *slog.Logger
	level           = new(slog.LevelVar)
)

// L returns the application logger, initializing it from the environment on first use.
func L() *slog.Logger {
	defaultLoggerMu.RLock()
	l := defaultLogger
	defaultLoggerMu.RUnlock()
	if l != nil {
		return l
	}
	Init(FromEnv())
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

// Init configures the global logger and installs it as slog.Default.
func Init(opts Options) {
	level.Set(ParseLevel(opts.Level))
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var console slog.Handler
	if format == "json" {
		console = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level, AddSource: opts.AddSource})
	} else {
		console = newConsoleHandler(out, level, opts.AddSource)
	}
	handlers := []slog.Handler{console}

	if f := strings.TrimSpace(opts.File); f != "" {
		w := &lj.Logger{Filename: f, MaxSize: 10, MaxBackups: 3, MaxAge: 28, Compress: true}
		handlers = append(handlers, slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level, AddSource: opts.AddSource}))
	}

	var h slog.Handler = handlers[0]
	if len(handlers) > 1 {
		h = fanout(handlers)
	}

	logger := slog.New(h).With(
		slog.String("app", "gocutscene"),
		slog.String("ver", version.String()),
		slog.Time("ts_init", time.Now()),
	)

	defaultLoggerMu.Lock()
	defaultLogger = logger
	defaultLoggerMu.Unlock()
	slog.SetDefault(logger)
}

// SetLevel changes the level of the running logger without rebuilding it.
func SetLevel(s string) { level.Set(ParseLevel(s)) }

// FromEnv builds Options from GCS_LOG_* environment variables.
func FromEnv() Options {
	return Options{
		Level:     getenv("GCS_LOG_LEVEL", "info"),
		Format:    getenv("GCS_LOG_FORMAT", "console"),
		AddSource: strings.EqualFold(getenv("GCS_LOG_SOURCE", "false"), "true"),
		File:      os.Getenv("GCS_LOG_FILE"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// WithComponent returns a logger with the component attribute pre-set.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

// WithOperation annotates the logger with an operation name.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

// WithScene annotates the logger with the scene being compiled or played.
func WithScene(l *slog.Logger, name string) *slog.Logger { return l.With(slog.String("scene", name)) }

// ParseLevel converts a level name to slog.Level; unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
