// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger provides the leveled, structured logger the file content
// table uses for its one-time diagnostics and per-event verbose traces.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// severity names the five levels this package exposes
// (TRACE/DEBUG/INFO/WARNING/ERROR). TRACE has no slog equivalent, so it is
// mapped one notch below slog.LevelDebug.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARNING",
	LevelError: "ERROR",
}

// Logger wraps an *slog.Logger with the table's chosen severity names.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
}

// Options configures New.
type Options struct {
	// JSON selects the JSON handler; otherwise a text handler is used.
	JSON bool
	// Level is the minimum severity that will be emitted.
	Level slog.Level
	// Writer receives log output. If nil, os.Stderr is used.
	Writer io.Writer
	// RotatingFile, if set, receives log output in place of Writer (which
	// is then ignored), so long-running processes don't grow an unbounded
	// log file.
	RotatingFile *lumberjack.Logger
}

// New builds a Logger per Options.
func New(opts Options) *Logger {
	w := opts.Writer
	if opts.RotatingFile != nil {
		w = opts.RotatingFile
	}
	if w == nil {
		w = os.Stderr
	}

	levelVar := new(slog.LevelVar)
	levelVar.Set(opts.Level)

	handlerOpts := &slog.HandlerOptions{
		Level: levelVar,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				level := a.Value.Any().(slog.Level)
				if name, ok := levelNames[level]; ok {
					a.Value = slog.StringValue(name)
					a.Key = "severity"
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	return &Logger{Logger: slog.New(handler), level: levelVar}
}

// SetLevel adjusts the minimum emitted severity at runtime.
func (l *Logger) SetLevel(level slog.Level) { l.level.Set(level) }

// Trace logs at LevelTrace, used for per-event verbose traces on
// mismatch/skip paths that must not be noisy by default.
func (l *Logger) Trace(msg string, args ...any) {
	l.Log(context.Background(), LevelTrace, msg, args...)
}
