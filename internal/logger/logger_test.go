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

package logger_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/buildcache/fct/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestNewTextHandlerWritesSeverityName(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(logger.Options{Writer: &buf, Level: logger.LevelInfo})

	l.Info("hello")

	assert.Contains(t, buf.String(), "severity=INFO")
	assert.Contains(t, buf.String(), "hello")
}

func TestNewJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(logger.Options{JSON: true, Writer: &buf, Level: logger.LevelInfo})

	l.Warn("careful")

	assert.Contains(t, buf.String(), `"severity":"WARNING"`)
}

func TestLevelBelowThresholdIsSuppressed(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(logger.Options{Writer: &buf, Level: logger.LevelInfo})

	l.Trace("should not appear")

	assert.Empty(t, buf.String())
}

func TestSetLevelAdjustsAtRuntime(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(logger.Options{Writer: &buf, Level: logger.LevelInfo})

	l.SetLevel(logger.LevelTrace)
	l.Trace("now visible")

	assert.Contains(t, buf.String(), "now visible")
}

func TestNewWithRotatingFileWritesToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fct.log")
	l := logger.New(logger.Options{
		Level: logger.LevelInfo,
		RotatingFile: &lumberjack.Logger{
			Filename: path,
			MaxSize:  1,
		},
	})

	l.Info("hits disk")

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "hits disk")
}

func TestOnceFlagFiresOnce(t *testing.T) {
	var f logger.OnceFlag

	require.True(t, f.Fire())
	assert.False(t, f.Fire())
	assert.False(t, f.Fire())

	f.Reset()
	assert.True(t, f.Fire())
}

func TestOnceFlagConcurrentFireOnlyOneWinner(t *testing.T) {
	var f logger.OnceFlag
	wins := make(chan bool, 50)
	for i := 0; i < 50; i++ {
		go func() { wins <- f.Fire() }()
	}

	trueCount := 0
	for i := 0; i < 50; i++ {
		if <-wins {
			trueCount++
		}
	}
	assert.Equal(t, 1, trueCount)
}
