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

package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kardianos/osext"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/buildcache/fct/internal/logger"
)

var (
	cfgFile        string
	tablePath      string
	defaultTTL     uint16
	jsonLogs       bool
	logLevel       string
	logFile        string
	logMaxSizeMB   int
	logBackupCount int
	logCompress    bool
	bindErr        error
	configFileErr  error

	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "fctinspect",
	Short: "Inspect and manage a File Content Table on disk",
	Long: `fctinspect reads and reports on the persisted state of a File Content
Table: which entries are live, what their recorded identity and content
hash are, and what the next save would evict.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}
		level := levelFromName(logLevel)
		opts := logger.Options{JSON: jsonLogs, Level: level}
		if logFile != "" {
			opts.RotatingFile = &lumberjack.Logger{
				Filename:   logFile,
				MaxSize:    logMaxSizeMB,
				MaxBackups: logBackupCount,
				Compress:   logCompress,
			}
		}
		log = logger.New(opts)
		return nil
	},
}

// Execute runs the root command, printing any error to stderr and exiting
// non-zero.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	defaultPath := defaultTablePath()
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&tablePath, "table-path", defaultPath, "Path to the table file")
	rootCmd.PersistentFlags().Uint16Var(&defaultTTL, "default-ttl", 255, "Default TTL new/refreshed entries are given")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Emit structured logs as JSON instead of text")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Minimum log severity: trace, debug, info, warning, error")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to a log file; if unset, logs go to stderr")
	rootCmd.PersistentFlags().IntVar(&logMaxSizeMB, "log-max-size-mb", 100, "Max size in MB of the log file before it is rotated")
	rootCmd.PersistentFlags().IntVar(&logBackupCount, "log-backup-count", 5, "Max number of rotated log files to retain")
	rootCmd.PersistentFlags().BoolVar(&logCompress, "log-compress", false, "Compress rotated log files")

	bindErr = viper.BindPFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(statCmd, dumpCmd, evictPreviewCmd, serveCmd)
}

// defaultTablePath resolves the table file next to the running executable,
// falling back to the current directory if the executable's own path can't
// be resolved (e.g. it was exec'd through a symlink osext can't follow).
func defaultTablePath() string {
	exe, err := osext.Executable()
	if err != nil {
		return "fct.table"
	}
	return filepath.Join(filepath.Dir(exe), "fct.table")
}

func initConfig() {
	if cfgFile == "" {
		return
	}
	viper.SetConfigFile(cfgFile)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		configFileErr = fmt.Errorf("reading config file: %w", err)
		return
	}
	if viper.IsSet("table-path") {
		tablePath = viper.GetString("table-path")
	}
}

func levelFromName(name string) slog.Level {
	switch name {
	case "trace":
		return logger.LevelTrace
	case "debug":
		return logger.LevelDebug
	case "warning", "warn":
		return logger.LevelWarn
	case "error":
		return logger.LevelError
	default:
		return logger.LevelInfo
	}
}
