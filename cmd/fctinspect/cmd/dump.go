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

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/buildcache/fct/internal/fct"
	"github.com/buildcache/fct/internal/identity"
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump every live entry in the table as YAML",
	Args:  cobra.NoArgs,
	RunE:  runDump,
}

type dumpEntry struct {
	Identity string `yaml:"identity"`
	Version  uint64 `yaml:"version"`
	Hash     string `yaml:"hash"`
	Length   int64  `yaml:"length"`
	TTL      uint16 `yaml:"ttl"`
}

func runDump(cmd *cobra.Command, args []string) error {
	tbl := fct.LoadOrCreate(tablePath, defaultTTL, fct.WithLogger(log))

	var entries []dumpEntry
	tbl.Range(func(id identity.ID, e fct.Entry) bool {
		entries = append(entries, dumpEntry{
			Identity: id.String(),
			Version:  e.Version,
			Hash:     fmt.Sprintf("%x", e.Hash),
			Length:   e.Length,
			TTL:      e.TTL,
		})
		return true
	})

	out, err := yaml.Marshal(entries)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
