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
	"os"

	"github.com/spf13/cobra"

	"github.com/buildcache/fct/internal/fct"
)

var statCmd = &cobra.Command{
	Use:   "stat <path> [path...]",
	Short: "Report whether each path currently probes as a hit",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runStat,
}

func runStat(cmd *cobra.Command, args []string) error {
	tbl := fct.LoadOrCreate(tablePath, defaultTTL, fct.WithLogger(log))

	for _, path := range args {
		h, err := fct.OpenHandle(path, os.O_RDONLY, 0)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: cannot open: %v\n", path, err)
			continue
		}

		res, ok := tbl.Probe(path, h)
		h.Close()
		if !ok {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: miss\n", path)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: hit identity=%s version=%s length=%d hash=%x\n",
			path, res.Identity.ID, res.Identity.Version, res.Length, res.Hash)
	}
	return nil
}
