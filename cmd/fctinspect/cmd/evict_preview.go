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

	"github.com/buildcache/fct/internal/fct"
	"github.com/buildcache/fct/internal/identity"
)

var evictPreviewCmd = &cobra.Command{
	Use:   "evict-preview",
	Short: "List entries that would be dropped by the next save/load round-trip",
	Long: `evict-preview uses create_from to apply the same TTL clamp-and-decrement
a real persist round-trip performs, without writing anything to disk, and
reports which entries would not survive it.`,
	Args: cobra.NoArgs,
	RunE: runEvictPreview,
}

func runEvictPreview(cmd *cobra.Command, args []string) error {
	tbl := fct.LoadOrCreate(tablePath, defaultTTL, fct.WithLogger(log))
	derived := fct.CreateFrom(tbl, &defaultTTL)

	return printEvicted(cmd, tbl, derived)
}

func printEvicted(cmd *cobra.Command, before, after *fct.Table) error {
	survived := make(map[identity.ID]bool)
	after.Range(func(id identity.ID, e fct.Entry) bool {
		survived[id] = true
		return true
	})

	n := 0
	before.Range(func(id identity.ID, e fct.Entry) bool {
		if !survived[id] {
			fmt.Fprintf(cmd.OutOrStdout(), "would evict: identity=%s version=%d ttl=%d\n", id, e.Version, e.TTL)
			n++
		}
		return true
	})
	if n == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no entries would be evicted")
	}
	return nil
}
