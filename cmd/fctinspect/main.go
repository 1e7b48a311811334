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

// Command fctinspect is a diagnostic CLI over a File Content Table file:
// it can report what a path would probe as, dump every live entry, preview
// what the next save would evict, and serve the table's counters over
// Prometheus.
package main

import "github.com/buildcache/fct/cmd/fctinspect/cmd"

func main() {
	cmd.Execute()
}
