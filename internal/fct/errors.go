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

package fct

import "errors"

var (
	// ErrInvalidFormat is returned internally when an envelope's magic or
	// format version does not match. It never escapes Load/LoadOrCreate:
	// both treat it as "create fresh". A hash-algorithm name mismatch is
	// detected by Load directly and handled the same way.
	ErrInvalidFormat = errors.New("fct: invalid on-disk format")

	// ErrCorrupt is returned internally when a decoded entry carries
	// ttl==0, a value that is never written. A body checksum mismatch is
	// detected by Load directly. Repairing a corrupt on-disk file is out
	// of scope; a corrupt table is simply treated as absent.
	ErrCorrupt = errors.New("fct: corrupt table")
)
