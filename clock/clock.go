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

// Package clock provides an injectable time source so that duration
// telemetry can be tested without sleeping a real clock. TTL decay does
// not use it: it counts persist round-trips, not elapsed time.
package clock

import "time"

// Clock is the interface satisfied by RealClock, FakeClock, and
// SimulatedClock. Components that need to measure elapsed time (e.g. the
// persistence layer's load/save duration telemetry) take a Clock instead of
// calling time.Now directly.
type Clock interface {
	// Now returns the current time according to the clock.
	Now() time.Time

	// After returns a channel that receives the time once d has elapsed.
	After(d time.Duration) <-chan time.Time
}
