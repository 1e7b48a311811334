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

//go:build unix

package identity

import "golang.org/x/sys/unix"

// unixAdapter derives a versioned identity from the device/inode pair and
// file timestamps. Unlike a change-journal USN, this version is not backed
// by an OS-guaranteed close record: there is no portable equivalent of a
// journal flush on most Unix filesystems. This implementation retains
// strict monotonicity per ID *within this process* by combining
// mtime/ctime nanoseconds with an in-memory per-ID counter that only
// moves forward, but it cannot detect a content mutation performed by
// another process that leaves identical mtime/ctime (clock granularity
// permitting). This is a documented restriction, not a bug.
type unixAdapter struct {
	tracker *monotonicTracker
}

// NewUnix returns the identity.Adapter used on unix-like platforms.
func NewUnix() Adapter {
	return &unixAdapter{tracker: newMonotonicTracker()}
}

func (a *unixAdapter) QueryWeak(h Handle) (Versioned, error) {
	id, raw, err := statID(h)
	if err != nil {
		return Versioned{}, &UnavailableError{Reason: Other, Err: err}
	}
	v := a.tracker.observe(id, raw)
	return Versioned{ID: id, Version: Version{Value: v, Kind: Weak}}, nil
}

func (a *unixAdapter) EstablishStrong(h Handle, flush bool) (Versioned, error) {
	if flush {
		// Force the kernel to persist the inode's metadata (mtime/size)
		// before reading it back, so the derived version reflects any
		// write that preceded this call.
		_ = unix.Fsync(int(h.Fd()))
	}
	id, raw, err := statID(h)
	if err != nil {
		return Versioned{}, &UnavailableError{Reason: Other, Err: err}
	}
	v := a.tracker.establish(id, raw)
	return Versioned{ID: id, Version: Version{Value: v, Kind: Strong}}, nil
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
