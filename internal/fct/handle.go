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

import (
	"os"

	"github.com/buildcache/fct/internal/identity"
)

// Handle is an open file handle as probe/record need it: the identity
// adapter's minimal surface, plus whether it was opened for writing, which
// decides record's default for strict — write handles imply strict=true.
type Handle interface {
	identity.Handle
	Writable() bool
}

// FileHandle wraps *os.File, remembering the flags it was opened with so
// Writable can answer without another syscall.
type FileHandle struct {
	*os.File
	writable bool
}

// OpenHandle opens path the way a caller of probe/record would, recording
// writability from flag.
func OpenHandle(path string, flag int, perm os.FileMode) (*FileHandle, error) {
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}
	writable := flag&(os.O_WRONLY|os.O_RDWR) != 0
	return &FileHandle{File: f, writable: writable}, nil
}

// Writable reports whether this handle was opened for writing.
func (h *FileHandle) Writable() bool { return h.writable }
