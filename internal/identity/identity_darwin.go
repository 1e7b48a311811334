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

//go:build darwin

package identity

import "golang.org/x/sys/unix"

func statID(h Handle) (ID, uint64, error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(h.Fd()), &st); err != nil {
		return ID{}, 0, err
	}
	var id ID
	id.VolumeID = uint64(st.Dev)
	putUint64(id.FileID[:8], st.Ino)
	raw := mixTimestamp(st.Mtimespec.Sec, st.Mtimespec.Nsec, st.Ctimespec.Sec, st.Ctimespec.Nsec)
	return id, raw, nil
}

func mixTimestamp(mtimeSec, mtimeNsec, ctimeSec, ctimeNsec int64) uint64 {
	m := uint64(mtimeSec)*1e9 + uint64(mtimeNsec)
	c := uint64(ctimeSec)*1e9 + uint64(ctimeNsec)
	return m ^ (c << 1) ^ (c >> 63)
}
