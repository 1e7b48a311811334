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

//go:build windows

package identity

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	fsctlReadFileUsnData  = 0x900EB
	fsctlWriteUsnCloseRecord = 0x900EF
)

// fileIDInfo mirrors FILE_ID_INFO from the Windows SDK: a 64-bit volume
// serial number and a 128-bit file id, stable across renames and
// hardlink-sharing.
type fileIDInfo struct {
	VolumeSerialNumber uint64
	FileID             [16]byte
}

// winAdapter backs the identity adapter on Windows with real change-journal
// USNs: QueryWeak reads the current USN via FSCTL_READ_FILE_USN_DATA;
// EstablishStrong additionally issues FSCTL_WRITE_USN_CLOSE_RECORD, which
// the change journal records as though the handle had been closed,
// guaranteeing the returned USN postdates any write already issued against
// the handle.
type winAdapter struct{}

// NewWindows returns the identity.Adapter used on Windows.
func NewWindows() Adapter { return winAdapter{} }

func queryFileID(h Handle) (ID, error) {
	var info fileIDInfo
	err := windows.GetFileInformationByHandleEx(
		windows.Handle(h.Fd()),
		windows.FileIdInfo,
		(*byte)(unsafe.Pointer(&info)),
		uint32(unsafe.Sizeof(info)),
	)
	if err != nil {
		return ID{}, err
	}
	return ID{VolumeID: info.VolumeSerialNumber, FileID: info.FileID}, nil
}

// readUSN reads the file's USN_RECORD and returns its Usn field.
func readUSN(h Handle) (uint64, error) {
	var buf [128]uint64 // 8-byte aligned room for a USN_RECORD_V2/V3
	var bytesReturned uint32
	err := windows.DeviceIoControl(
		windows.Handle(h.Fd()),
		fsctlReadFileUsnData,
		nil, 0,
		(*byte)(unsafe.Pointer(&buf[0])), uint32(unsafe.Sizeof(buf)),
		&bytesReturned, nil,
	)
	if err != nil {
		return 0, err
	}
	major := uint16(buf[0] >> 32) // MajorVersion sits at byte offset 4
	usnWord := 3                  // Usn at byte offset 24 in a V2 record
	if major >= 3 {
		usnWord = 5 // byte offset 40: V3 file references are 128-bit
	}
	if bytesReturned < uint32(8*(usnWord+1)) {
		return 0, windows.ERROR_INVALID_DATA
	}
	return buf[usnWord], nil
}

func writeUSNCloseRecord(h Handle) (uint64, error) {
	var usn uint64
	var bytesReturned uint32
	err := windows.DeviceIoControl(
		windows.Handle(h.Fd()),
		fsctlWriteUsnCloseRecord,
		nil, 0,
		(*byte)(unsafe.Pointer(&usn)), uint32(unsafe.Sizeof(usn)),
		&bytesReturned, nil,
	)
	if err != nil {
		return 0, err
	}
	return usn, nil
}

func (winAdapter) QueryWeak(h Handle) (Versioned, error) {
	id, err := queryFileID(h)
	if err != nil {
		return Versioned{}, translateWindowsErr(err)
	}
	usn, err := readUSN(h)
	if err != nil {
		return Versioned{}, translateWindowsErr(err)
	}
	return Versioned{ID: id, Version: Version{Value: usn, Kind: Weak}}, nil
}

func (winAdapter) EstablishStrong(h Handle, flush bool) (Versioned, error) {
	id, err := queryFileID(h)
	if err != nil {
		return Versioned{}, translateWindowsErr(err)
	}
	if flush {
		_ = windows.FlushFileBuffers(windows.Handle(h.Fd()))
	}
	usn, err := writeUSNCloseRecord(h)
	if err != nil {
		return Versioned{}, translateWindowsErr(err)
	}
	return Versioned{ID: id, Version: Version{Value: usn, Kind: Strong}}, nil
}

func translateWindowsErr(err error) error {
	if err == windows.ERROR_INVALID_FUNCTION || err == windows.ERROR_NOT_SUPPORTED {
		return &UnavailableError{Reason: NotSupported, Err: err}
	}
	return &UnavailableError{Reason: Other, Err: err}
}
