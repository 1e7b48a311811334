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
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/buildcache/fct/internal/identity"
)

// formatMagic and formatVersion anchor the envelope compatibility guard:
// the version integer and hash-algorithm name together identify whether
// this reader can understand the file; on mismatch the loader reports
// invalid format rather than guessing.
const (
	formatMagic   = "FileContentTable."
	formatVersion = uint32(19)
)

func defaultHashAlgo() (string, int) { return "sha256", 32 }

// envelopeHeader is written first; Save buffers the body in memory, so
// bodyLength/bodyChecksum already hold their final values when the header
// is written.
type envelopeHeader struct {
	hashAlgo      string
	correlationID uuid.UUID
	bodyLength    uint64
	bodyChecksum  uint32
}

func writeEnvelopeHeader(w io.Writer, h envelopeHeader) error {
	if _, err := io.WriteString(w, formatMagic); err != nil {
		return err
	}
	if err := writeLenPrefixedString(w, h.hashAlgo); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, formatVersion); err != nil {
		return err
	}
	if _, err := w.Write(h.correlationID[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, h.bodyLength); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, h.bodyChecksum)
}

func writeLenPrefixedString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readEnvelopeHeader(r io.Reader) (envelopeHeader, error) {
	var h envelopeHeader
	magic := make([]byte, len(formatMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return h, err
	}
	if string(magic) != formatMagic {
		return h, ErrInvalidFormat
	}
	algo, err := readLenPrefixedString(r)
	if err != nil {
		return h, err
	}
	h.hashAlgo = algo

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return h, err
	}
	if version != formatVersion {
		return h, ErrInvalidFormat
	}

	if _, err := io.ReadFull(r, h.correlationID[:]); err != nil {
		return h, err
	}
	if err := binary.Read(r, binary.LittleEndian, &h.bodyLength); err != nil {
		return h, err
	}
	if err := binary.Read(r, binary.LittleEndian, &h.bodyChecksum); err != nil {
		return h, err
	}
	return h, nil
}

func readLenPrefixedString(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// hashAlgo/hashSize are stored on the Table so Save/Load agree on the
// envelope's compatibility-guard fields and on each entry's fixed hash
// width: a fixed N bytes per algorithm.
func (t *Table) envelopeHashAlgo() (string, int) {
	if t.hashAlgoName == "" {
		return defaultHashAlgo()
	}
	return t.hashAlgoName, t.hashSize
}

// WithHashAlgorithm names the content hasher this table's entries were
// produced by; it is written into the envelope as a compatibility guard.
func WithHashAlgorithm(name string, size int) Option {
	return func(t *Table) { t.hashAlgoName = name; t.hashSize = size }
}

// Save writes the table to path, skipping any entry whose current TTL has
// reached zero. An I/O error propagates to the caller with the in-memory
// table left intact; Save does not offer crash-atomicity — callers that
// need it write to a temp path and rename.
func (t *Table) Save(path string) error {
	start := t.clk.Now()
	defer func() { t.metrics.ObserveSaveDuration(t.clk.Now().Sub(start)) }()

	algo, size := t.envelopeHashAlgo()

	var body bytes.Buffer
	var entries []mapEntry
	var evicted int64
	t.m.Range(func(id identity.ID, e Entry) bool {
		if e.TTL == 0 {
			evicted++
			return true
		}
		entries = append(entries, mapEntry{id: id, entry: e})
		return true
	})

	if err := binary.Write(&body, binary.LittleEndian, uint32(len(entries))); err != nil {
		return err
	}
	for _, me := range entries {
		if len(me.entry.Hash) != size {
			return fmt.Errorf("fct: entry %s has %d-byte hash, want %d for %s", me.id, len(me.entry.Hash), size, algo)
		}
		if err := writeEntry(&body, me); err != nil {
			return err
		}
	}

	checksum := crc32.ChecksumIEEE(body.Bytes())
	header := envelopeHeader{
		hashAlgo:      algo,
		correlationID: uuid.New(),
		bodyLength:    uint64(body.Len()),
		bodyChecksum:  checksum,
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := writeEnvelopeHeader(f, header); err != nil {
		return err
	}
	if _, err := f.Write(body.Bytes()); err != nil {
		return err
	}

	if evicted > 0 {
		t.metrics.IncEvicted(evicted)
	}
	return nil
}

func writeEntry(w io.Writer, me mapEntry) error {
	if err := binary.Write(w, binary.LittleEndian, me.id.VolumeID); err != nil {
		return err
	}
	if _, err := w.Write(me.id.FileID[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, me.entry.Version); err != nil {
		return err
	}
	if _, err := w.Write(me.entry.Hash); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, me.entry.Length); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, me.entry.TTL)
}

func readEntry(r io.Reader, hashSize int) (mapEntry, error) {
	var me mapEntry
	if err := binary.Read(r, binary.LittleEndian, &me.id.VolumeID); err != nil {
		return me, err
	}
	if _, err := io.ReadFull(r, me.id.FileID[:]); err != nil {
		return me, err
	}
	if err := binary.Read(r, binary.LittleEndian, &me.entry.Version); err != nil {
		return me, err
	}
	me.entry.Hash = make([]byte, hashSize)
	if _, err := io.ReadFull(r, me.entry.Hash); err != nil {
		return me, err
	}
	if err := binary.Read(r, binary.LittleEndian, &me.entry.Length); err != nil {
		return me, err
	}
	if err := binary.Read(r, binary.LittleEndian, &me.entry.TTL); err != nil {
		return me, err
	}
	if me.entry.TTL == 0 {
		// ttl==0 is the in-memory pre-eviction sentinel; it is never
		// written, so seeing one on disk means the file is corrupt.
		return me, ErrCorrupt
	}
	return me, nil
}

// Load reads path and returns a new Table on success. Any recoverable
// error (missing file, invalid format, I/O error, corrupt body) returns
// ok=false instead of propagating: a corrupt table is treated as absent,
// never repaired.
func Load(path string, defaultTTL uint16, opts ...Option) (*Table, bool) {
	t := newBase(defaultTTL, opts)
	start := t.clk.Now()
	defer func() { t.metrics.ObserveLoadDuration(t.clk.Now().Sub(start)) }()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			t.log.Info("fct: no existing table file, starting fresh", "path", path)
		} else {
			t.log.Warn("fct: failed to open table file", "path", path, "err", err)
		}
		return nil, false
	}
	defer f.Close()

	header, err := readEnvelopeHeader(f)
	if err != nil {
		t.log.Warn("fct: failed to read table header, discarding", "path", path, "err", err)
		return nil, false
	}
	wantAlgo, hashSize := t.envelopeHashAlgo()
	if header.hashAlgo != wantAlgo {
		t.log.Warn("fct: table hash algorithm mismatch, discarding", "path", path, "got", header.hashAlgo, "want", wantAlgo)
		return nil, false
	}

	body := make([]byte, header.bodyLength)
	if _, err := io.ReadFull(f, body); err != nil {
		t.log.Warn("fct: failed to read table body, discarding", "path", path, "err", err)
		return nil, false
	}
	if crc32.ChecksumIEEE(body) != header.bodyChecksum {
		t.log.Warn("fct: table checksum mismatch, discarding", "path", path)
		return nil, false
	}

	entries, err := decodeEntries(body, hashSize, t.defaultTTL)
	if err != nil {
		t.log.Warn("fct: failed to decode table entries, discarding", "path", path, "err", err)
		return nil, false
	}

	t.m.replaceAll(entries)
	t.metrics.IncEntries(int64(len(entries)))
	return t, true
}

// decodeEntries parses the body and sends each decoded entry over a
// channel to a second goroutine, which buffers them in a Queue while
// decoding continues. Once decoding has finished, that goroutine applies
// the per-entry TTL clamp-and-decrement — every entry's ttl is clamped to
// min(loaded_ttl, default_ttl) and then decremented by one — and collects
// the results, which Load then installs in the map.
func decodeEntries(body []byte, hashSize int, defaultTTL uint16) ([]mapEntry, error) {
	r := bytes.NewReader(body)
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}

	decoded := make(chan mapEntry, 256)
	result := make([]mapEntry, 0, count)

	var g errgroup.Group
	g.Go(func() error {
		q := NewLinkedListQueue[mapEntry]()
		for me := range decoded {
			q.Push(me)
		}
		for !q.IsEmpty() {
			me := q.Pop()
			ttl := me.entry.TTL
			if ttl > defaultTTL {
				ttl = defaultTTL
			}
			if ttl > 0 {
				ttl--
			}
			me.entry.TTL = ttl
			result = append(result, me)
		}
		return nil
	})

	var decodeErr error
	for i := uint32(0); i < count; i++ {
		me, err := readEntry(r, hashSize)
		if err != nil {
			decodeErr = err
			break
		}
		decoded <- me
	}
	close(decoded)
	_ = g.Wait()

	if decodeErr != nil {
		return nil, decodeErr
	}
	return result, nil
}

// LoadOrCreate never fails: it loads path if possible, otherwise returns a
// fresh empty table.
func LoadOrCreate(path string, defaultTTL uint16, opts ...Option) *Table {
	if t, ok := Load(path, defaultTTL, opts...); ok {
		return t
	}
	return newBase(defaultTTL, opts)
}

// CreateFrom copies existing's live entries into a new table with one TTL
// decrement applied, the same clamp-and-decrement Load performs, without
// touching disk — useful for simulating a persist round-trip in tests or
// diagnostics. If newDefaultTTL is nil, existing's default TTL is kept.
func CreateFrom(existing *Table, newDefaultTTL *uint16, opts ...Option) *Table {
	ttl := existing.defaultTTL
	if newDefaultTTL != nil {
		ttl = *newDefaultTTL
	}
	t := newBase(ttl, opts)
	t.isStub = existing.isStub
	t.hashAlgoName, t.hashSize = existing.hashAlgoName, existing.hashSize

	var entries []mapEntry
	existing.m.Range(func(id identity.ID, e Entry) bool {
		clamped := e
		if clamped.TTL > ttl {
			clamped.TTL = ttl
		}
		if clamped.TTL > 0 {
			clamped.TTL--
		}
		if clamped.TTL > 0 || e.TTL > 0 {
			entries = append(entries, mapEntry{id: id, entry: clamped.clone()})
		}
		return true
	})
	t.m.replaceAll(entries)
	return t
}
