// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package value

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/tsurugidb/tsurugi-go/tgerr"
)

// ShardFunc maps an object name to a non-negative shard index,
// spreading a LOBSpool's files across subdirectories of its root
// instead of a single flat directory. Connect supplies
// credential.LobShardFunc here.
type ShardFunc func(name string) int

// LOBSpool resolves BLOB/CLOB references read off a ValueStream to
// local files under the large-object receive path configured on
// ConnectionOptions, optionally zstd-compressing them at rest.
// Session.ReadLOBToFile stores the bytes a BLOB or CLOB reference
// points to in a spool; the service/sql client does not use one.
type LOBSpool struct {
	root     string
	shards   int
	shardFn  ShardFunc
	compress bool

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewLOBSpool returns a LOBSpool rooted at dir. shards must be at
// least 1; shardFn chooses which of the shards subdirectories (named
// "0".."shards-1") a given object lands in, and may be nil to keep
// every object in shard 0. When compress is true, spooled payloads
// are zstd-compressed on disk and decompressed transparently on Open.
func NewLOBSpool(dir string, shards int, shardFn ShardFunc, compress bool) (*LOBSpool, error) {
	if shards < 1 {
		shards = 1
	}
	s := &LOBSpool{root: dir, shards: shards, shardFn: shardFn, compress: compress}
	if !compress {
		return s, nil
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, tgerr.IO(err, "lob spool: open zstd encoder")
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, tgerr.IO(err, "lob spool: open zstd decoder")
	}
	s.encoder, s.decoder = enc, dec
	return s, nil
}

// Close releases the spool's zstd encoder/decoder goroutines. It does
// not touch any file already written to the spool.
func (s *LOBSpool) Close() {
	if s.encoder != nil {
		s.encoder.Close()
	}
	if s.decoder != nil {
		s.decoder.Close()
	}
}

func (s *LOBSpool) shardOf(name string) int {
	if s.shardFn == nil {
		return 0
	}
	n := s.shardFn(name) % s.shards
	if n < 0 {
		n += s.shards
	}
	return n
}

func (s *LOBSpool) pathFor(ref LobReference) string {
	name := fmt.Sprintf("%x", ref.ID)
	file := name
	if s.compress {
		file += ".zst"
	}
	return filepath.Join(s.root, fmt.Sprintf("%d", s.shardOf(name)), file)
}

// Store copies r's full contents into ref's spool file, creating the
// shard directory as needed, and returns the local path a BLOB/CLOB
// read operation hands back to the caller.
func (s *LOBSpool) Store(ref LobReference, r io.Reader) (string, error) {
	path := s.pathFor(ref)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", tgerr.IO(err, "lob spool: create shard directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return "", tgerr.IO(err, "lob spool: create %s", path)
	}
	defer f.Close()

	if !s.compress {
		if _, err := io.Copy(f, r); err != nil {
			return "", tgerr.IO(err, "lob spool: write %s", path)
		}
		return path, nil
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return "", tgerr.IO(err, "lob spool: read source for %s", path)
	}
	if _, err := f.Write(s.encoder.EncodeAll(raw, nil)); err != nil {
		return "", tgerr.IO(err, "lob spool: write %s", path)
	}
	return path, nil
}

// Open returns a reader over ref's spooled contents, decompressing
// transparently if the spool was constructed with compress set.
func (s *LOBSpool) Open(ref LobReference) (io.ReadCloser, error) {
	path := s.pathFor(ref)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, tgerr.ClientWrap(err, "lob spool: no spooled object for reference")
		}
		return nil, tgerr.IO(err, "lob spool: open %s", path)
	}
	if !s.compress {
		return f, nil
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, tgerr.IO(err, "lob spool: read %s", path)
	}
	plain, err := s.decoder.DecodeAll(raw, nil)
	if err != nil {
		return nil, tgerr.ClientWrap(err, "lob spool: corrupt spooled object %s", path)
	}
	return io.NopCloser(bytes.NewReader(plain)), nil
}

// Remove deletes ref's spool file, if any. A missing file is not an
// error, matching the "best-effort cleanup" texture of the rest of
// the large-object path.
func (s *LOBSpool) Remove(ref LobReference) error {
	err := os.Remove(s.pathFor(ref))
	if err != nil && !os.IsNotExist(err) {
		return tgerr.IO(err, "lob spool: remove")
	}
	return nil
}
