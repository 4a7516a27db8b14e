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
	"context"

	"github.com/tsurugidb/tsurugi-go/tgerr"
	"github.com/tsurugidb/tsurugi-go/wire"
)

// chunkReader turns a wire.DataChannel's Pull/ReadU8/ReadAll trio
// into an ordinary byte-at-a-time or byte-run reader, buffering
// whatever a single ReadAll over-fetched so later reads aren't
// forced to match DataChannel's arrival boundaries.
type chunkReader struct {
	ctx context.Context
	dc  *wire.DataChannel
	buf []byte
}

func newChunkReader(ctx context.Context, dc *wire.DataChannel) *chunkReader {
	return &chunkReader{ctx: ctx, dc: dc}
}

func (r *chunkReader) fill() error {
	if len(r.buf) > 0 {
		return nil
	}
	for {
		if chunk := r.dc.ReadAll(); len(chunk) > 0 {
			r.buf = chunk
			return nil
		}
		ok, err := r.dc.Pull(r.ctx)
		if err != nil {
			return err
		}
		if !ok {
			return tgerr.ErrBrokenRelation
		}
	}
}

func (r *chunkReader) readByte() (byte, error) {
	if err := r.fill(); err != nil {
		return 0, err
	}
	b := r.buf[0]
	r.buf = r.buf[1:]
	return b, nil
}

func (r *chunkReader) readN(n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		if err := r.fill(); err != nil {
			return nil, err
		}
		need := n - len(out)
		take := len(r.buf)
		if take > need {
			take = need
		}
		out = append(out, r.buf[:take]...)
		r.buf = r.buf[take:]
	}
	return out, nil
}

// readLength interprets a tag's low nibble as either the length
// itself (lo <= maxInlineLength) or a marker that the real length
// follows as an unsigned LEB128 varint (lo == lengthExtended).
func (r *chunkReader) readLength(lo byte) (int, error) {
	if lo <= maxInlineLength {
		return int(lo), nil
	}
	var v uint64
	var shift uint
	for {
		b, err := r.readByte()
		if err != nil {
			return 0, err
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
		if shift >= 64 {
			return 0, tgerr.ErrBrokenEncoding
		}
	}
	return int(v), nil
}
