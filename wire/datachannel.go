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

package wire

import (
	"context"
	"sync"

	"github.com/tsurugidb/tsurugi-go/tgerr"
)

// writerStream buffers the bytes arriving on one writer id of a
// result set. Frames can arrive in arbitrarily small fragments, so
// incoming chunks queue up until consumed; cur/pos track the chunk
// currently being read one byte (or one slice) at a time.
type writerStream struct {
	chunks [][]byte
	cur    []byte
	pos    int
	eof    bool // FlushWriter observed: no more chunks will arrive for this writer
}

func (w *writerStream) ensureCur() {
	for w.pos >= len(w.cur) && len(w.chunks) > 0 {
		w.cur = w.chunks[0]
		w.chunks = w.chunks[1:]
		w.pos = 0
	}
}

func (w *writerStream) hasUnread() bool {
	w.ensureCur()
	return w.pos < len(w.cur)
}

// DataChannel is the byte stream backing one result set. A result
// set can be produced by more than one writer (one per worker
// partition on the server side); Tsurugi's wire protocol finishes
// writers one at a time, so DataChannel exposes them to the value
// codec above it as a single concatenated stream, advancing to the
// next writer only once the current one is flushed.
type DataChannel struct {
	name string

	mu      sync.Mutex
	writers map[byte]*writerStream
	order   []byte // writer ids in first-seen order
	active  int    // index into order currently being read
	bye     bool
	byeErr  error
	sig     chan struct{} // closed and replaced on every state change, to wake Pull
}

// NewDataChannel returns an empty DataChannel for the named result
// set (the name Wire registers with CREATE_RESULT_SET / the server's
// RESPONSE_RESULT_SET_HELLO frame).
func NewDataChannel(name string) *DataChannel {
	return &DataChannel{
		name:    name,
		writers: make(map[byte]*writerStream),
		sig:     make(chan struct{}),
	}
}

// Name returns the result set name this channel was registered
// under.
func (dc *DataChannel) Name() string { return dc.name }

func (dc *DataChannel) wakeLocked() {
	close(dc.sig)
	dc.sig = make(chan struct{})
}

// AddWriterPayload appends one RESPONSE_RESULT_SET_PAYLOAD frame's
// bytes to writer's stream. Called from Wire's receive loop.
func (dc *DataChannel) AddWriterPayload(writer byte, payload []byte) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	w := dc.writerLocked(writer)
	if len(payload) > 0 {
		w.chunks = append(w.chunks, payload)
	}
	dc.wakeLocked()
}

// FlushWriter marks that writer has sent its last chunk. On the wire
// this is signaled by a RESPONSE_RESULT_SET_PAYLOAD frame with a
// zero-length payload; Wire translates that sentinel into this call
// so Pull can tell "this writer is waiting on the network" apart
// from "this writer is done, advance to the next one".
func (dc *DataChannel) FlushWriter(writer byte) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.writerLocked(writer).eof = true
	dc.wakeLocked()
}

func (dc *DataChannel) writerLocked(writer byte) *writerStream {
	w, ok := dc.writers[writer]
	if !ok {
		w = &writerStream{}
		dc.writers[writer] = w
		dc.order = append(dc.order, writer)
	}
	return w
}

// Bye marks the channel complete. err is non-nil if the link broke
// before a clean RESPONSE_RESULT_SET_BYE was observed for it.
func (dc *DataChannel) Bye(err error) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.bye = true
	dc.byeErr = err
	dc.wakeLocked()
}

// Pull blocks until the current writer has at least one unread byte,
// or until the channel has genuinely run out of data (every writer
// flushed and RESPONSE_RESULT_SET_BYE observed), or ctx is done. A
// false, nil result means end of result set; a false, non-nil result
// means the link broke before BYE arrived.
func (dc *DataChannel) Pull(ctx context.Context) (bool, error) {
	for {
		dc.mu.Lock()
		for dc.active < len(dc.order) {
			w := dc.writers[dc.order[dc.active]]
			if w.hasUnread() {
				dc.mu.Unlock()
				return true, nil
			}
			if !w.eof {
				break
			}
			dc.active++
		}
		if dc.active >= len(dc.order) && dc.bye {
			err := dc.byeErr
			dc.mu.Unlock()
			return false, err
		}
		sig := dc.sig
		dc.mu.Unlock()
		select {
		case <-sig:
		case <-ctx.Done():
			return false, tgerr.Timeout("waiting for result set %q: %v", dc.name, ctx.Err())
		}
	}
}

func (dc *DataChannel) currentWriterLocked() *writerStream {
	if dc.active >= len(dc.order) {
		return nil
	}
	return dc.writers[dc.order[dc.active]]
}

// ReadU8 returns the next unread byte from the current writer. Pull
// must have most recently returned (true, nil) for this to succeed;
// it is the low-level primitive the value codec builds its typed
// column readers on top of.
func (dc *DataChannel) ReadU8() (byte, error) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	w := dc.currentWriterLocked()
	if w == nil || !w.hasUnread() {
		return 0, tgerr.ErrInvalidResponse
	}
	b := w.cur[w.pos]
	w.pos++
	return b, nil
}

// ReadAll drains and returns every byte currently buffered for the
// active writer without blocking for more; used by the value codec
// to grab a whole already-arrived fragment at once instead of
// looping over ReadU8.
func (dc *DataChannel) ReadAll() []byte {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	w := dc.currentWriterLocked()
	if w == nil {
		return nil
	}
	var out []byte
	if w.pos < len(w.cur) {
		out = append(out, w.cur[w.pos:]...)
	}
	for _, c := range w.chunks {
		out = append(out, c...)
	}
	w.cur, w.pos, w.chunks = nil, 0, nil
	return out
}
