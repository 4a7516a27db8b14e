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
	"errors"
	"io"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tsurugidb/tsurugi-go/tgerr"
)

// Link is a bidirectional framed message channel. The concrete
// transport in scope is a single TCP connection (TCPLink); the
// interface exists so higher layers (Wire) don't hard-code that
// choice, and so tests can substitute an in-memory pipe.
//
// A Link implementation may optionally implement ResultSetRegistrar if it
// needs to be told about result-set acknowledgements out of band;
// TCPLink does not need this (acknowledgements are ordinary
// header-only frames), but the capability-interface split keeps the
// door open for a future transport that does, without reopening a
// closed enum of transport kinds (see spec section 9, "Downcast in
// a multi-transport enum").
type Link interface {
	// Send emits one REQUEST_SESSION_PAYLOAD frame carrying payload.
	Send(slot Slot, payload []byte) error
	// SendHeaderOnly emits a 3-byte header with no payload.
	SendHeaderOnly(info Info, slot Slot) error
	// Recv reads the next frame. A nil Message with a nil error
	// means no frame was read: the read lock is contended by
	// another caller, the link has been closed, or the peer closed
	// the connection cleanly (after which Broken reports true).
	// Wire's pump tells these apart through Broken and its own
	// closed state.
	Recv() (*Message, error)
	// Close idempotently tears down the link.
	Close() error
	// Broken reports whether a prior I/O failure poisoned the link.
	Broken() bool
}

// ResultSetRegistrar is an optional capability a Link implementation may
// implement to learn about data-channel lifecycle events out of
// band. TCPLink does not implement it.
type ResultSetRegistrar interface {
	RegisterResultSet(name string, slot Slot)
}

// Options configures how a TCPLink is dialed and tuned.
type Options struct {
	// DialTimeout bounds the TCP handshake. Zero means no deadline.
	DialTimeout time.Duration
	// SendTimeout, if non-zero, bounds every individual Send call.
	SendTimeout time.Duration
	// KeepAliveInterval configures TCP-level keepalives; zero
	// disables them.
	KeepAliveInterval time.Duration
}

// TCPLink is the sole concrete Link in scope: a length-prefixed
// framing protocol over one net.TCPConn, with the write half guarded
// by a plain mutex and the read half guarded by a try-lock so a
// contended Recv returns immediately instead of blocking a second
// caller (see spec section 4.1).
type TCPLink struct {
	conn net.Conn

	sendTimeout time.Duration

	writeMu sync.Mutex
	readMu  sync.Mutex

	closed atomic.Bool
	broken atomic.Bool
}

// Connect dials endpoint (which must be of the form "tcp://host:port")
// and returns a ready TCPLink.
func Connect(endpoint string, opts Options) (*TCPLink, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, tgerr.Client("invalid endpoint %q: %v", endpoint, err)
	}
	if u.Scheme != "tcp" {
		return nil, tgerr.Client("unsupported endpoint scheme %q (only tcp:// is implemented)", u.Scheme)
	}
	var conn net.Conn
	dialer := net.Dialer{Timeout: opts.DialTimeout}
	conn, err = dialer.Dial("tcp", u.Host)
	if err != nil {
		return nil, tgerr.IO(err, "connecting to %s", endpoint)
	}
	tuneSocket(conn, opts.KeepAliveInterval)
	return &TCPLink{conn: conn, sendTimeout: opts.SendTimeout}, nil
}

// NewTCPLink wraps an already-established connection, used by tests
// that dial through net.Pipe or a local listener.
func NewTCPLink(conn net.Conn, opts Options) *TCPLink {
	tuneSocket(conn, opts.KeepAliveInterval)
	return &TCPLink{conn: conn, sendTimeout: opts.SendTimeout}
}

func (l *TCPLink) Broken() bool { return l.broken.Load() }

func (l *TCPLink) markBroken(err error) error {
	l.broken.Store(true)
	return err
}

// Send serializes the frame header and payload into a single write
// so two concurrent senders can never interleave
// [header|payload] byte sequences.
func (l *TCPLink) Send(slot Slot, payload []byte) error {
	if l.broken.Load() {
		return tgerr.IO(nil, "link is broken")
	}
	if len(payload) > maxPayloadLength {
		return tgerr.Client("payload too large: %d bytes", len(payload))
	}
	buf := make([]byte, headerSize+len(payload))
	EncodeRequestHeader(buf, slot, len(payload))
	copy(buf[headerSize:], payload)

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if l.sendTimeout > 0 {
		l.conn.SetWriteDeadline(time.Now().Add(l.sendTimeout))
		defer l.conn.SetWriteDeadline(time.Time{})
	}
	if _, err := l.conn.Write(buf); err != nil {
		return l.markBroken(tgerr.IO(err, "writing frame for slot %d", slot))
	}
	return nil
}

// SendHeaderOnly emits a 3-byte header with no payload.
func (l *TCPLink) SendHeaderOnly(info Info, slot Slot) error {
	if l.broken.Load() {
		return tgerr.IO(nil, "link is broken")
	}
	var buf [headerOnlySize]byte
	EncodeHeaderOnly(buf[:], info, slot)

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if l.sendTimeout > 0 {
		l.conn.SetWriteDeadline(time.Now().Add(l.sendTimeout))
		defer l.conn.SetWriteDeadline(time.Time{})
	}
	if _, err := l.conn.Write(buf[:]); err != nil {
		return l.markBroken(tgerr.IO(err, "writing header-only frame (info=%s, slot=%d)", info, slot))
	}
	return nil
}

// Recv reads exactly one frame. See the Link.Recv doc comment for
// the meaning of a (nil, nil) result.
func (l *TCPLink) Recv() (*Message, error) {
	if l.broken.Load() || l.closed.Load() {
		return nil, nil
	}
	if !l.readMu.TryLock() {
		// Someone else is already inside recv(); per spec this is
		// not an error, it just means there's nothing for this
		// caller to do this tick.
		return nil, nil
	}
	defer l.readMu.Unlock()

	info, err := l.readInfoByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			l.broken.Store(true)
			return nil, nil
		}
		return nil, l.markBroken(tgerr.IO(err, "reading frame info byte"))
	}

	var slotBuf [2]byte
	if _, err := io.ReadFull(l.conn, slotBuf[:]); err != nil {
		return nil, l.markBroken(tgerr.IO(err, "reading frame slot"))
	}
	slot := Slot(leUint16(slotBuf[:]))

	var writer byte
	if info.hasWriterByte() {
		var wbuf [1]byte
		if _, err := io.ReadFull(l.conn, wbuf[:]); err != nil {
			return nil, l.markBroken(tgerr.IO(err, "reading frame writer byte"))
		}
		writer = wbuf[0]
	}

	if !info.hasLength() {
		return &Message{Info: info, Slot: slot}, nil
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(l.conn, lenBuf[:]); err != nil {
		return nil, l.markBroken(tgerr.IO(err, "reading frame length"))
	}
	length := int32(leUint32(lenBuf[:]))
	if length < 0 {
		return nil, l.markBroken(tgerr.IO(nil, "negative frame length %d", length))
	}

	var payload []byte
	if length > 0 {
		payload = make([]byte, length)
		if _, err := io.ReadFull(l.conn, payload); err != nil {
			return nil, l.markBroken(tgerr.IO(err, "reading frame payload (%d bytes)", length))
		}
	} else {
		payload = []byte{}
	}

	return &Message{Info: info, Slot: slot, Writer: writer, Payload: payload}, nil
}

func (l *TCPLink) readInfoByte() (Info, error) {
	var b [1]byte
	n, err := l.conn.Read(b[:])
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}
	return Info(b[0]), nil
}

// Close idempotently tears down the connection.
func (l *TCPLink) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	return l.conn.Close()
}

func leUint16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
