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

// Package wiretest gives the service/* client packages (and wire
// itself) an in-memory stand-in for a Tsurugi server: a net.Pipe-backed
// connection whose client half is a real *wire.Wire and whose server
// half is a raw net.Conn a test can read requests from and write
// hand-built response frames to. Nothing here is part of the client's
// public surface; it only ever appears in _test.go files.
package wiretest

import (
	"encoding/binary"
	"io"
	"net"

	"github.com/tsurugidb/tsurugi-go/wire"
)

// Pipe returns a client-side wire.Link backed by an in-memory
// net.Pipe, plus the raw net.Conn for the other end, which a test
// drives as FakeServer.
func Pipe() (client *wire.TCPLink, serverConn net.Conn) {
	a, b := net.Pipe()
	return wire.NewTCPLink(a, wire.Options{}), b
}

// FakeServer plays the server side of a Pipe: it decodes request
// frames a real client would send and encodes response frames in the
// same layout wire.TCPLink expects to receive, without pulling in any
// of Wire's routing logic.
type FakeServer struct {
	conn net.Conn
}

// NewFakeServer wraps the raw net.Conn returned by Pipe.
func NewFakeServer(conn net.Conn) *FakeServer {
	return &FakeServer{conn: conn}
}

// Request is one decoded request-direction frame.
type Request struct {
	Info    wire.Info
	Slot    wire.Slot
	Payload []byte // nil for header-only frames (cancel, result-set bye-ok)
}

// ReadRequest reads and decodes the next request frame.
func (s *FakeServer) ReadRequest() (Request, error) {
	var head [3]byte
	if _, err := io.ReadFull(s.conn, head[:]); err != nil {
		return Request{}, err
	}
	info := wire.Info(head[0])
	slot := wire.Slot(binary.LittleEndian.Uint16(head[1:3]))
	if info != wire.InfoRequestSessionPayload {
		return Request{Info: info, Slot: slot}, nil
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(s.conn, lenBuf[:]); err != nil {
		return Request{}, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(s.conn, payload); err != nil {
			return Request{}, err
		}
	}
	return Request{Info: info, Slot: slot, Payload: payload}, nil
}

// WriteResponse writes a RESPONSE_SESSION_PAYLOAD (or any non-result-set
// response kind) frame carrying payload.
func (s *FakeServer) WriteResponse(info wire.Info, slot wire.Slot, payload []byte) error {
	return s.write(info, slot, 0, payload)
}

// WriteResultSetFrame writes a result-set-direction frame, which
// (only for InfoResponseResultSetPayload) carries the extra writer
// byte before the length field.
func (s *FakeServer) WriteResultSetFrame(info wire.Info, slot wire.Slot, writerID byte, payload []byte) error {
	return s.write(info, slot, writerID, payload)
}

func (s *FakeServer) write(info wire.Info, slot wire.Slot, writerID byte, payload []byte) error {
	buf := make([]byte, 0, wire.HeaderSize()+1+len(payload))
	buf = append(buf, byte(info))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(slot))
	if info == wire.InfoResponseResultSetPayload {
		buf = append(buf, writerID)
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(payload)))
	buf = append(buf, payload...)
	_, err := s.conn.Write(buf)
	return err
}

// Close closes the server-side connection.
func (s *FakeServer) Close() error { return s.conn.Close() }
