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

package tsurugi

import (
	"encoding/binary"
	"io"
	"net"

	"github.com/tsurugidb/tsurugi-go/proto"
	"github.com/tsurugidb/tsurugi-go/wire"
)

// fakeConn plays the server side of a real TCP connection in tests
// that must exercise wire.Connect's dialer (unlike wiretest.Pipe,
// which hands back an already-open Link and so can't stand in for a
// tcp:// endpoint).
type fakeConn struct {
	net.Conn
}

type fakeRequest struct {
	info    wire.Info
	slot    wire.Slot
	payload []byte
}

func newLocalListener() (net.Listener, error) {
	return net.Listen("tcp", "127.0.0.1:0")
}

func (c *fakeConn) readRequest() (fakeRequest, error) {
	var head [3]byte
	if _, err := io.ReadFull(c, head[:]); err != nil {
		return fakeRequest{}, err
	}
	info := wire.Info(head[0])
	slot := wire.Slot(binary.LittleEndian.Uint16(head[1:3]))
	if info != wire.InfoRequestSessionPayload {
		return fakeRequest{info: info, slot: slot}, nil
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(c, lenBuf[:]); err != nil {
		return fakeRequest{}, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(c, payload); err != nil {
			return fakeRequest{}, err
		}
	}
	return fakeRequest{info: info, slot: slot, payload: payload}, nil
}

func (c *fakeConn) writeResponse(info wire.Info, slot wire.Slot, payload []byte) error {
	buf := make([]byte, 0, wire.HeaderSize()+len(payload))
	buf = append(buf, byte(info))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(slot))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(payload)))
	buf = append(buf, payload...)
	_, err := c.Write(buf)
	return err
}

func okResponse(body []byte) []byte {
	hdr := proto.MarshalFrameworkResponseHeader(proto.FrameworkResponseHeader{
		PayloadType: proto.PayloadTypeServiceResult,
	})
	return append(hdr, body...)
}
