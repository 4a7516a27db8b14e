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

package system

import (
	"context"
	"testing"
	"time"

	"github.com/tsurugidb/tsurugi-go/proto"
	"github.com/tsurugidb/tsurugi-go/wire"
	"github.com/tsurugidb/tsurugi-go/wire/wiretest"
)

func TestServerInfo(t *testing.T) {
	link, serverConn := wiretest.Pipe()
	w := wire.Open(link)
	t.Cleanup(func() { w.Close() })
	srv := wiretest.NewFakeServer(serverConn)
	t.Cleanup(func() { srv.Close() })

	go func() {
		req, err := srv.ReadRequest()
		if err != nil {
			return
		}
		var dst []byte
		dst = proto.AppendBytesField(dst, infoRespFieldName, []byte("tsurugi"))
		dst = proto.AppendBytesField(dst, infoRespFieldVersion, []byte("1.2.3"))
		hdr := proto.MarshalFrameworkResponseHeader(proto.FrameworkResponseHeader{
			PayloadType: proto.PayloadTypeServiceResult,
		})
		srv.WriteResponse(wire.InfoResponseSessionPayload, req.Slot, append(hdr, dst...))
	}()

	c := New(w, 3, time.Second, nil)
	info, err := c.ServerInfo(context.Background())
	if err != nil {
		t.Fatalf("ServerInfo: %v", err)
	}
	if info.Name != "tsurugi" || info.Version != "1.2.3" {
		t.Fatalf("got %+v", info)
	}
}

func TestServerInfoAsync(t *testing.T) {
	link, serverConn := wiretest.Pipe()
	w := wire.Open(link)
	t.Cleanup(func() { w.Close() })
	srv := wiretest.NewFakeServer(serverConn)
	t.Cleanup(func() { srv.Close() })

	go func() {
		req, err := srv.ReadRequest()
		if err != nil {
			return
		}
		var dst []byte
		dst = proto.AppendBytesField(dst, infoRespFieldName, []byte("tsurugi"))
		hdr := proto.MarshalFrameworkResponseHeader(proto.FrameworkResponseHeader{
			PayloadType: proto.PayloadTypeServiceResult,
		})
		srv.WriteResponse(wire.InfoResponseSessionPayload, req.Slot, append(hdr, dst...))
	}()

	c := New(w, 3, time.Second, nil)
	j, err := c.ServerInfoAsync()
	if err != nil {
		t.Fatalf("ServerInfoAsync: %v", err)
	}
	defer j.Close(context.Background())
	info, err := j.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if info.Name != "tsurugi" {
		t.Fatalf("got %+v", info)
	}
}
