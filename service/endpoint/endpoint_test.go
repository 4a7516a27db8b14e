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

package endpoint

import (
	"context"
	"testing"
	"time"

	"github.com/tsurugidb/tsurugi-go/proto"
	"github.com/tsurugidb/tsurugi-go/wire"
	"github.com/tsurugidb/tsurugi-go/wire/wiretest"
)

func newTestClient(t *testing.T) (*Client, *wiretest.FakeServer) {
	t.Helper()
	link, serverConn := wiretest.Pipe()
	w := wire.Open(link)
	t.Cleanup(func() { w.Close() })
	srv := wiretest.NewFakeServer(serverConn)
	t.Cleanup(func() { srv.Close() })
	return New(w, time.Second, nil), srv
}

func okResponse(body []byte) []byte {
	hdr := proto.MarshalFrameworkResponseHeader(proto.FrameworkResponseHeader{
		PayloadType: proto.PayloadTypeServiceResult,
	})
	return append(hdr, body...)
}

func handshakeResponseBody(sessionID, minor uint64) []byte {
	var dst []byte
	dst = proto.AppendVarintField(dst, respFieldSessionID, sessionID)
	dst = proto.AppendVarintField(dst, respFieldServiceMessageVersion, minor)
	return dst
}

func TestClientHandshake(t *testing.T) {
	c, srv := newTestClient(t)

	go func() {
		req, err := srv.ReadRequest()
		if err != nil {
			return
		}
		srv.WriteResponse(wire.InfoResponseSessionPayload, req.Slot,
			okResponse(handshakeResponseBody(7, 0)))
	}()

	resp, err := c.Handshake(context.Background(), HandshakeRequest{
		ApplicationName: "test-app",
		SessionLabel:    "label-1",
	})
	if err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	if resp.SessionID != 7 {
		t.Errorf("SessionID = %d, want 7", resp.SessionID)
	}
}

func TestClientHandshakeWithTimeoutExpires(t *testing.T) {
	c, _ := newTestClient(t)
	// No fake server response is ever sent, so the call must time out.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.HandshakeWithTimeout(ctx, HandshakeRequest{ApplicationName: "x"}, 20*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
}

func TestClientHandshakeAsync(t *testing.T) {
	c, srv := newTestClient(t)

	go func() {
		req, err := srv.ReadRequest()
		if err != nil {
			return
		}
		srv.WriteResponse(wire.InfoResponseSessionPayload, req.Slot,
			okResponse(handshakeResponseBody(99, 0)))
	}()

	j, err := c.HandshakeAsync(HandshakeRequest{ApplicationName: "async-app"})
	if err != nil {
		t.Fatalf("HandshakeAsync: %v", err)
	}
	defer j.Close(context.Background())

	resp, err := j.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if resp.SessionID != 99 {
		t.Errorf("SessionID = %d, want 99", resp.SessionID)
	}
}

func TestHandshakeRequestMarshalRoundTrip(t *testing.T) {
	req := HandshakeRequest{ApplicationName: "app", SessionLabel: "label"}
	body := req.marshal()

	num, typ, n := proto.ConsumeTag(body)
	if num != reqFieldApplicationName {
		t.Fatalf("first field = %d, want %d", num, reqFieldApplicationName)
	}
	body = body[n:]
	name, body, err := proto.ConsumeBytesField(body, typ)
	if err != nil || string(name) != "app" {
		t.Fatalf("ApplicationName: got %q, err %v", name, err)
	}

	num, typ, n = proto.ConsumeTag(body)
	if num != reqFieldSessionLabel {
		t.Fatalf("second field = %d, want %d", num, reqFieldSessionLabel)
	}
	body = body[n:]
	label, _, err := proto.ConsumeBytesField(body, typ)
	if err != nil || string(label) != "label" {
		t.Fatalf("SessionLabel: got %q, err %v", label, err)
	}
}
