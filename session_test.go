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
	"context"
	"testing"
	"time"

	"github.com/tsurugidb/tsurugi-go/proto"
	"github.com/tsurugidb/tsurugi-go/wire"
)

// This package's tests dial through wire.Connect, which requires a
// real net.Listener rather than the net.Pipe-based wiretest helper
// (that helper hands back a raw client-side Link, bypassing the
// endpoint resolution wire.Connect itself performs). A local TCP
// listener driven by a goroutine plays the fake server instead.

func startFakeServer(t *testing.T, handle func(conn *fakeConn)) string {
	t.Helper()
	ln, err := newLocalListener()
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		handle(&fakeConn{Conn: c})
	}()
	return ln.Addr().String()
}

func TestConnectHandshakeAndShutdown(t *testing.T) {
	addr := startFakeServer(t, func(conn *fakeConn) {
		defer conn.Close()
		req, err := conn.readRequest()
		if err != nil {
			return
		}
		var dst []byte
		dst = proto.AppendVarintField(dst, 1, 11) // session id
		conn.writeResponse(wire.InfoResponseSessionPayload, req.slot, okResponse(dst))

		req, err = conn.readRequest()
		if err != nil {
			return
		}
		conn.writeResponse(wire.InfoResponseSessionPayload, req.slot, okResponse(nil))
	})

	sess, err := Connect(context.Background(), NewConnectionOptions("tcp://"+addr))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if sess.ID() != 11 {
		t.Fatalf("ID() = %d, want 11", sess.ID())
	}
	if err := sess.Shutdown(context.Background(), Graceful); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	// Idempotent.
	if err := sess.Shutdown(context.Background(), Graceful); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}

func TestConnectKeepAlive(t *testing.T) {
	pinged := make(chan struct{}, 1)
	addr := startFakeServer(t, func(conn *fakeConn) {
		defer conn.Close()
		req, err := conn.readRequest()
		if err != nil {
			return
		}
		var dst []byte
		dst = proto.AppendVarintField(dst, 1, 22)
		conn.writeResponse(wire.InfoResponseSessionPayload, req.slot, okResponse(dst))

		req, err = conn.readRequest()
		if err != nil {
			return
		}
		select {
		case pinged <- struct{}{}:
		default:
		}
		conn.writeResponse(wire.InfoResponseSessionPayload, req.slot, okResponse(nil))

		for {
			req, err = conn.readRequest()
			if err != nil {
				return
			}
			conn.writeResponse(wire.InfoResponseSessionPayload, req.slot, okResponse(nil))
		}
	})

	opts := NewConnectionOptions("tcp://" + addr)
	opts.KeepAliveInterval = 10 * time.Millisecond
	sess, err := Connect(context.Background(), opts)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer sess.Shutdown(context.Background(), Forceful)

	select {
	case <-pinged:
	case <-time.After(time.Second):
		t.Fatal("keep-alive never sent UpdateExpirationTime")
	}
}
