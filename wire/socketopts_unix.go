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

//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package wire

import (
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// socketBufferBytes sizes the kernel socket buffers generously
// enough to hold several in-flight result-set fragments without
// blocking the sender; this is not exposed by the portable net.Conn
// API, so it is set directly via SetsockoptInt on the raw file
// descriptor, in the same SyscallConn-based style the teacher uses
// to reach past net.Conn for low-level socket access (see
// usock.Fd in the teacher's usock package, which extracts the raw fd
// from an io.Closer via the identical sysconn/SyscallConn interface
// assertion).
const socketBufferBytes = 1 << 20

// tuneSocket applies the portable keepalive/no-delay settings
// through net.TCPConn directly, then reaches past it via
// SyscallConn for the one tunable (socket buffer size) the portable
// API doesn't expose. Best-effort throughout: any failure here is
// silently ignored, since a link that works without these tunables
// is still correct, just potentially slower under load.
func tuneSocket(conn net.Conn, keepAlive time.Duration) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	tc.SetNoDelay(true)
	if keepAlive > 0 {
		tc.SetKeepAlive(true)
		tc.SetKeepAlivePeriod(keepAlive)
	}
	raw, err := tc.SyscallConn()
	if err != nil {
		return
	}
	raw.Control(func(fd uintptr) {
		unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, socketBufferBytes)
		unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, socketBufferBytes)
	})
}
