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

// Package tsurugi is the client library's entry point: Connect
// dials a Tsurugi server, performs the handshake, and returns a
// Session exposing the SQL, Core, and System service facades over the
// session it obtained.
package tsurugi

import (
	"bytes"
	"context"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/tsurugidb/tsurugi-go/credential"
	"github.com/tsurugidb/tsurugi-go/service/core"
	"github.com/tsurugidb/tsurugi-go/service/endpoint"
	"github.com/tsurugidb/tsurugi-go/service/sql"
	"github.com/tsurugidb/tsurugi-go/service/system"
	"github.com/tsurugidb/tsurugi-go/tgerr"
	"github.com/tsurugidb/tsurugi-go/value"
	"github.com/tsurugidb/tsurugi-go/wire"
)

// Session owns a Wire and the service facades layered over it. A
// Session is obtained by Connect and must eventually be disposed of
// with Shutdown; a Session dropped without one performs a best-effort
// forceful shutdown in the background.
type Session struct {
	wire   *wire.Wire
	sql    *sql.Client
	core   *core.Client
	system *system.Client
	logger *log.Logger

	id             uint64
	protocolMinor  uint64
	defaultTimeout time.Duration

	lobSpool *value.LOBSpool

	mu       sync.Mutex
	closed   bool
	stopKeep chan struct{}
}

// Logger is the package-wide diagnostic sink every Session and its
// service clients log to; following the teacher's convention of a
// small log.Logger-based diagnostic sink rather than a structured
// logging library.
var Logger = log.Default()

// Connect dials opts.Endpoint, opens a Wire over it, and performs the
// handshake, returning a ready Session. If opts.KeepAliveInterval is
// non-zero, a background task periodically extends the session's
// validity period.
func Connect(ctx context.Context, opts ConnectionOptions) (*Session, error) {
	link, err := wire.Connect(opts.Endpoint, wire.Options{
		SendTimeout: opts.SendTimeout,
	})
	if err != nil {
		return nil, err
	}
	w := wire.Open(link)

	ep := endpoint.New(w, opts.RecvTimeout, Logger)
	resp, err := ep.Handshake(ctx, endpoint.HandshakeRequest{
		ApplicationName: opts.ApplicationName,
		SessionLabel:    opts.SessionLabel,
	})
	if err != nil {
		w.Close()
		return nil, err
	}

	s := &Session{
		wire:          w,
		id:            resp.SessionID,
		protocolMinor: resp.ProtocolMinor,
		logger:        Logger,
		core:          core.New(w, resp.SessionID, opts.DefaultTimeout, Logger),
		sql:           sql.New(w, resp.SessionID, opts.DefaultTimeout, Logger),
		system:        system.New(w, resp.SessionID, opts.DefaultTimeout, Logger),
	}
	s.defaultTimeout = opts.DefaultTimeout
	if opts.LargeObjectReceivePath != "" {
		spool, err := value.NewLOBSpool(opts.LargeObjectReceivePath, credential.DefaultLOBShards,
			credential.LobShardFunc(credential.DefaultLOBShards), true)
		if err != nil {
			w.Close()
			return nil, err
		}
		s.lobSpool = spool
	}

	runtime.SetFinalizer(s, finalizeSession)

	if opts.KeepAliveInterval > 0 {
		s.startKeepAlive(opts.ValidityPeriod, opts.KeepAliveInterval)
	}
	return s, nil
}

// ReadLOBToFile fetches the BLOB/CLOB ref points to within tx and
// spools it to the large-object receive path configured on
// ConnectionOptions, returning the local path the caller can read it
// from. It requires WithLargeObjectReceivePath to have been set.
func (s *Session) ReadLOBToFile(ctx context.Context, tx *sql.Transaction, ref value.LobReference) (string, error) {
	if s.lobSpool == nil {
		return "", tgerr.Client("session %d: no large-object receive path configured", s.id)
	}
	data, err := s.sql.ReadLOB(ctx, tx, ref)
	if err != nil {
		return "", err
	}
	return s.lobSpool.Store(ref, bytes.NewReader(data))
}

// ID returns the server-assigned session id set during the handshake.
func (s *Session) ID() uint64 { return s.id }

// ProtocolMinor returns the service message protocol minor version
// the server agreed to during the handshake.
func (s *Session) ProtocolMinor() uint64 { return s.protocolMinor }

// SQL returns the SQL service facade for this session.
func (s *Session) SQL() *sql.Client { return s.sql }

// System returns the system service facade for this session.
func (s *Session) System() *system.Client { return s.system }

func (s *Session) startKeepAlive(period, interval time.Duration) {
	s.stopKeep = make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopKeep:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				if err := s.core.UpdateExpirationTime(ctx, period); err != nil {
					s.logger.Printf("session %d: keep-alive failed: %v", s.id, err)
				}
				cancel()
			}
		}
	}()
}

func (s *Session) stopKeepAliveLocked() {
	if s.stopKeep != nil {
		close(s.stopKeep)
		s.stopKeep = nil
	}
}

// Shutdown requests termination of kind using the client's default
// timeout, stopping the keep-alive task first. It is idempotent.
func (s *Session) Shutdown(ctx context.Context, kind ShutdownType) error {
	return s.ShutdownWithTimeout(ctx, kind, s.defaultTimeout)
}

// ShutdownWithTimeout is Shutdown with an explicit timeout.
func (s *Session) ShutdownWithTimeout(ctx context.Context, kind ShutdownType, timeout time.Duration) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.stopKeepAliveLocked()
	if s.lobSpool != nil {
		s.lobSpool.Close()
	}
	s.mu.Unlock()

	runtime.SetFinalizer(s, nil)
	return s.core.ShutdownWithTimeout(ctx, kind, timeout)
}

func finalizeSession(s *Session) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopKeepAliveLocked()
	if s.lobSpool != nil {
		s.lobSpool.Close()
	}
	s.mu.Unlock()
	go func() {
		if err := s.core.ShutdownWithTimeout(context.Background(), Forceful, 0); err != nil {
			s.logger.Printf("session %d: dropped without Shutdown, best-effort close failed: %v", s.id, err)
		}
	}()
}
