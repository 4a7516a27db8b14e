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

// Package core implements the core service: the two session-lifecycle
// requests that flow over an already-established session id —
// UpdateExpirationTime (the keep-alive ping) and Shutdown (graceful or
// forceful termination). Both are thin wrappers over Wire; neither
// produces a result set.
package core

import (
	"context"
	"log"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/tsurugidb/tsurugi-go/job"
	"github.com/tsurugidb/tsurugi-go/proto"
	"github.com/tsurugidb/tsurugi-go/wire"
)

const (
	updateExpirationReqFieldPeriod protowire.Number = 1
)

const (
	shutdownReqFieldType protowire.Number = 1
)

// Command discriminators: the field number each request's body is
// nested under, letting a server tell apart requests that would
// otherwise serialize identically (both UpdateExpirationTime and
// Shutdown are a single field-1 varint).
const (
	cmdUpdateExpirationTime protowire.Number = 1
	cmdShutdown             protowire.Number = 2
)

// ShutdownType selects how Shutdown asks the server to terminate the
// session: Graceful waits for in-flight requests to finish first,
// Forceful abandons them immediately.
type ShutdownType int

const (
	Graceful ShutdownType = iota
	Forceful
)

func (t ShutdownType) String() string {
	if t == Forceful {
		return "FORCEFUL"
	}
	return "GRACEFUL"
}

// Client is the thin facade over Wire for the core service.
type Client struct {
	wire           *wire.Wire
	sessionID      uint64
	defaultTimeout time.Duration
	logger         *log.Logger
}

// New returns a core Client bound to sessionID, issuing requests over w.
func New(w *wire.Wire, sessionID uint64, defaultTimeout time.Duration, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{wire: w, sessionID: sessionID, defaultTimeout: defaultTimeout, logger: logger}
}

func (c *Client) call(ctx context.Context, timeout time.Duration, command protowire.Number, body []byte) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return c.wire.SendAndWait(ctx, proto.BuildRequest(proto.ServiceIDCore, c.sessionID, command, body))
}

func marshalUpdateExpirationTime(period time.Duration) []byte {
	var dst []byte
	return proto.AppendVarintField(dst, updateExpirationReqFieldPeriod, uint64(period.Seconds()))
}

// UpdateExpirationTime asks the server to extend the session's
// validity period by period, using the client's default timeout. A
// keep-alive task calls this periodically to stop the server from
// expiring an idle session.
func (c *Client) UpdateExpirationTime(ctx context.Context, period time.Duration) error {
	return c.UpdateExpirationTimeWithTimeout(ctx, period, c.defaultTimeout)
}

// UpdateExpirationTimeWithTimeout is UpdateExpirationTime with an
// explicit timeout (0 disables the deadline, relying only on ctx).
func (c *Client) UpdateExpirationTimeWithTimeout(ctx context.Context, period time.Duration, timeout time.Duration) error {
	_, err := c.call(ctx, timeout, cmdUpdateExpirationTime, marshalUpdateExpirationTime(period))
	return err
}

// UpdateExpirationTimeAsync sends the keep-alive request and returns a
// Job without waiting for the acknowledgement.
func (c *Client) UpdateExpirationTimeAsync(period time.Duration) (*job.Job[struct{}], error) {
	h, err := c.wire.SendAsync(proto.BuildRequest(proto.ServiceIDCore, c.sessionID, cmdUpdateExpirationTime, marshalUpdateExpirationTime(period)))
	if err != nil {
		return nil, err
	}
	return job.New[struct{}](c.wire, h, ignoreBody, c.logger), nil
}

func marshalShutdown(kind ShutdownType) []byte {
	var dst []byte
	return proto.AppendVarintField(dst, shutdownReqFieldType, uint64(kind))
}

// Shutdown requests termination of kind using the client's default
// timeout, then closes the underlying wire once the server
// acknowledges (or the request fails outright).
func (c *Client) Shutdown(ctx context.Context, kind ShutdownType) error {
	return c.ShutdownWithTimeout(ctx, kind, c.defaultTimeout)
}

// ShutdownWithTimeout is Shutdown with an explicit timeout.
func (c *Client) ShutdownWithTimeout(ctx context.Context, kind ShutdownType, timeout time.Duration) error {
	_, err := c.call(ctx, timeout, cmdShutdown, marshalShutdown(kind))
	closeErr := c.wire.Close()
	if err != nil {
		return err
	}
	return closeErr
}

// ShutdownAsync sends the shutdown request and returns a Job. The
// wire is closed when the Job settles with the server's
// acknowledgement (on Wait, IsDone, Take or TakeIfReady); if the
// request fails, the Job reports the error and the wire stays open.
func (c *Client) ShutdownAsync(kind ShutdownType) (*job.Job[struct{}], error) {
	h, err := c.wire.SendAsync(proto.BuildRequest(proto.ServiceIDCore, c.sessionID, cmdShutdown, marshalShutdown(kind)))
	if err != nil {
		return nil, err
	}
	w := c.wire
	convert := func(body []byte) (struct{}, error) {
		_, err := ignoreBody(body)
		if closeErr := w.Close(); err == nil {
			err = closeErr
		}
		return struct{}{}, err
	}
	return job.New[struct{}](c.wire, h, convert, c.logger), nil
}

func ignoreBody(_ []byte) (struct{}, error) {
	return struct{}{}, nil
}
