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

// Package endpoint implements the handshake service: the one
// exchange that happens before a session has an id of its own.
// Cancelling an outstanding request is a Wire-level operation
// (wire.Wire.Cancel) and doesn't need a service facade of its own.
package endpoint

import (
	"context"
	"log"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/tsurugidb/tsurugi-go/job"
	"github.com/tsurugidb/tsurugi-go/proto"
	"github.com/tsurugidb/tsurugi-go/tgerr"
	"github.com/tsurugidb/tsurugi-go/wire"
)

const (
	reqFieldApplicationName protowire.Number = 1
	reqFieldSessionLabel    protowire.Number = 2

	respFieldSessionID             protowire.Number = 1
	respFieldServiceMessageVersion protowire.Number = 2
)

// cmdHandshake is the command discriminator for the one request this
// service ever sends.
const cmdHandshake protowire.Number = 1

// HandshakeRequest carries the client information exchanged at
// connect time.
type HandshakeRequest struct {
	ApplicationName string
	SessionLabel    string
}

func (r HandshakeRequest) marshal() []byte {
	var dst []byte
	if r.ApplicationName != "" {
		dst = proto.AppendBytesField(dst, reqFieldApplicationName, []byte(r.ApplicationName))
	}
	if r.SessionLabel != "" {
		dst = proto.AppendBytesField(dst, reqFieldSessionLabel, []byte(r.SessionLabel))
	}
	return dst
}

// HandshakeResponse is the server's reply: the session id to use on
// every subsequent request, and the service message version it
// agreed to speak.
type HandshakeResponse struct {
	SessionID     uint64
	ProtocolMinor uint64
}

func unmarshalHandshakeResponse(body []byte) (HandshakeResponse, error) {
	var r HandshakeResponse
	for len(body) > 0 {
		num, typ, n := proto.ConsumeTag(body)
		if n < 0 {
			return HandshakeResponse{}, tgerr.ErrInvalidResponse
		}
		body = body[n:]
		var err error
		switch num {
		case respFieldSessionID:
			r.SessionID, body, err = proto.ConsumeVarintField(body, typ)
		case respFieldServiceMessageVersion:
			r.ProtocolMinor, body, err = proto.ConsumeVarintField(body, typ)
		default:
			body, err = proto.SkipField(body, typ)
		}
		if err != nil {
			return HandshakeResponse{}, tgerr.ClientWrap(err, "endpoint: decoding handshake response")
		}
	}
	return r, nil
}

// Client is the thin facade over Wire for the endpoint service. It
// is used exactly once per connection, before a session id exists,
// so every request it sends carries sessionID 0.
type Client struct {
	wire           *wire.Wire
	defaultTimeout time.Duration
	logger         *log.Logger
}

// New returns an endpoint Client over w.
func New(w *wire.Wire, defaultTimeout time.Duration, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{wire: w, defaultTimeout: defaultTimeout, logger: logger}
}

func (c *Client) call(ctx context.Context, timeout time.Duration, body []byte) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return c.wire.SendAndWait(ctx, proto.BuildRequest(proto.ServiceIDEndpoint, 0, cmdHandshake, body))
}

// Handshake performs the connect-time handshake using the client's
// default timeout.
func (c *Client) Handshake(ctx context.Context, req HandshakeRequest) (HandshakeResponse, error) {
	return c.HandshakeWithTimeout(ctx, req, c.defaultTimeout)
}

// HandshakeWithTimeout performs the handshake with an explicit
// timeout (0 disables the deadline, relying only on ctx).
func (c *Client) HandshakeWithTimeout(ctx context.Context, req HandshakeRequest, timeout time.Duration) (HandshakeResponse, error) {
	raw, err := c.call(ctx, timeout, req.marshal())
	if err != nil {
		return HandshakeResponse{}, err
	}
	return unmarshalHandshakeResponse(raw)
}

// HandshakeAsync sends the handshake request and returns a Job
// without waiting for the response.
func (c *Client) HandshakeAsync(req HandshakeRequest) (*job.Job[HandshakeResponse], error) {
	h, err := c.wire.SendAsync(proto.BuildRequest(proto.ServiceIDEndpoint, 0, cmdHandshake, req.marshal()))
	if err != nil {
		return nil, err
	}
	return job.New[HandshakeResponse](c.wire, h, unmarshalHandshakeResponse, c.logger), nil
}
