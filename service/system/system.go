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

// Package system implements the system service: a single read-only
// request that identifies the server a session is talking to.
package system

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
	infoRespFieldName    protowire.Number = 1
	infoRespFieldVersion protowire.Number = 2
)

// cmdServerInfo is the command discriminator for the one request this
// service ever sends.
const cmdServerInfo protowire.Number = 1

// ServerInfo identifies the server a session is connected to.
type ServerInfo struct {
	Name    string
	Version string
}

// Client is the thin facade over Wire for the system service.
type Client struct {
	wire           *wire.Wire
	sessionID      uint64
	defaultTimeout time.Duration
	logger         *log.Logger
}

// New returns a system Client bound to sessionID, issuing requests over w.
func New(w *wire.Wire, sessionID uint64, defaultTimeout time.Duration, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{wire: w, sessionID: sessionID, defaultTimeout: defaultTimeout, logger: logger}
}

func (c *Client) call(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return c.wire.SendAndWait(ctx, proto.BuildRequest(proto.ServiceIDSystem, c.sessionID, cmdServerInfo, nil))
}

func unmarshalServerInfo(body []byte) (ServerInfo, error) {
	var info ServerInfo
	for len(body) > 0 {
		num, typ, n := proto.ConsumeTag(body)
		if n < 0 {
			return ServerInfo{}, tgerr.ErrInvalidResponse
		}
		body = body[n:]
		var err error
		switch num {
		case infoRespFieldName:
			var b []byte
			b, body, err = proto.ConsumeBytesField(body, typ)
			info.Name = string(b)
		case infoRespFieldVersion:
			var b []byte
			b, body, err = proto.ConsumeBytesField(body, typ)
			info.Version = string(b)
		default:
			body, err = proto.SkipField(body, typ)
		}
		if err != nil {
			return ServerInfo{}, tgerr.ClientWrap(err, "system: decoding server info response")
		}
	}
	return info, nil
}

// ServerInfo retrieves the connected server's name and version, using
// the client's default timeout.
func (c *Client) ServerInfo(ctx context.Context) (ServerInfo, error) {
	return c.ServerInfoWithTimeout(ctx, c.defaultTimeout)
}

// ServerInfoWithTimeout is ServerInfo with an explicit timeout.
func (c *Client) ServerInfoWithTimeout(ctx context.Context, timeout time.Duration) (ServerInfo, error) {
	raw, err := c.call(ctx, timeout)
	if err != nil {
		return ServerInfo{}, err
	}
	return unmarshalServerInfo(raw)
}

// ServerInfoAsync requests the server info without waiting for the response.
func (c *Client) ServerInfoAsync() (*job.Job[ServerInfo], error) {
	h, err := c.wire.SendAsync(proto.BuildRequest(proto.ServiceIDSystem, c.sessionID, cmdServerInfo, nil))
	if err != nil {
		return nil, err
	}
	return job.New[ServerInfo](c.wire, h, unmarshalServerInfo, c.logger), nil
}
