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

// Package sql implements the SQL service: transactions, prepared
// statements, execute/query, explain, table metadata, and BLOB/CLOB
// reads. It is by far the largest service facade, but follows the
// same three-form (blocking-default, blocking-explicit, async Job)
// pattern as endpoint and core.
package sql

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

// Command discriminators: the field number each request's body is
// nested under. Several operations share an identical body shape
// (Commit/Rollback/DisposeTransaction/ListTables all send a bare
// transaction id; Execute/Query/Explain all send the same
// {txID, handle, params} triple) and rely entirely on this field
// number for a server to route them correctly.
const (
	cmdStartTransaction         protowire.Number = 1
	cmdCommit                   protowire.Number = 2
	cmdRollback                 protowire.Number = 3
	cmdDisposeTransaction       protowire.Number = 4
	cmdPrepare                  protowire.Number = 5
	cmdDisposePreparedStatement protowire.Number = 6
	cmdExecute                  protowire.Number = 7
	cmdQuery                    protowire.Number = 8
	cmdExplain                  protowire.Number = 9
	cmdListTables               protowire.Number = 10
	cmdTableMetadata            protowire.Number = 11
	cmdReadLOB                  protowire.Number = 12
)

// Client is the thin facade over Wire for the SQL service.
type Client struct {
	wire           *wire.Wire
	sessionID      uint64
	defaultTimeout time.Duration
	logger         *log.Logger
}

// New returns a sql Client bound to sessionID, issuing requests over w.
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
	return c.wire.SendAndWait(ctx, proto.BuildRequest(proto.ServiceIDSQL, c.sessionID, command, body))
}

// sendAsync wraps Wire.SendAsync with the response conversion every
// async SQL operation needs; a free function because Go methods
// cannot carry their own type parameters.
func sendAsync[T any](c *Client, command protowire.Number, body []byte, convert func([]byte) (T, error)) (*job.Job[T], error) {
	h, err := c.wire.SendAsync(proto.BuildRequest(proto.ServiceIDSQL, c.sessionID, command, body))
	if err != nil {
		return nil, err
	}
	return job.New[T](c.wire, h, convert, c.logger), nil
}

func decodeTagErr(n int) error {
	if n < 0 {
		return tgerr.ErrInvalidResponse
	}
	return nil
}
