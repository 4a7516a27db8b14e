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

package sql

import (
	"context"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/tsurugidb/tsurugi-go/job"
	"github.com/tsurugidb/tsurugi-go/proto"
)

const (
	execReqFieldTxID   protowire.Number = 1
	execReqFieldHandle protowire.Number = 2
	execReqFieldParam  protowire.Number = 3

	paramFieldName  protowire.Number = 1
	paramFieldValue protowire.Number = 2

	execRespFieldRowsAffected protowire.Number = 1
)

// ExecuteResult is the outcome of a statement with no result set
// (INSERT/UPDATE/DELETE/DDL).
type ExecuteResult struct {
	RowsAffected int64
}

// Parameter binds a value to one of a PreparedStatement's named
// Placeholders. Value is already tag-encoded (see value.AppendXxx).
type Parameter struct {
	Name  string
	Value []byte
}

func (p Parameter) marshal() []byte {
	var dst []byte
	dst = proto.AppendBytesField(dst, paramFieldName, []byte(p.Name))
	dst = proto.AppendBytesField(dst, paramFieldValue, p.Value)
	return dst
}

// marshalExecRequest builds the common request body shared by
// Execute, Query, and Explain: the transaction id, the prepared
// statement handle, and the name-bound parameter values. Execute,
// Query, and Explain distinguish themselves to the server only via
// their command discriminator, since this body is otherwise identical
// across all three.
func marshalExecRequest(tx *Transaction, stmt *PreparedStatement, params []Parameter) []byte {
	var dst []byte
	dst = proto.AppendVarintField(dst, execReqFieldTxID, tx.id)
	dst = proto.AppendVarintField(dst, execReqFieldHandle, stmt.handle)
	for _, p := range params {
		dst = proto.AppendMessageField(dst, execReqFieldParam, p.marshal())
	}
	return dst
}

func unmarshalExecuteResult(body []byte) (ExecuteResult, error) {
	var r ExecuteResult
	for len(body) > 0 {
		num, typ, n := proto.ConsumeTag(body)
		if err := decodeTagErr(n); err != nil {
			return ExecuteResult{}, err
		}
		body = body[n:]
		var err error
		switch num {
		case execRespFieldRowsAffected:
			var v uint64
			v, body, err = proto.ConsumeVarintField(body, typ)
			r.RowsAffected = int64(v)
		default:
			body, err = proto.SkipField(body, typ)
		}
		if err != nil {
			return ExecuteResult{}, err
		}
	}
	return r, nil
}

// Execute runs stmt within tx with params, using the client's default
// timeout. It does not produce a result set; use Query for that.
func (c *Client) Execute(ctx context.Context, tx *Transaction, stmt *PreparedStatement, params []Parameter) (ExecuteResult, error) {
	return c.ExecuteWithTimeout(ctx, tx, stmt, params, c.defaultTimeout)
}

// ExecuteWithTimeout is Execute with an explicit timeout.
func (c *Client) ExecuteWithTimeout(ctx context.Context, tx *Transaction, stmt *PreparedStatement, params []Parameter, timeout time.Duration) (ExecuteResult, error) {
	raw, err := c.call(ctx, timeout, cmdExecute, marshalExecRequest(tx, stmt, params))
	if err != nil {
		return ExecuteResult{}, err
	}
	return unmarshalExecuteResult(raw)
}

// ExecuteAsync runs stmt within tx without waiting for the response.
func (c *Client) ExecuteAsync(tx *Transaction, stmt *PreparedStatement, params []Parameter) (*job.Job[ExecuteResult], error) {
	return sendAsync(c, cmdExecute, marshalExecRequest(tx, stmt, params), unmarshalExecuteResult)
}
