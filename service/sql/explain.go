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
	explainRespFieldPlan protowire.Number = 1
)

func unmarshalExplain(body []byte) (string, error) {
	var plan string
	for len(body) > 0 {
		num, typ, n := proto.ConsumeTag(body)
		if err := decodeTagErr(n); err != nil {
			return "", err
		}
		body = body[n:]
		var err error
		switch num {
		case explainRespFieldPlan:
			var b []byte
			b, body, err = proto.ConsumeBytesField(body, typ)
			plan = string(b)
		default:
			body, err = proto.SkipField(body, typ)
		}
		if err != nil {
			return "", err
		}
	}
	return plan, nil
}

// Explain returns stmt's execution plan as server-formatted text,
// using the client's default timeout.
func (c *Client) Explain(ctx context.Context, tx *Transaction, stmt *PreparedStatement, params []Parameter) (string, error) {
	return c.ExplainWithTimeout(ctx, tx, stmt, params, c.defaultTimeout)
}

// ExplainWithTimeout is Explain with an explicit timeout.
func (c *Client) ExplainWithTimeout(ctx context.Context, tx *Transaction, stmt *PreparedStatement, params []Parameter, timeout time.Duration) (string, error) {
	raw, err := c.call(ctx, timeout, cmdExplain, marshalExecRequest(tx, stmt, params))
	if err != nil {
		return "", err
	}
	return unmarshalExplain(raw)
}

// ExplainAsync requests the plan without waiting for the response.
func (c *Client) ExplainAsync(tx *Transaction, stmt *PreparedStatement, params []Parameter) (*job.Job[string], error) {
	return sendAsync(c, cmdExplain, marshalExecRequest(tx, stmt, params), unmarshalExplain)
}
