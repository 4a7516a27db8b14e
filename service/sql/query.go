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
	"github.com/tsurugidb/tsurugi-go/value"
)

const (
	queryRespFieldResultSetName protowire.Number = 1
	queryRespFieldColumnCount   protowire.Number = 2
)

// QueryResult wraps the ValueStream for a query's result set, plus
// the resources (the bound DataChannel's name) needed to describe it.
type QueryResult struct {
	Name        string
	ColumnCount int
	Stream      *value.ValueStream
}

type queryResponse struct {
	name        string
	columnCount int
}

func unmarshalQueryResponse(body []byte) (queryResponse, error) {
	var r queryResponse
	for len(body) > 0 {
		num, typ, n := proto.ConsumeTag(body)
		if err := decodeTagErr(n); err != nil {
			return queryResponse{}, err
		}
		body = body[n:]
		var err error
		switch num {
		case queryRespFieldResultSetName:
			var name []byte
			name, body, err = proto.ConsumeBytesField(body, typ)
			r.name = string(name)
		case queryRespFieldColumnCount:
			var v uint64
			v, body, err = proto.ConsumeVarintField(body, typ)
			r.columnCount = int(v)
		default:
			body, err = proto.SkipField(body, typ)
		}
		if err != nil {
			return queryResponse{}, err
		}
	}
	return r, nil
}

func (c *Client) newQueryResult(ctx context.Context, r queryResponse) *QueryResult {
	dc := c.wire.CreateDataChannel(r.name)
	return &QueryResult{
		Name:        r.name,
		ColumnCount: r.columnCount,
		Stream:      value.NewValueStream(ctx, dc, r.columnCount),
	}
}

// Query runs stmt within tx with params and returns a QueryResult
// streaming its rows, using the client's default timeout for the
// initial request (row streaming itself is bounded only by ctx).
func (c *Client) Query(ctx context.Context, tx *Transaction, stmt *PreparedStatement, params []Parameter) (*QueryResult, error) {
	return c.QueryWithTimeout(ctx, tx, stmt, params, c.defaultTimeout)
}

// QueryWithTimeout is Query with an explicit timeout on the initial request.
func (c *Client) QueryWithTimeout(ctx context.Context, tx *Transaction, stmt *PreparedStatement, params []Parameter, timeout time.Duration) (*QueryResult, error) {
	raw, err := c.call(ctx, timeout, cmdQuery, marshalExecRequest(tx, stmt, params))
	if err != nil {
		return nil, err
	}
	r, err := unmarshalQueryResponse(raw)
	if err != nil {
		return nil, err
	}
	return c.newQueryResult(ctx, r), nil
}

// QueryAsync runs stmt within tx without waiting for the response.
// ctx becomes the QueryResult's Stream context; the context later
// passed to the Job's Take is not used for streaming.
func (c *Client) QueryAsync(ctx context.Context, tx *Transaction, stmt *PreparedStatement, params []Parameter) (*job.Job[*QueryResult], error) {
	convert := func(raw []byte) (*QueryResult, error) {
		r, err := unmarshalQueryResponse(raw)
		if err != nil {
			return nil, err
		}
		return c.newQueryResult(ctx, r), nil
	}
	return sendAsync(c, cmdQuery, marshalExecRequest(tx, stmt, params), convert)
}
