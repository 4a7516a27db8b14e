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
	"runtime"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/tsurugidb/tsurugi-go/job"
	"github.com/tsurugidb/tsurugi-go/proto"
	"github.com/tsurugidb/tsurugi-go/value"
)

const (
	prepareReqFieldSQL         protowire.Number = 1
	prepareReqFieldPlaceholder protowire.Number = 2
	prepareRespFieldHandle     protowire.Number = 1

	placeholderFieldName protowire.Number = 1
	placeholderFieldType protowire.Number = 2

	disposeReqFieldHandle protowire.Number = 1
)

// Placeholder declares one named, typed bind point in a statement
// passed to Prepare, e.g. a SQL text of "insert into t values (:pk)"
// declares Placeholder{Name: "pk", Type: value.TypeInt4}. Execute,
// Query, and Explain bind a value to each declared name with a
// Parameter.
type Placeholder struct {
	Name string
	Type value.Type
}

func (p Placeholder) marshal() []byte {
	var dst []byte
	dst = proto.AppendBytesField(dst, placeholderFieldName, []byte(p.Name))
	dst = proto.AppendVarintField(dst, placeholderFieldType, uint64(p.Type))
	return dst
}

// PreparedStatement is a resource handle returned by Prepare.
type PreparedStatement struct {
	client *Client
	handle uint64
	closed bool
}

// Handle returns the server-assigned prepared statement handle.
func (p *PreparedStatement) Handle() uint64 { return p.handle }

func marshalPrepare(sqlText string, placeholders []Placeholder) []byte {
	var dst []byte
	dst = proto.AppendBytesField(dst, prepareReqFieldSQL, []byte(sqlText))
	for _, ph := range placeholders {
		dst = proto.AppendMessageField(dst, prepareReqFieldPlaceholder, ph.marshal())
	}
	return dst
}

func unmarshalPrepare(body []byte) (uint64, error) {
	var handle uint64
	for len(body) > 0 {
		num, typ, n := proto.ConsumeTag(body)
		if err := decodeTagErr(n); err != nil {
			return 0, err
		}
		body = body[n:]
		var err error
		switch num {
		case prepareRespFieldHandle:
			handle, body, err = proto.ConsumeVarintField(body, typ)
		default:
			body, err = proto.SkipField(body, typ)
		}
		if err != nil {
			return 0, err
		}
	}
	return handle, nil
}

func (c *Client) newPreparedStatement(handle uint64) *PreparedStatement {
	p := &PreparedStatement{client: c, handle: handle}
	runtime.SetFinalizer(p, finalizePreparedStatement)
	return p
}

func finalizePreparedStatement(p *PreparedStatement) {
	if p.closed {
		return
	}
	go p.client.DisposePreparedStatementWithTimeout(context.Background(), p, 0)
}

// Prepare compiles sqlText, declaring placeholders as its named bind
// points, into a reusable PreparedStatement using the client's
// default timeout.
func (c *Client) Prepare(ctx context.Context, sqlText string, placeholders []Placeholder) (*PreparedStatement, error) {
	return c.PrepareWithTimeout(ctx, sqlText, placeholders, c.defaultTimeout)
}

// PrepareWithTimeout is Prepare with an explicit timeout.
func (c *Client) PrepareWithTimeout(ctx context.Context, sqlText string, placeholders []Placeholder, timeout time.Duration) (*PreparedStatement, error) {
	raw, err := c.call(ctx, timeout, cmdPrepare, marshalPrepare(sqlText, placeholders))
	if err != nil {
		return nil, err
	}
	handle, err := unmarshalPrepare(raw)
	if err != nil {
		return nil, err
	}
	return c.newPreparedStatement(handle), nil
}

// PrepareAsync compiles sqlText without waiting for the response.
func (c *Client) PrepareAsync(sqlText string, placeholders []Placeholder) (*job.Job[*PreparedStatement], error) {
	convert := func(raw []byte) (*PreparedStatement, error) {
		handle, err := unmarshalPrepare(raw)
		if err != nil {
			return nil, err
		}
		return c.newPreparedStatement(handle), nil
	}
	return sendAsync(c, cmdPrepare, marshalPrepare(sqlText, placeholders), convert)
}

func marshalDisposeHandle(handle uint64) []byte {
	var dst []byte
	return proto.AppendVarintField(dst, disposeReqFieldHandle, handle)
}

// DisposePreparedStatement releases the server-side handle using the
// client's default timeout.
func (c *Client) DisposePreparedStatement(ctx context.Context, p *PreparedStatement) error {
	return c.DisposePreparedStatementWithTimeout(ctx, p, c.defaultTimeout)
}

// DisposePreparedStatementWithTimeout is DisposePreparedStatement with
// an explicit timeout.
func (c *Client) DisposePreparedStatementWithTimeout(ctx context.Context, p *PreparedStatement, timeout time.Duration) error {
	if p.closed {
		return nil
	}
	runtime.SetFinalizer(p, nil)
	_, err := c.call(ctx, timeout, cmdDisposePreparedStatement, marshalDisposeHandle(p.handle))
	p.closed = true
	return err
}

// DisposePreparedStatementAsync disposes p without waiting for the response.
func (c *Client) DisposePreparedStatementAsync(p *PreparedStatement) (*job.Job[struct{}], error) {
	if p.closed {
		return nil, nil
	}
	runtime.SetFinalizer(p, nil)
	p.closed = true
	return sendAsync(c, cmdDisposePreparedStatement, marshalDisposeHandle(p.handle), ignoreSQLBody)
}
