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
	listTablesRespFieldName protowire.Number = 1

	tableMetadataReqFieldName protowire.Number = 1

	tableMetadataRespFieldColumn protowire.Number = 1

	columnRespFieldName protowire.Number = 1
	columnRespFieldType protowire.Number = 2
)

// ColumnMetadata describes a single column of a table.
type ColumnMetadata struct {
	Name string
	Type value.Type
}

// TableMetadata describes the columns of a table, in server-reported
// order.
type TableMetadata struct {
	Name    string
	Columns []ColumnMetadata
}

func unmarshalListTables(body []byte) ([]string, error) {
	var names []string
	for len(body) > 0 {
		num, typ, n := proto.ConsumeTag(body)
		if err := decodeTagErr(n); err != nil {
			return nil, err
		}
		body = body[n:]
		var err error
		switch num {
		case listTablesRespFieldName:
			var b []byte
			b, body, err = proto.ConsumeBytesField(body, typ)
			names = append(names, string(b))
		default:
			body, err = proto.SkipField(body, typ)
		}
		if err != nil {
			return nil, err
		}
	}
	return names, nil
}

// ListTables returns the names of every table visible to tx, using
// the client's default timeout.
func (c *Client) ListTables(ctx context.Context, tx *Transaction) ([]string, error) {
	return c.ListTablesWithTimeout(ctx, tx, c.defaultTimeout)
}

// ListTablesWithTimeout is ListTables with an explicit timeout.
func (c *Client) ListTablesWithTimeout(ctx context.Context, tx *Transaction, timeout time.Duration) ([]string, error) {
	raw, err := c.call(ctx, timeout, cmdListTables, marshalTxID(tx.id))
	if err != nil {
		return nil, err
	}
	return unmarshalListTables(raw)
}

// ListTablesAsync lists tables without waiting for the response.
func (c *Client) ListTablesAsync(tx *Transaction) (*job.Job[[]string], error) {
	return sendAsync(c, cmdListTables, marshalTxID(tx.id), unmarshalListTables)
}

func marshalTableMetadataRequest(tableName string) []byte {
	var dst []byte
	return proto.AppendBytesField(dst, tableMetadataReqFieldName, []byte(tableName))
}

func unmarshalColumnMetadata(body []byte) (ColumnMetadata, error) {
	var col ColumnMetadata
	for len(body) > 0 {
		num, typ, n := proto.ConsumeTag(body)
		if err := decodeTagErr(n); err != nil {
			return ColumnMetadata{}, err
		}
		body = body[n:]
		var err error
		switch num {
		case columnRespFieldName:
			var b []byte
			b, body, err = proto.ConsumeBytesField(body, typ)
			col.Name = string(b)
		case columnRespFieldType:
			var v uint64
			v, body, err = proto.ConsumeVarintField(body, typ)
			col.Type = value.Type(v)
		default:
			body, err = proto.SkipField(body, typ)
		}
		if err != nil {
			return ColumnMetadata{}, err
		}
	}
	return col, nil
}

func unmarshalTableMetadata(tableName string, body []byte) (TableMetadata, error) {
	md := TableMetadata{Name: tableName}
	for len(body) > 0 {
		num, typ, n := proto.ConsumeTag(body)
		if err := decodeTagErr(n); err != nil {
			return TableMetadata{}, err
		}
		body = body[n:]
		var err error
		switch num {
		case tableMetadataRespFieldColumn:
			var raw []byte
			raw, body, err = proto.ConsumeBytesField(body, typ)
			if err == nil {
				var col ColumnMetadata
				col, err = unmarshalColumnMetadata(raw)
				md.Columns = append(md.Columns, col)
			}
		default:
			body, err = proto.SkipField(body, typ)
		}
		if err != nil {
			return TableMetadata{}, err
		}
	}
	return md, nil
}

// TableMetadata returns the column layout of tableName, using the
// client's default timeout.
func (c *Client) TableMetadata(ctx context.Context, tableName string) (TableMetadata, error) {
	return c.TableMetadataWithTimeout(ctx, tableName, c.defaultTimeout)
}

// TableMetadataWithTimeout is TableMetadata with an explicit timeout.
func (c *Client) TableMetadataWithTimeout(ctx context.Context, tableName string, timeout time.Duration) (TableMetadata, error) {
	raw, err := c.call(ctx, timeout, cmdTableMetadata, marshalTableMetadataRequest(tableName))
	if err != nil {
		return TableMetadata{}, err
	}
	return unmarshalTableMetadata(tableName, raw)
}

// TableMetadataAsync requests tableName's column layout without
// waiting for the response.
func (c *Client) TableMetadataAsync(tableName string) (*job.Job[TableMetadata], error) {
	convert := func(raw []byte) (TableMetadata, error) {
		return unmarshalTableMetadata(tableName, raw)
	}
	return sendAsync(c, cmdTableMetadata, marshalTableMetadataRequest(tableName), convert)
}
