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
	readLOBReqFieldTxID     protowire.Number = 1
	readLOBReqFieldRef      protowire.Number = 2
	readLOBRespFieldPayload protowire.Number = 1
)

func marshalReadLOB(tx *Transaction, ref value.LobReference) []byte {
	var dst []byte
	dst = proto.AppendVarintField(dst, readLOBReqFieldTxID, tx.id)
	dst = proto.AppendBytesField(dst, readLOBReqFieldRef, ref.ID)
	return dst
}

func unmarshalReadLOB(body []byte) ([]byte, error) {
	var payload []byte
	for len(body) > 0 {
		num, typ, n := proto.ConsumeTag(body)
		if err := decodeTagErr(n); err != nil {
			return nil, err
		}
		body = body[n:]
		var err error
		switch num {
		case readLOBRespFieldPayload:
			payload, body, err = proto.ConsumeBytesField(body, typ)
		default:
			body, err = proto.SkipField(body, typ)
		}
		if err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// ReadLOB fetches the full contents of a BLOB/CLOB referenced by ref
// within tx, using the client's default timeout. Large objects are
// returned in one response message; there is no streaming form.
func (c *Client) ReadLOB(ctx context.Context, tx *Transaction, ref value.LobReference) ([]byte, error) {
	return c.ReadLOBWithTimeout(ctx, tx, ref, c.defaultTimeout)
}

// ReadLOBWithTimeout is ReadLOB with an explicit timeout.
func (c *Client) ReadLOBWithTimeout(ctx context.Context, tx *Transaction, ref value.LobReference, timeout time.Duration) ([]byte, error) {
	raw, err := c.call(ctx, timeout, cmdReadLOB, marshalReadLOB(tx, ref))
	if err != nil {
		return nil, err
	}
	return unmarshalReadLOB(raw)
}

// ReadLOBAsync fetches ref's contents without waiting for the response.
func (c *Client) ReadLOBAsync(tx *Transaction, ref value.LobReference) (*job.Job[[]byte], error) {
	return sendAsync(c, cmdReadLOB, marshalReadLOB(tx, ref), unmarshalReadLOB)
}
