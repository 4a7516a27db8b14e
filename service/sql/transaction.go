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
)

const (
	startTxReqFieldReadOnly protowire.Number = 1
	startTxRespFieldTxID    protowire.Number = 1

	txReqFieldTxID protowire.Number = 1
)

// Transaction is a resource handle returned by StartTransaction. Like
// PreparedStatement, it tracks whether it has been closed and
// performs a best-effort async dispose if it is dropped without one.
// QueryResult has neither a closed flag nor a finalizer.
type Transaction struct {
	client *Client
	id     uint64
	closed bool
}

func marshalStartTransaction(readOnly bool) []byte {
	var dst []byte
	v := uint64(0)
	if readOnly {
		v = 1
	}
	return proto.AppendVarintField(dst, startTxReqFieldReadOnly, v)
}

func unmarshalStartTransaction(body []byte) (uint64, error) {
	var id uint64
	for len(body) > 0 {
		num, typ, n := proto.ConsumeTag(body)
		if err := decodeTagErr(n); err != nil {
			return 0, err
		}
		body = body[n:]
		var err error
		switch num {
		case startTxRespFieldTxID:
			id, body, err = proto.ConsumeVarintField(body, typ)
		default:
			body, err = proto.SkipField(body, typ)
		}
		if err != nil {
			return 0, err
		}
	}
	return id, nil
}

func (c *Client) newTransaction(id uint64) *Transaction {
	tx := &Transaction{client: c, id: id}
	runtime.SetFinalizer(tx, finalizeTransaction)
	return tx
}

func finalizeTransaction(tx *Transaction) {
	if tx.closed {
		return
	}
	go tx.client.DisposeTransactionWithTimeout(context.Background(), tx, 0)
}

// ID returns the server-assigned transaction id.
func (tx *Transaction) ID() uint64 { return tx.id }

// StartTransaction begins a new transaction using the client's
// default timeout.
func (c *Client) StartTransaction(ctx context.Context, readOnly bool) (*Transaction, error) {
	return c.StartTransactionWithTimeout(ctx, readOnly, c.defaultTimeout)
}

// StartTransactionWithTimeout is StartTransaction with an explicit timeout.
func (c *Client) StartTransactionWithTimeout(ctx context.Context, readOnly bool, timeout time.Duration) (*Transaction, error) {
	raw, err := c.call(ctx, timeout, cmdStartTransaction, marshalStartTransaction(readOnly))
	if err != nil {
		return nil, err
	}
	id, err := unmarshalStartTransaction(raw)
	if err != nil {
		return nil, err
	}
	return c.newTransaction(id), nil
}

// StartTransactionAsync starts a transaction without waiting for the response.
func (c *Client) StartTransactionAsync(readOnly bool) (*job.Job[*Transaction], error) {
	convert := func(raw []byte) (*Transaction, error) {
		id, err := unmarshalStartTransaction(raw)
		if err != nil {
			return nil, err
		}
		return c.newTransaction(id), nil
	}
	return sendAsync(c, cmdStartTransaction, marshalStartTransaction(readOnly), convert)
}

func marshalTxID(id uint64) []byte {
	var dst []byte
	return proto.AppendVarintField(dst, txReqFieldTxID, id)
}

func ignoreSQLBody(_ []byte) (struct{}, error) { return struct{}{}, nil }

// Commit commits tx using the client's default timeout.
func (c *Client) Commit(ctx context.Context, tx *Transaction) error {
	return c.CommitWithTimeout(ctx, tx, c.defaultTimeout)
}

// CommitWithTimeout is Commit with an explicit timeout.
func (c *Client) CommitWithTimeout(ctx context.Context, tx *Transaction, timeout time.Duration) error {
	_, err := c.call(ctx, timeout, cmdCommit, marshalTxID(tx.id))
	return err
}

// CommitAsync commits tx without waiting for the response.
func (c *Client) CommitAsync(tx *Transaction) (*job.Job[struct{}], error) {
	return sendAsync(c, cmdCommit, marshalTxID(tx.id), ignoreSQLBody)
}

// Rollback rolls back tx using the client's default timeout.
func (c *Client) Rollback(ctx context.Context, tx *Transaction) error {
	return c.RollbackWithTimeout(ctx, tx, c.defaultTimeout)
}

// RollbackWithTimeout is Rollback with an explicit timeout.
func (c *Client) RollbackWithTimeout(ctx context.Context, tx *Transaction, timeout time.Duration) error {
	_, err := c.call(ctx, timeout, cmdRollback, marshalTxID(tx.id))
	return err
}

// RollbackAsync rolls back tx without waiting for the response.
func (c *Client) RollbackAsync(tx *Transaction) (*job.Job[struct{}], error) {
	return sendAsync(c, cmdRollback, marshalTxID(tx.id), ignoreSQLBody)
}

// DisposeTransaction releases the server-side transaction handle
// using the client's default timeout. It does not commit or roll
// back; callers must do that first.
func (c *Client) DisposeTransaction(ctx context.Context, tx *Transaction) error {
	return c.DisposeTransactionWithTimeout(ctx, tx, c.defaultTimeout)
}

// DisposeTransactionWithTimeout is DisposeTransaction with an
// explicit timeout.
func (c *Client) DisposeTransactionWithTimeout(ctx context.Context, tx *Transaction, timeout time.Duration) error {
	if tx.closed {
		return nil
	}
	runtime.SetFinalizer(tx, nil)
	_, err := c.call(ctx, timeout, cmdDisposeTransaction, marshalTxID(tx.id))
	tx.closed = true
	return err
}

// DisposeTransactionAsync disposes tx without waiting for the response.
func (c *Client) DisposeTransactionAsync(tx *Transaction) (*job.Job[struct{}], error) {
	if tx.closed {
		return nil, nil
	}
	runtime.SetFinalizer(tx, nil)
	tx.closed = true
	return sendAsync(c, cmdDisposeTransaction, marshalTxID(tx.id), ignoreSQLBody)
}
