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

// Package job implements Job[T], the handle every async service
// operation returns: wait/is_done observe, take/take_for/take_if_ready
// consume exactly once, cancel/close reclaim the slot.
package job

import (
	"context"
	"log"
	"runtime"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/tsurugidb/tsurugi-go/tgerr"
	"github.com/tsurugidb/tsurugi-go/wire"
)

type state int32

const (
	statePending state = iota
	stateDone
	stateTaken
	stateClosed
)

// canceler is the slice of *wire.Wire a Job needs: enough to send a
// cancel frame for its own slot. Satisfied by *wire.Wire.
type canceler interface {
	Cancel(slot wire.Slot) error
}

// Job is a single outstanding asynchronous request/response, as
// returned by a service client's async (SendAsync-backed) form. A Job
// is held by a single owner and is not internally synchronised beyond
// what's needed to let its background drop-safety net run
// concurrently with (never after) the owner's own calls.
type Job[T any] struct {
	w       canceler
	handle  wire.SlotHandle
	convert func([]byte) (T, error)
	traceID uuid.UUID
	logger  *log.Logger

	state  state
	result T
	err    error

	// closedFlag guards against the finalizer and an explicit
	// Close racing each other; it is the only field the
	// finalizer goroutine touches.
	closedFlag int32
}

// New returns a Job wrapping handle, whose eventual response is
// converted to T via convert. logger receives best-effort diagnostics
// if the Job is garbage collected without having been closed; pass
// nil to use log.Default().
func New[T any](w canceler, handle wire.SlotHandle, convert func([]byte) (T, error), logger *log.Logger) *Job[T] {
	if logger == nil {
		logger = log.Default()
	}
	j := &Job[T]{
		w:       w,
		handle:  handle,
		convert: convert,
		traceID: uuid.New(),
		logger:  logger,
	}
	runtime.SetFinalizer(j, finalize[T])
	return j
}

// TraceID returns the job's correlation id, attached to its
// best-effort close/cancel/timeout log lines so overlapping
// asynchronous jobs on the same session can be told apart.
func (j *Job[T]) TraceID() uuid.UUID { return j.traceID }

func finalize[T any](j *Job[T]) {
	if !atomic.CompareAndSwapInt32(&j.closedFlag, 0, 1) {
		return
	}
	if j.state == statePending {
		go func() {
			if err := j.cancelSlot(context.Background()); err != nil {
				j.logger.Printf("job %s: dropped without close, best-effort cancel failed: %v", j.traceID, err)
			}
			j.handle.Release()
		}()
		return
	}
	j.handle.Release()
}

func waitTerminal(ctx context.Context, h wire.SlotHandle) (wire.SlotResult, error) {
	for {
		res, err := h.Wait(ctx)
		if err != nil {
			return wire.SlotResult{}, err
		}
		if res.Err != nil || res.IsEnd {
			return res, nil
		}
	}
}

func pollTerminal(h wire.SlotHandle) (wire.SlotResult, bool) {
	for {
		res, ok := h.Poll()
		if !ok {
			return wire.SlotResult{}, false
		}
		if res.Err != nil || res.IsEnd {
			return res, true
		}
	}
}

func (j *Job[T]) settle(res wire.SlotResult) {
	if res.Err != nil {
		j.err = res.Err
	} else {
		j.result, j.err = j.convert(res.Payload)
	}
	j.state = stateDone
}

// IsDone reports whether the response has arrived, driving at most
// one non-blocking receive poll. It never blocks.
func (j *Job[T]) IsDone() (bool, error) {
	switch j.state {
	case stateClosed:
		return false, tgerr.ErrAlreadyClosed
	case statePending:
		res, ok := pollTerminal(j.handle)
		if !ok {
			return false, nil
		}
		j.settle(res)
		return true, nil
	default:
		return true, nil
	}
}

// Wait blocks until the response has arrived (or ctx is done)
// without consuming it; a later Take returns immediately.
func (j *Job[T]) Wait(ctx context.Context) error {
	if j.state == stateClosed {
		return tgerr.ErrAlreadyClosed
	}
	if j.state != statePending {
		return nil
	}
	res, err := waitTerminal(ctx, j.handle)
	if err != nil {
		return err
	}
	j.settle(res)
	return nil
}

// Take blocks (respecting ctx) until the response has arrived, then
// consumes it. Calling Take a second time returns ErrAlreadyTaken.
func (j *Job[T]) Take(ctx context.Context) (T, error) {
	var zero T
	if j.state == stateTaken || j.state == stateClosed {
		return zero, tgerr.ErrAlreadyTaken
	}
	if j.state == statePending {
		if err := j.Wait(ctx); err != nil {
			return zero, err
		}
	}
	result, err := j.result, j.err
	j.markTaken()
	return result, err
}

// TakeIfReady combines IsDone and Take: if the response has not yet
// arrived it returns (zero, false, nil) without blocking.
func (j *Job[T]) TakeIfReady(ctx context.Context) (T, bool, error) {
	var zero T
	done, err := j.IsDone()
	if err != nil {
		return zero, false, err
	}
	if !done {
		return zero, false, nil
	}
	v, err := j.Take(ctx)
	return v, true, err
}

func (j *Job[T]) markTaken() {
	j.state = stateTaken
	atomic.StoreInt32(&j.closedFlag, 1)
	runtime.SetFinalizer(j, nil)
	j.handle.Release()
}

func (j *Job[T]) cancelSlot(ctx context.Context) error {
	return j.w.Cancel(j.handle.Slot())
}

// Cancel requests the server terminate this job's outstanding
// request. The slot still receives a (error) response afterward;
// Cancel does not itself reclaim the slot.
func (j *Job[T]) Cancel(ctx context.Context) error {
	if j.state != statePending {
		return nil
	}
	return j.cancelSlot(ctx)
}

// Close cancels the job if it has not completed, then releases its
// slot. Close is idempotent and safe to call after Take.
func (j *Job[T]) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&j.closedFlag, 0, 1) {
		return nil
	}
	runtime.SetFinalizer(j, nil)
	var cancelErr error
	if j.state == statePending {
		cancelErr = j.cancelSlot(ctx)
	}
	j.handle.Release()
	j.state = stateClosed
	return cancelErr
}
