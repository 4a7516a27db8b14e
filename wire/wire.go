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

package wire

import (
	"context"
	"sync"

	"github.com/tsurugidb/tsurugi-go/proto"
	"github.com/tsurugidb/tsurugi-go/tgerr"
)

// Wire is the session-level demultiplexer: one goroutine (pump) owns
// Link.Recv and fans every frame out to either a ResponseBox slot
// (ordinary request/response traffic) or a DataChannel (result set
// bytes), stripping and interpreting the FrameworkResponseHeader
// along the way. Everything above this package — Job, the service
// clients, Session — only ever calls Wire's methods; none of them
// touch Link or the frame layout directly.
type Wire struct {
	link Link
	box  *ResponseBox

	mu       sync.Mutex
	pending  map[string]*DataChannel // result-set name -> channel awaiting HELLO
	bySlot   map[Slot]*DataChannel   // result-set slot -> bound channel
	closed   bool
	pumpDone chan struct{}
}

// Open starts the receive pump over link and returns a ready Wire.
func Open(link Link) *Wire {
	w := &Wire{
		link:     link,
		box:      NewResponseBox(),
		pending:  make(map[string]*DataChannel),
		bySlot:   make(map[Slot]*DataChannel),
		pumpDone: make(chan struct{}),
	}
	go w.pump()
	return w
}

// Send transmits one already-framework-enveloped request body and
// returns a handle the caller uses to await its response(s). Service
// clients build requestBody from a proto.FrameworkRequestHeader
// followed by the service-specific request message.
func (w *Wire) Send(requestBody []byte) (SlotHandle, error) {
	h := w.box.Create()
	if err := w.link.Send(h.Slot(), requestBody); err != nil {
		h.Release()
		return SlotHandle{}, err
	}
	return h, nil
}

// SendAndWait sends requestBody and blocks for its terminal response
// body (with any non-terminal BODYHEAD frames along the way quietly
// skipped — their payload duplicates framing information already
// handled by Wire, and the actual service result streams separately
// on a DataChannel for result-set-producing operations). The
// returned bytes are the service response message, with the
// FrameworkResponseHeader already stripped and any ServerDiagnostics
// already translated into a *tgerr.Error.
func (w *Wire) SendAndWait(ctx context.Context, requestBody []byte) ([]byte, error) {
	h, err := w.Send(requestBody)
	if err != nil {
		return nil, err
	}
	defer h.Release()
	return waitTerminal(ctx, h)
}

// SendAsync sends requestBody and returns the SlotHandle immediately
// without waiting; Job wraps this to implement Job[T]'s deferred
// take()/wait() semantics. The caller is responsible for eventually
// calling Release on the handle (directly, or via Job.Close).
func (w *Wire) SendAsync(requestBody []byte) (SlotHandle, error) {
	return w.Send(requestBody)
}

// Await blocks on an already-sent SlotHandle for its terminal
// response, the same way SendAndWait does after sending.
func Await(ctx context.Context, h SlotHandle) ([]byte, error) {
	return waitTerminal(ctx, h)
}

func waitTerminal(ctx context.Context, h SlotHandle) ([]byte, error) {
	for {
		res, err := h.Wait(ctx)
		if err != nil {
			return nil, err
		}
		if res.Err != nil {
			return nil, res.Err
		}
		if res.IsEnd {
			return res.Payload, nil
		}
	}
}

// Cancel sends REQUEST_CANCEL for an outstanding request.
func (w *Wire) Cancel(slot Slot) error {
	return w.link.SendHeaderOnly(InfoRequestCancel, slot)
}

// CreateDataChannel registers interest in a result set named name
// and returns its DataChannel immediately. The channel can be
// Pull()ed right away: Pull simply blocks until the server's
// RESPONSE_RESULT_SET_HELLO names this channel live. If HELLO has
// already arrived (a benign race with whichever response told the
// caller to expect this result set), the existing bound channel is
// returned instead of a second one.
func (w *Wire) CreateDataChannel(name string) *DataChannel {
	w.mu.Lock()
	defer w.mu.Unlock()
	if dc, ok := w.pending[name]; ok {
		return dc
	}
	for _, dc := range w.bySlot {
		if dc.Name() == name {
			return dc
		}
	}
	dc := NewDataChannel(name)
	w.pending[name] = dc
	return dc
}

// Close tears down the underlying Link and waits for the pump
// goroutine to drain, failing every still-outstanding slot and
// DataChannel with tgerr.ErrAlreadyClosed.
func (w *Wire) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()
	err := w.link.Close()
	<-w.pumpDone
	return err
}

func (w *Wire) pump() {
	defer close(w.pumpDone)
	for {
		msg, err := w.link.Recv()
		if msg == nil {
			w.mu.Lock()
			closed := w.closed
			w.mu.Unlock()
			if closed {
				w.fail(tgerr.ErrAlreadyClosed)
				return
			}
		}
		if err != nil {
			w.fail(err)
			return
		}
		if msg == nil {
			if w.link.Broken() {
				w.fail(tgerr.IO(nil, "link closed"))
				return
			}
			continue
		}
		w.dispatch(msg)
	}
}

func (w *Wire) fail(err error) {
	w.box.FailAll(err)
	w.mu.Lock()
	channels := make([]*DataChannel, 0, len(w.bySlot)+len(w.pending))
	for _, dc := range w.bySlot {
		channels = append(channels, dc)
	}
	for _, dc := range w.pending {
		channels = append(channels, dc)
	}
	w.mu.Unlock()
	for _, dc := range channels {
		dc.Bye(err)
	}
}

func (w *Wire) dispatch(msg *Message) {
	if msg.Info.IsResultSet() {
		w.dispatchResultSet(msg)
		return
	}
	switch msg.Info {
	case InfoResponseSessionBodyhead:
		w.deliverSession(msg.Slot, msg.Payload, false)
	case InfoResponseSessionPayload:
		w.deliverSession(msg.Slot, msg.Payload, true)
	default:
		w.box.FailAll(tgerr.ErrInvalidResponse)
	}
}

func (w *Wire) deliverSession(slot Slot, raw []byte, terminal bool) {
	hdr, body, err := proto.UnmarshalFrameworkResponseHeader(raw)
	if err != nil {
		w.box.Fail(slot, tgerr.ClientWrap(err, "decoding framework response header"))
		return
	}
	if hdr.PayloadType == proto.PayloadTypeDiagnostics {
		var diag tgerr.DiagnosticCode
		var message string
		if hdr.Diagnostics != nil {
			diag = tgerr.NewDiagnosticCode(hdr.Diagnostics.Category, hdr.Diagnostics.Code, hdr.Diagnostics.Name)
			message = hdr.Diagnostics.Message
		}
		w.box.Fail(slot, tgerr.Server(diag, message))
		return
	}
	w.box.Deliver(slot, body, terminal)
}

func (w *Wire) dispatchResultSet(msg *Message) {
	switch msg.Info {
	case InfoResponseResultSetHello:
		w.bindHello(msg.Slot, msg.Payload)
	case InfoResponseResultSetPayload:
		w.mu.Lock()
		dc := w.bySlot[msg.Slot]
		w.mu.Unlock()
		if dc == nil {
			return
		}
		if len(msg.Payload) == 0 {
			dc.FlushWriter(msg.Writer)
		} else {
			dc.AddWriterPayload(msg.Writer, msg.Payload)
		}
	case InfoResponseResultSetBye:
		w.mu.Lock()
		dc := w.bySlot[msg.Slot]
		delete(w.bySlot, msg.Slot)
		w.mu.Unlock()
		if dc != nil {
			dc.Bye(nil)
		}
		w.link.SendHeaderOnly(InfoRequestResultSetByeOk, msg.Slot)
	}
}

func (w *Wire) bindHello(slot Slot, payload []byte) {
	name := string(payload)
	w.mu.Lock()
	dc, ok := w.pending[name]
	if ok {
		delete(w.pending, name)
	} else {
		dc = NewDataChannel(name)
	}
	w.bySlot[slot] = dc
	w.mu.Unlock()
}
