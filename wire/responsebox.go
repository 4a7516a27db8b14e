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

	"golang.org/x/exp/slices"

	"github.com/tsurugidb/tsurugi-go/tgerr"
)

// SlotResult is one response delivered to a slot. A slot may receive
// more than one SlotResult before IsEnd is true: a BODYHEAD frame
// delivers a non-terminal result carrying only the framework
// response header (the service result body streams separately on a
// DataChannel), and the eventual SESSION_PAYLOAD frame delivers the
// terminal result.
type SlotResult struct {
	Payload []byte
	IsEnd   bool
	Err     error
}

// slotEntry is the delivery queue backing one live SlotHandle. The
// buffer only ever needs to hold a couple of pending deliveries
// (one non-terminal BODYHEAD plus the terminal payload), but is
// sized generously so Deliver never blocks the receive loop.
type slotEntry struct {
	ch chan SlotResult
}

func newSlotEntry() *slotEntry {
	return &slotEntry{ch: make(chan SlotResult, 4)}
}

// ResponseBox routes incoming response frames, keyed by slot, to
// whichever goroutine holds that slot's SlotHandle. It is the Go
// analogue of the slot table a single-threaded async runtime would
// keep inline; here every entry is its own small mailbox so Deliver
// (called from the one goroutine pumping Link.Recv) never blocks on
// a slow consumer for more than the mailbox's buffer depth.
//
// Slot numbers are reused LIFO once released: the protocol does not
// require them to increase monotonically (an Open Question in the
// distributed-session spec, resolved in favor of the looser
// contract), so a stack-shaped free list is sufficient and keeps
// recently used slots hot the way a small free-list allocator would.
type ResponseBox struct {
	mu      sync.Mutex
	entries map[Slot]*slotEntry
	free    []Slot
	next    Slot
}

// NewResponseBox returns an empty ResponseBox.
func NewResponseBox() *ResponseBox {
	return &ResponseBox{entries: make(map[Slot]*slotEntry)}
}

// Create allocates a fresh SlotHandle for one outgoing request.
func (b *ResponseBox) Create() SlotHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	var slot Slot
	if n := len(b.free); n > 0 {
		slot, b.free = b.free[n-1], b.free[:n-1]
	} else {
		slot = b.next
		b.next++
	}
	b.entries[slot] = newSlotEntry()
	return SlotHandle{box: b, slot: slot}
}

func (b *ResponseBox) entry(slot Slot) (*slotEntry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[slot]
	return e, ok
}

// Deliver routes one response frame's payload to the slot it
// belongs to. It reports whether the slot was still live; a false
// result means the caller already released the slot (e.g. after a
// cancel), and the frame is dropped.
func (b *ResponseBox) Deliver(slot Slot, payload []byte, isEnd bool) bool {
	e, ok := b.entry(slot)
	if !ok {
		return false
	}
	e.ch <- SlotResult{Payload: payload, IsEnd: isEnd}
	return true
}

// Fail aborts a slot with err, to be observed by the next Wait or
// Poll. It is used when the link itself breaks while requests are
// still outstanding.
func (b *ResponseBox) Fail(slot Slot, err error) bool {
	e, ok := b.entry(slot)
	if !ok {
		return false
	}
	e.ch <- SlotResult{Err: err, IsEnd: true}
	return true
}

// FailAll aborts every currently live slot with err, used when the
// underlying Link breaks and no further Deliver calls will ever
// arrive for any outstanding request.
func (b *ResponseBox) FailAll(err error) {
	b.mu.Lock()
	slots := make([]Slot, 0, len(b.entries))
	for slot := range b.entries {
		slots = append(slots, slot)
	}
	b.mu.Unlock()
	for _, slot := range slots {
		b.Fail(slot, err)
	}
}

// Release frees slot for reuse. It must be called exactly once per
// Create, after the handle's terminal response has been consumed.
func (b *ResponseBox) Release(slot Slot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[slot]; !ok {
		return
	}
	delete(b.entries, slot)
	if !slices.Contains(b.free, slot) {
		b.free = append(b.free, slot)
	}
}

// SlotHandle is the caller-facing handle returned by
// ResponseBox.Create; Job and the service clients wait on it for the
// response(s) belonging to their request.
type SlotHandle struct {
	box  *ResponseBox
	slot Slot
}

// Slot returns the wire-level slot id this handle correlates to.
func (h SlotHandle) Slot() Slot { return h.slot }

// Wait blocks until a result has been delivered to this slot or ctx
// is done.
func (h SlotHandle) Wait(ctx context.Context) (SlotResult, error) {
	e, ok := h.box.entry(h.slot)
	if !ok {
		return SlotResult{}, tgerr.ErrAlreadyClosed
	}
	select {
	case d := <-e.ch:
		return d, nil
	case <-ctx.Done():
		return SlotResult{}, tgerr.Timeout("waiting for response on slot %d: %v", h.slot, ctx.Err())
	}
}

// Poll returns the next pending result without blocking. The second
// return value is false if nothing has been delivered yet.
func (h SlotHandle) Poll() (SlotResult, bool) {
	e, ok := h.box.entry(h.slot)
	if !ok {
		return SlotResult{}, false
	}
	select {
	case d := <-e.ch:
		return d, true
	default:
		return SlotResult{}, false
	}
}

// Release returns the slot to its ResponseBox for reuse.
func (h SlotHandle) Release() { h.box.Release(h.slot) }
