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
	"testing"
	"time"
)

func TestResponseBoxDeliverWait(t *testing.T) {
	box := NewResponseBox()
	h := box.Create()

	if !box.Deliver(h.Slot(), []byte("row"), true) {
		t.Fatalf("Deliver reported slot not live")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := h.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if string(res.Payload) != "row" || !res.IsEnd {
		t.Errorf("got %+v", res)
	}
}

func TestResponseBoxMultipleDeliveriesBeforeEnd(t *testing.T) {
	box := NewResponseBox()
	h := box.Create()
	box.Deliver(h.Slot(), []byte("bodyhead"), false)
	box.Deliver(h.Slot(), []byte("final"), true)

	ctx := context.Background()
	first, err := h.Wait(ctx)
	if err != nil || first.IsEnd || string(first.Payload) != "bodyhead" {
		t.Fatalf("first = %+v, err = %v", first, err)
	}
	second, err := h.Wait(ctx)
	if err != nil || !second.IsEnd || string(second.Payload) != "final" {
		t.Fatalf("second = %+v, err = %v", second, err)
	}
}

func TestResponseBoxWaitTimesOut(t *testing.T) {
	box := NewResponseBox()
	h := box.Create()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := h.Wait(ctx); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestResponseBoxPollNonBlocking(t *testing.T) {
	box := NewResponseBox()
	h := box.Create()
	if _, ok := h.Poll(); ok {
		t.Fatalf("expected no result yet")
	}
	box.Deliver(h.Slot(), []byte("x"), true)
	res, ok := h.Poll()
	if !ok || string(res.Payload) != "x" {
		t.Fatalf("got %+v, %v", res, ok)
	}
}

func TestResponseBoxSlotReuseLIFO(t *testing.T) {
	box := NewResponseBox()
	h0 := box.Create()
	h1 := box.Create()
	h1.Release()
	h2 := box.Create()
	if h2.Slot() != h1.Slot() {
		t.Errorf("expected freed slot %d to be reused, got %d", h1.Slot(), h2.Slot())
	}
	if h0.Slot() == h2.Slot() {
		t.Errorf("slot %d should not have been reassigned", h0.Slot())
	}
}

func TestResponseBoxFailAll(t *testing.T) {
	box := NewResponseBox()
	h0 := box.Create()
	h1 := box.Create()
	sentinel := errTestBroken
	box.FailAll(sentinel)

	for _, h := range []SlotHandle{h0, h1} {
		res, err := h.Wait(context.Background())
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}
		if res.Err != sentinel || !res.IsEnd {
			t.Errorf("got %+v, want broken sentinel", res)
		}
	}
}

func TestResponseBoxDeliverAfterReleaseIsNoop(t *testing.T) {
	box := NewResponseBox()
	h := box.Create()
	h.Release()
	if box.Deliver(h.Slot(), []byte("late"), true) {
		t.Fatalf("expected Deliver to report the slot is no longer live")
	}
}

var errTestBroken = &testBrokenErr{}

type testBrokenErr struct{}

func (*testBrokenErr) Error() string { return "link broken" }
