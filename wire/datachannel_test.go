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

func TestDataChannelSingleWriterReadAll(t *testing.T) {
	dc := NewDataChannel("rs-0")
	dc.AddWriterPayload(0, []byte("abc"))
	dc.FlushWriter(0)
	dc.Bye(nil)

	ctx := context.Background()
	ok, err := dc.Pull(ctx)
	if !ok || err != nil {
		t.Fatalf("Pull: ok=%v err=%v", ok, err)
	}
	got := dc.ReadAll()
	if string(got) != "abc" {
		t.Fatalf("got %q, want %q", got, "abc")
	}
	ok, err = dc.Pull(ctx)
	if ok || err != nil {
		t.Fatalf("expected end of channel, got ok=%v err=%v", ok, err)
	}
}

func TestDataChannelReadU8ByteAtATime(t *testing.T) {
	dc := NewDataChannel("rs-0")
	dc.AddWriterPayload(0, []byte{1, 2, 3})
	dc.FlushWriter(0)
	dc.Bye(nil)

	ctx := context.Background()
	var got []byte
	for {
		ok, err := dc.Pull(ctx)
		if err != nil {
			t.Fatalf("Pull: %v", err)
		}
		if !ok {
			break
		}
		b, err := dc.ReadU8()
		if err != nil {
			t.Fatalf("ReadU8: %v", err)
		}
		got = append(got, b)
	}
	want := []byte{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDataChannelMultipleWritersInOrder(t *testing.T) {
	dc := NewDataChannel("rs-0")
	dc.AddWriterPayload(0, []byte("first"))
	dc.FlushWriter(0)
	dc.AddWriterPayload(1, []byte("second"))
	dc.FlushWriter(1)
	dc.Bye(nil)

	ctx := context.Background()
	var segments []string
	for {
		ok, err := dc.Pull(ctx)
		if err != nil {
			t.Fatalf("Pull: %v", err)
		}
		if !ok {
			break
		}
		segments = append(segments, string(dc.ReadAll()))
	}
	if len(segments) != 2 || segments[0] != "first" || segments[1] != "second" {
		t.Fatalf("got %v, want [first second]", segments)
	}
}

func TestDataChannelPullBlocksUntilPayloadArrives(t *testing.T) {
	dc := NewDataChannel("rs-0")
	go func() {
		time.Sleep(10 * time.Millisecond)
		dc.AddWriterPayload(0, []byte("late"))
		dc.FlushWriter(0)
		dc.Bye(nil)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ok, err := dc.Pull(ctx)
	if !ok || err != nil {
		t.Fatalf("Pull: ok=%v err=%v", ok, err)
	}
	if string(dc.ReadAll()) != "late" {
		t.Fatalf("payload not observed after wake")
	}
}

func TestDataChannelPullReportsLinkBreak(t *testing.T) {
	dc := NewDataChannel("rs-0")
	sentinel := errTestBroken
	dc.Bye(sentinel)

	ok, err := dc.Pull(context.Background())
	if ok || err != sentinel {
		t.Fatalf("got ok=%v err=%v, want (false, %v)", ok, err, sentinel)
	}
}

func TestDataChannelPullRespectsContextTimeout(t *testing.T) {
	dc := NewDataChannel("rs-0")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := dc.Pull(ctx); err == nil {
		t.Fatalf("expected timeout error")
	}
}
