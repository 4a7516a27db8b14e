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

import "testing"

func TestEncodeRequestHeader(t *testing.T) {
	buf := make([]byte, HeaderSize())
	EncodeRequestHeader(buf, Slot(513), 10)
	want := []byte{byte(InfoRequestSessionPayload), 0x01, 0x02, 0x0a, 0x00, 0x00, 0x00}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("byte %d: got %#x, want %#x (buf=%v)", i, buf[i], want[i], buf)
		}
	}
}

func TestEncodeHeaderOnly(t *testing.T) {
	buf := make([]byte, HeaderOnlySize())
	EncodeHeaderOnly(buf, InfoRequestCancel, Slot(7))
	want := []byte{byte(InfoRequestCancel), 0x07, 0x00}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("byte %d: got %#x, want %#x", i, buf[i], want[i])
		}
	}
}

func TestInfoIsResultSet(t *testing.T) {
	cases := map[Info]bool{
		InfoResponseResultSetPayload: true,
		InfoResponseResultSetHello:   true,
		InfoResponseResultSetBye:     true,
		InfoResponseSessionPayload:   false,
		InfoResponseSessionBodyhead:  false,
		InfoRequestCancel:            false,
	}
	for info, want := range cases {
		if got := info.IsResultSet(); got != want {
			t.Errorf("%s.IsResultSet() = %v, want %v", info, got, want)
		}
	}
}

func TestInfoHasWriterByte(t *testing.T) {
	if !InfoResponseResultSetPayload.hasWriterByte() {
		t.Errorf("RESPONSE_RESULT_SET_PAYLOAD must carry a writer byte")
	}
	if InfoResponseResultSetHello.hasWriterByte() {
		t.Errorf("RESPONSE_RESULT_SET_HELLO must not carry a writer byte")
	}
	if InfoResponseSessionPayload.hasWriterByte() {
		t.Errorf("RESPONSE_SESSION_PAYLOAD must not carry a writer byte")
	}
}

func TestInfoStringUnknown(t *testing.T) {
	got := Info(200).String()
	want := "Info(200)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
