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

package proto

import (
	"bytes"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestBuildRequestRoundTrip(t *testing.T) {
	body := []byte("service-specific-body")
	const command protowire.Number = 7
	msg := BuildRequest(ServiceIDSQL, 42, command, body)

	hdr, rest, err := UnmarshalFrameworkRequestHeader(msg)
	if err != nil {
		t.Fatalf("UnmarshalFrameworkRequestHeader: %v", err)
	}
	if hdr.ServiceID != uint64(ServiceIDSQL) {
		t.Errorf("ServiceID = %d, want %d", hdr.ServiceID, ServiceIDSQL)
	}
	if hdr.SessionID != 42 {
		t.Errorf("SessionID = %d, want 42", hdr.SessionID)
	}
	gotCommand, gotBody, err := UnmarshalCommand(rest)
	if err != nil {
		t.Fatalf("UnmarshalCommand: %v", err)
	}
	if gotCommand != command {
		t.Errorf("command = %d, want %d", gotCommand, command)
	}
	if !bytes.Equal(gotBody, body) {
		t.Errorf("body = %q, want %q", gotBody, body)
	}
}

func TestBuildRequestDistinguishesCommands(t *testing.T) {
	body := []byte("same-body")
	a := BuildRequest(ServiceIDCore, 1, 1, body)
	b := BuildRequest(ServiceIDCore, 1, 2, body)
	if bytes.Equal(a, b) {
		t.Fatalf("requests with different commands serialized identically")
	}
}

func TestFieldHelpersRoundTrip(t *testing.T) {
	var dst []byte
	dst = AppendVarintField(dst, 1, 7)
	dst = AppendBytesField(dst, 2, []byte("hello"))

	num, typ, n := ConsumeTag(dst)
	if num != 1 || typ != protowire.VarintType {
		t.Fatalf("first tag: num=%d typ=%d", num, typ)
	}
	dst = dst[n:]
	v, rest, err := ConsumeVarintField(dst, typ)
	if err != nil || v != 7 {
		t.Fatalf("ConsumeVarintField: v=%d err=%v", v, err)
	}

	num, typ, n = ConsumeTag(rest)
	if num != 2 || typ != protowire.BytesType {
		t.Fatalf("second tag: num=%d typ=%d", num, typ)
	}
	rest = rest[n:]
	b, rest, err := ConsumeBytesField(rest, typ)
	if err != nil || string(b) != "hello" {
		t.Fatalf("ConsumeBytesField: b=%q err=%v", b, err)
	}
	if len(rest) != 0 {
		t.Fatalf("expected no trailing bytes, got %d", len(rest))
	}
}
