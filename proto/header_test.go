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

import "testing"

func TestFrameworkRequestHeaderRoundTrip(t *testing.T) {
	h := FrameworkRequestHeader{
		ServiceMessageVersionMajor: 1,
		ServiceMessageVersionMinor: 0,
		ServiceID:                 3,
		SessionID:                 42,
	}
	buf := h.Marshal(nil)
	buf = append(buf, 0xde, 0xad, 0xbe, 0xef) // trailing service body
	got, rest, err := UnmarshalFrameworkRequestHeader(buf)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != h {
		t.Errorf("got %+v, want %+v", got, h)
	}
	if len(rest) != 4 {
		t.Errorf("expected 4 trailing bytes, got %d", len(rest))
	}
}

func TestFrameworkResponseHeaderServiceResult(t *testing.T) {
	buf := MarshalFrameworkResponseHeader(FrameworkResponseHeader{PayloadType: PayloadTypeServiceResult})
	buf = append(buf, []byte("payload")...)
	h, rest, err := UnmarshalFrameworkResponseHeader(buf)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if h.PayloadType != PayloadTypeServiceResult {
		t.Errorf("expected service result payload type")
	}
	if string(rest) != "payload" {
		t.Errorf("expected trailing payload bytes, got %q", rest)
	}
}

func TestFrameworkResponseHeaderDiagnostics(t *testing.T) {
	diag := DiagnosticRecord{Category: 3, Code: 3004, Message: "relation does not exist", Name: "SYMBOL_ANALYZE_EXCEPTION"}
	buf := MarshalFrameworkResponseHeader(FrameworkResponseHeader{
		PayloadType: PayloadTypeDiagnostics,
		Diagnostics: &diag,
	})
	h, rest, err := UnmarshalFrameworkResponseHeader(buf)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if h.PayloadType != PayloadTypeDiagnostics {
		t.Fatalf("expected diagnostics payload type")
	}
	if h.Diagnostics == nil {
		t.Fatalf("expected non-nil diagnostics")
	}
	if *h.Diagnostics != diag {
		t.Errorf("got %+v, want %+v", *h.Diagnostics, diag)
	}
	if len(rest) != 0 {
		t.Errorf("expected no trailing bytes, got %d", len(rest))
	}
}
