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

package tgerr

import (
	"errors"
	"io"
	"testing"
)

func TestKindString(t *testing.T) {
	cases := []struct {
		k    Kind
		want string
	}{
		{KindClient, "ClientError"},
		{KindTimeout, "TimeoutError"},
		{KindIO, "IoError"},
		{KindServer, "ServerError"},
	}
	for _, c := range cases {
		if got := c.k.String(); got != c.want {
			t.Errorf("Kind(%d).String() = %q, want %q", c.k, got, c.want)
		}
	}
}

func TestErrorUnwrap(t *testing.T) {
	err := IO(io.ErrClosedPipe, "reading frame")
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("expected errors.Is to see through to the wrapped cause")
	}
}

func TestIsTimeout(t *testing.T) {
	err := Timeout("deadline exceeded waiting for slot %d", 7)
	if !IsTimeout(err) {
		t.Fatalf("expected IsTimeout(err) to be true")
	}
	if IsIO(err) {
		t.Fatalf("expected IsIO(err) to be false for a timeout error")
	}
}

func TestServerErrorFormat(t *testing.T) {
	diag := NewDiagnosticCode(CategorySQL, 3004, "SYMBOL_ANALYZE_EXCEPTION")
	err := Server(diag, "relation \"nonexistent\" does not exist")
	want := "ServerError: relation \"nonexistent\" does not exist (SQL-03004 (SYMBOL_ANALYZE_EXCEPTION))"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	gotDiag, ok := IsServer(err)
	if !ok {
		t.Fatalf("expected IsServer to recognize the error")
	}
	if gotDiag.Short() != "SQL-03004" {
		t.Errorf("Short() = %q, want SQL-03004", gotDiag.Short())
	}
}

func TestErrorIsByKind(t *testing.T) {
	e1 := Client("already closed")
	e2 := Client("already taken")
	if !errors.Is(e1, ErrAlreadyClosed) {
		t.Fatalf("expected errors.Is(e1, ErrAlreadyClosed)")
	}
	if !errors.Is(e2, ErrAlreadyClosed) {
		// different messages but same kind; Is compares by kind only
		t.Fatalf("expected errors.Is to match a ClientError with a different message")
	}
	if e1.Kind != e2.Kind {
		t.Fatalf("expected both ClientErrors to share Kind")
	}
}
