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

package value

import (
	"bytes"
	"io"
	"testing"
)

func shardByLength(name string) int { return len(name) }

func TestLOBSpoolStoreOpenUncompressed(t *testing.T) {
	dir := t.TempDir()
	spool, err := NewLOBSpool(dir, 4, shardByLength, false)
	if err != nil {
		t.Fatalf("NewLOBSpool: %v", err)
	}
	defer spool.Close()

	ref := LobReference{ID: []byte("object-1")}
	want := []byte("the quick brown fox jumps over the lazy dog")

	path, err := spool.Store(ref, bytes.NewReader(want))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if path == "" {
		t.Fatalf("Store returned empty path")
	}

	rc, err := spool.Open(ref)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestLOBSpoolStoreOpenCompressed(t *testing.T) {
	dir := t.TempDir()
	spool, err := NewLOBSpool(dir, 4, shardByLength, true)
	if err != nil {
		t.Fatalf("NewLOBSpool: %v", err)
	}
	defer spool.Close()

	ref := LobReference{ID: []byte("object-2")}
	want := bytes.Repeat([]byte("compress me please "), 200)

	if _, err := spool.Store(ref, bytes.NewReader(want)); err != nil {
		t.Fatalf("Store: %v", err)
	}

	rc, err := spool.Open(ref)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d bytes", len(got), len(want))
	}
}

func TestLOBSpoolOpenMissingObject(t *testing.T) {
	dir := t.TempDir()
	spool, err := NewLOBSpool(dir, 1, nil, false)
	if err != nil {
		t.Fatalf("NewLOBSpool: %v", err)
	}
	defer spool.Close()

	_, err = spool.Open(LobReference{ID: []byte("never-stored")})
	if err == nil {
		t.Fatalf("expected an error opening an object that was never stored")
	}
}

func TestLOBSpoolRemove(t *testing.T) {
	dir := t.TempDir()
	spool, err := NewLOBSpool(dir, 1, nil, false)
	if err != nil {
		t.Fatalf("NewLOBSpool: %v", err)
	}
	defer spool.Close()

	ref := LobReference{ID: []byte("object-3")}
	if _, err := spool.Store(ref, bytes.NewReader([]byte("data"))); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := spool.Remove(ref); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := spool.Remove(ref); err != nil {
		t.Fatalf("Remove of an already-removed object should be a no-op, got %v", err)
	}
	if _, err := spool.Open(ref); err == nil {
		t.Fatalf("expected Open to fail after Remove")
	}
}
