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

package credential

import "testing"

func TestLobShardIsDeterministicAndInRange(t *testing.T) {
	names := []string{"object-a", "object-b", "a-much-longer-object-name-here", ""}
	for _, name := range names {
		first := LobShard(name)
		if first < 0 || first >= DefaultLOBShards {
			t.Fatalf("LobShard(%q) = %d, out of [0, %d)", name, first, DefaultLOBShards)
		}
		if second := LobShard(name); second != first {
			t.Fatalf("LobShard(%q) not deterministic: %d vs %d", name, first, second)
		}
	}
}

func TestLobShardDistributesAcrossShards(t *testing.T) {
	seen := make(map[int]bool)
	for i := 0; i < 1000; i++ {
		name := string(rune('a' + i%26))
		for j := 0; j < i/26+1; j++ {
			name += "x"
		}
		seen[LobShard(name)] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected object names to spread across more than one shard, got %v", seen)
	}
}

func TestLobShardFuncRespectsShardCount(t *testing.T) {
	fn := LobShardFunc(4)
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		if s := fn(name); s < 0 || s >= 4 {
			t.Fatalf("LobShardFunc(4)(%q) = %d, out of [0,4)", name, s)
		}
	}
}

func TestLobShardFuncRejectsNonPositiveShardCount(t *testing.T) {
	fn := LobShardFunc(0)
	if s := fn("anything"); s != 0 {
		t.Fatalf("expected shard 0 for a non-positive shard count, got %d", s)
	}
}
