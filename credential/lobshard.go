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

import (
	"github.com/dchest/siphash"

	"github.com/tsurugidb/tsurugi-go/value"
)

// Fixed random key, same role as tenantSegment.ETag's k0/k1 in the
// teacher: an arbitrary but stable pair so the same object name
// always hashes to the same shard across client runs.
const (
	lobShardKey0 uint64 = 0x5fe862d54b1bb9f3
	lobShardKey1 uint64 = 0x2b3c6a7d1e9f4c58
)

// DefaultLOBShards is the shard count LobShard assumes.
const DefaultLOBShards = 256

// LobShard hashes name, a BLOB/CLOB object name resolved through
// ConnectionOptions' large-object path mapping, onto a shard index in
// [0, DefaultLOBShards).
func LobShard(name string) int {
	return int(siphash.Hash(lobShardKey0, lobShardKey1, []byte(name)) % DefaultLOBShards)
}

// LobShardFunc returns a value.ShardFunc hashing over shardCount
// shards instead of DefaultLOBShards, for a value.LOBSpool
// constructed with a non-default shard count.
func LobShardFunc(shardCount int) value.ShardFunc {
	if shardCount < 1 {
		shardCount = 1
	}
	n := uint64(shardCount)
	return func(name string) int {
		return int(siphash.Hash(lobShardKey0, lobShardKey1, []byte(name)) % n)
	}
}
