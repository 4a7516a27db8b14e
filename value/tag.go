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

// Package value implements the typed SQL value codec: the wire
// encoding of one row's columns, read incrementally off a
// wire.DataChannel by ValueStream, plus the reverse encoding used to
// build parameter values for prepared statement execution.
//
// Every column value is prefixed by one tag byte whose high nibble
// names the SQL type and whose low nibble is either an inline length,
// the escape value lengthExtended (an explicit length follows as a
// varint), or the escape value lengthNull (the column value is SQL
// NULL and no further bytes follow). This is the same
// type-in-high-nibble / length-in-low-nibble texture as the teacher's
// ion TLV descriptor byte (see ion.DecodeTLV), generalized with an
// explicit null escape instead of ion's per-type null tags.
package value

// Type is the SQL value type named by a tag byte's high nibble.
type Type byte

const (
	TypeBoolean             Type = 0
	TypeInt4                Type = 1
	TypeInt8                Type = 2
	TypeFloat4              Type = 3
	TypeFloat8              Type = 4
	TypeDecimal             Type = 5
	TypeCharacter            Type = 6
	TypeOctet                Type = 7
	TypeDate                 Type = 8
	TypeTimeOfDay            Type = 9
	TypeTimeOfDayWithOffset  Type = 10
	TypeTimePoint            Type = 11
	TypeTimePointWithOffset  Type = 12
	TypeBlobReference        Type = 13
	TypeClobReference        Type = 14
)

func (t Type) String() string {
	switch t {
	case TypeBoolean:
		return "BOOLEAN"
	case TypeInt4:
		return "INT4"
	case TypeInt8:
		return "INT8"
	case TypeFloat4:
		return "FLOAT4"
	case TypeFloat8:
		return "FLOAT8"
	case TypeDecimal:
		return "DECIMAL"
	case TypeCharacter:
		return "CHARACTER"
	case TypeOctet:
		return "OCTET"
	case TypeDate:
		return "DATE"
	case TypeTimeOfDay:
		return "TIME_OF_DAY"
	case TypeTimeOfDayWithOffset:
		return "TIME_OF_DAY_WITH_TIME_ZONE"
	case TypeTimePoint:
		return "TIME_POINT"
	case TypeTimePointWithOffset:
		return "TIME_POINT_WITH_TIME_ZONE"
	case TypeBlobReference:
		return "BLOB"
	case TypeClobReference:
		return "CLOB"
	default:
		return "UNKNOWN"
	}
}

const (
	// lengthExtended in a tag's low nibble means the real length is
	// encoded as a following unsigned varint rather than fitting in
	// the 4 available bits.
	lengthExtended = 0x0e
	// lengthNull in a tag's low nibble means this column's value is
	// SQL NULL; no payload bytes follow the tag.
	lengthNull = 0x0f
	// maxInlineLength is the largest length (in bytes) that fits
	// directly in a tag's low nibble.
	maxInlineLength = 0x0d
)

func makeTag(t Type, lo byte) byte {
	return byte(t)<<4 | lo
}

func decodeTag(tag byte) (t Type, lo byte) {
	return Type(tag >> 4), tag & 0x0f
}
