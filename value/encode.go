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
	"encoding/binary"
	"math"

	"github.com/tsurugidb/tsurugi-go/date"
)

// appendLength appends n as an unsigned LEB128 varint, the explicit
// length that follows a tag whose low nibble is lengthExtended
// (lengthTagLo chooses between that and an inline length).
func appendLength(dst []byte, n int) []byte {
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n != 0 {
			dst = append(dst, b|0x80)
			continue
		}
		return append(dst, b)
	}
}

func lengthTagLo(n int) byte {
	if n <= maxInlineLength {
		return byte(n)
	}
	return lengthExtended
}

func appendVariable(dst []byte, t Type, payload []byte) []byte {
	lo := lengthTagLo(len(payload))
	dst = append(dst, makeTag(t, lo))
	if lo == lengthExtended {
		dst = appendLength(dst, len(payload))
	}
	return append(dst, payload...)
}

// AppendNull appends a NULL value of the given type.
func AppendNull(dst []byte, t Type) []byte {
	return append(dst, makeTag(t, lengthNull))
}

// AppendBoolean appends a BOOLEAN parameter value.
func AppendBoolean(dst []byte, v bool) []byte {
	dst = append(dst, makeTag(TypeBoolean, 0))
	if v {
		return append(dst, 1)
	}
	return append(dst, 0)
}

// AppendInt4 appends an INT4 parameter value.
func AppendInt4(dst []byte, v int32) []byte {
	dst = append(dst, makeTag(TypeInt4, 0))
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return append(dst, b[:]...)
}

// AppendInt8 appends an INT8 parameter value.
func AppendInt8(dst []byte, v int64) []byte {
	dst = append(dst, makeTag(TypeInt8, 0))
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	return append(dst, b[:]...)
}

// AppendFloat4 appends a FLOAT4 parameter value.
func AppendFloat4(dst []byte, v float32) []byte {
	dst = append(dst, makeTag(TypeFloat4, 0))
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], math.Float32bits(v))
	return append(dst, b[:]...)
}

// AppendFloat8 appends a FLOAT8 parameter value.
func AppendFloat8(dst []byte, v float64) []byte {
	dst = append(dst, makeTag(TypeFloat8, 0))
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	return append(dst, b[:]...)
}

// AppendDecimal appends a DECIMAL parameter value.
func AppendDecimal(dst []byte, d Decimal) []byte {
	coeff := encodeSignedMagnitude(d.Coefficient)
	lo := lengthTagLo(len(coeff))
	dst = append(dst, makeTag(TypeDecimal, lo))
	dst = append(dst, byte(int8(d.Exponent)))
	if lo == lengthExtended {
		dst = appendLength(dst, len(coeff))
	}
	return append(dst, coeff...)
}

// AppendCharacter appends a CHARACTER parameter value.
func AppendCharacter(dst []byte, v string) []byte {
	return appendVariable(dst, TypeCharacter, []byte(v))
}

// AppendOctet appends an OCTET parameter value.
func AppendOctet(dst []byte, v []byte) []byte {
	return appendVariable(dst, TypeOctet, v)
}

// AppendDate appends a DATE parameter value.
func AppendDate(dst []byte, v date.Date) []byte {
	dst = append(dst, makeTag(TypeDate, 0))
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	return append(dst, b[:]...)
}

// AppendTimeOfDay appends a TIME_OF_DAY parameter value.
func AppendTimeOfDay(dst []byte, v date.TimeOfDay) []byte {
	dst = append(dst, makeTag(TypeTimeOfDay, 0))
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	return append(dst, b[:]...)
}

// AppendTimeOfDayWithOffset appends a
// TIME_OF_DAY_WITH_TIME_ZONE parameter value.
func AppendTimeOfDayWithOffset(dst []byte, v date.TimeOfDayWithOffset) []byte {
	dst = append(dst, makeTag(TypeTimeOfDayWithOffset, 0))
	var b [10]byte
	binary.BigEndian.PutUint64(b[:8], uint64(v.TimeOfDay))
	binary.BigEndian.PutUint16(b[8:10], uint16(int16(v.OffsetMinutes)))
	return append(dst, b[:]...)
}

// AppendTimePoint appends a TIME_POINT parameter value.
func AppendTimePoint(dst []byte, v date.TimePoint) []byte {
	dst = append(dst, makeTag(TypeTimePoint, 0))
	var b [12]byte
	binary.BigEndian.PutUint64(b[:8], uint64(v.Seconds))
	binary.BigEndian.PutUint32(b[8:12], uint32(int32(v.NanoAdjustment)))
	return append(dst, b[:]...)
}

// AppendTimePointWithOffset appends a TIME_POINT_WITH_TIME_ZONE
// parameter value.
func AppendTimePointWithOffset(dst []byte, v date.TimePointWithOffset) []byte {
	dst = append(dst, makeTag(TypeTimePointWithOffset, 0))
	var b [14]byte
	binary.BigEndian.PutUint64(b[:8], uint64(v.Seconds))
	binary.BigEndian.PutUint32(b[8:12], uint32(int32(v.NanoAdjustment)))
	binary.BigEndian.PutUint16(b[12:14], uint16(int16(v.OffsetMinutes)))
	return append(dst, b[:]...)
}
