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
	"context"
	"encoding/binary"
	"math"
	"math/big"
	"unicode/utf8"

	"github.com/tsurugidb/tsurugi-go/date"
	"github.com/tsurugidb/tsurugi-go/tgerr"
	"github.com/tsurugidb/tsurugi-go/wire"
)

type rowState int

const (
	stateBeforeRow rowState = iota
	stateInRow
	stateColumnRead
	stateEndOfStream
)

// LobReference is an opaque server-issued handle to a BLOB or CLOB
// value; its bytes carry no meaning to the client beyond being
// presented back to the SQL service's object-read operation.
type LobReference struct {
	ID []byte
}

// ValueStream reads a stream of rows, each a fixed number of columns
// in the tag-prefixed wire encoding, off a wire.DataChannel. See the
// package doc for the tag byte layout and NextRow/NextColumn for the
// state machine client code is expected to drive:
//
//	for {
//	  more, err := vs.NextRow()
//	  if !more { break }
//	  for { more, err := vs.NextColumn(); if !more { break }
//	    if null, _ := vs.IsNull(); !null {
//	      v, err := vs.FetchInt8()
//	    }
//	  }
//	}
type ValueStream struct {
	ctx context.Context
	r   *chunkReader
	dc  *wire.DataChannel

	columnCount int
	columnIndex int
	state       rowState

	tagType Type
	tagLo   byte
	isNull  bool
}

// NewValueStream returns a ValueStream over dc. columnCount is the
// number of columns per row, taken from the query's result set
// metadata (obtained separately from the service/sql client).
func NewValueStream(ctx context.Context, dc *wire.DataChannel, columnCount int) *ValueStream {
	return &ValueStream{
		ctx:         ctx,
		r:           newChunkReader(ctx, dc),
		dc:          dc,
		columnCount: columnCount,
		state:       stateBeforeRow,
	}
}

// NextRow positions the stream at the first column of the next row.
// It returns false (with a nil error) once the result set is
// exhausted. Calling it before the previous row's columns have all
// been consumed is a usage error.
func (v *ValueStream) NextRow() (bool, error) {
	if v.state == stateEndOfStream {
		return false, nil
	}
	if v.state != stateBeforeRow {
		return false, tgerr.Client("NextRow called before column %d/%d of the current row was read", v.columnIndex, v.columnCount)
	}
	if len(v.r.buf) == 0 {
		ok, err := v.dc.Pull(v.ctx)
		if err != nil {
			return false, err
		}
		if !ok {
			v.state = stateEndOfStream
			return false, nil
		}
	}
	v.columnIndex = 0
	return true, nil
}

// NextColumn advances to the next column of the current row. It
// returns false once every column of the row has been read, at which
// point the stream is positioned to accept another NextRow call.
func (v *ValueStream) NextColumn() (bool, error) {
	if v.state != stateBeforeRow && v.state != stateColumnRead && !(v.state == stateInRow && v.isNull) {
		return false, tgerr.Client("NextColumn called from an invalid state")
	}
	if v.columnIndex >= v.columnCount {
		v.state = stateBeforeRow
		v.columnIndex = 0
		return false, nil
	}
	tag, err := v.r.readByte()
	if err != nil {
		return false, err
	}
	v.tagType, v.tagLo = decodeTag(tag)
	v.isNull = v.tagLo == lengthNull
	v.state = stateInRow
	v.columnIndex++
	return true, nil
}

// IsNull reports whether the current column (the one NextColumn just
// landed on) is SQL NULL. Valid only while positioned on a column
// whose tag has been read but not yet fetched.
func (v *ValueStream) IsNull() (bool, error) {
	if v.state != stateInRow {
		return false, tgerr.Client("IsNull queryable only between NextColumn and fetch")
	}
	return v.isNull, nil
}

func (v *ValueStream) expectType(t Type) error {
	if v.state != stateInRow {
		return tgerr.Client("fetch called from an invalid state")
	}
	if v.isNull || v.tagType != t {
		return tgerr.ErrBrokenRelation
	}
	return nil
}

func (v *ValueStream) done() { v.state = stateColumnRead }

// FetchBoolean reads the current column as BOOLEAN.
func (v *ValueStream) FetchBoolean() (bool, error) {
	if err := v.expectType(TypeBoolean); err != nil {
		return false, err
	}
	b, err := v.r.readByte()
	if err != nil {
		return false, err
	}
	v.done()
	return b != 0, nil
}

// FetchInt4 reads the current column as INT4.
func (v *ValueStream) FetchInt4() (int32, error) {
	if err := v.expectType(TypeInt4); err != nil {
		return 0, err
	}
	b, err := v.r.readN(4)
	if err != nil {
		return 0, err
	}
	v.done()
	return int32(binary.BigEndian.Uint32(b)), nil
}

// FetchInt8 reads the current column as INT8.
func (v *ValueStream) FetchInt8() (int64, error) {
	if err := v.expectType(TypeInt8); err != nil {
		return 0, err
	}
	b, err := v.r.readN(8)
	if err != nil {
		return 0, err
	}
	v.done()
	return int64(binary.BigEndian.Uint64(b)), nil
}

// FetchFloat4 reads the current column as FLOAT4.
func (v *ValueStream) FetchFloat4() (float32, error) {
	if err := v.expectType(TypeFloat4); err != nil {
		return 0, err
	}
	b, err := v.r.readN(4)
	if err != nil {
		return 0, err
	}
	v.done()
	return math.Float32frombits(binary.BigEndian.Uint32(b)), nil
}

// FetchFloat8 reads the current column as FLOAT8.
func (v *ValueStream) FetchFloat8() (float64, error) {
	if err := v.expectType(TypeFloat8); err != nil {
		return 0, err
	}
	b, err := v.r.readN(8)
	if err != nil {
		return 0, err
	}
	v.done()
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

// FetchDecimal reads the current column as DECIMAL: a signed
// exponent byte followed by a length-prefixed signed-magnitude
// coefficient. The coefficient always decodes into a math/big.Int,
// whether or not it would have fit a 128-bit fixed-width
// representation on the wire.
func (v *ValueStream) FetchDecimal() (Decimal, error) {
	if err := v.expectType(TypeDecimal); err != nil {
		return Decimal{}, err
	}
	expByte, err := v.r.readByte()
	if err != nil {
		return Decimal{}, err
	}
	n, err := v.r.readLength(v.tagLo)
	if err != nil {
		return Decimal{}, err
	}
	coeffBytes, err := v.r.readN(n)
	if err != nil {
		return Decimal{}, err
	}
	v.done()
	return Decimal{
		Coefficient: decodeSignedMagnitude(coeffBytes),
		Exponent:    int32(int8(expByte)),
	}, nil
}

// FetchCharacter reads the current column as CHARACTER, validating
// that the bytes are well-formed UTF-8.
func (v *ValueStream) FetchCharacter() (string, error) {
	if err := v.expectType(TypeCharacter); err != nil {
		return "", err
	}
	n, err := v.r.readLength(v.tagLo)
	if err != nil {
		return "", err
	}
	b, err := v.r.readN(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", tgerr.ErrBrokenEncoding
	}
	v.done()
	return string(b), nil
}

// FetchOctet reads the current column as OCTET (raw bytes).
func (v *ValueStream) FetchOctet() ([]byte, error) {
	if err := v.expectType(TypeOctet); err != nil {
		return nil, err
	}
	n, err := v.r.readLength(v.tagLo)
	if err != nil {
		return nil, err
	}
	b, err := v.r.readN(n)
	if err != nil {
		return nil, err
	}
	v.done()
	return b, nil
}

// FetchDate reads the current column as DATE.
func (v *ValueStream) FetchDate() (date.Date, error) {
	if err := v.expectType(TypeDate); err != nil {
		return 0, err
	}
	b, err := v.r.readN(8)
	if err != nil {
		return 0, err
	}
	v.done()
	return date.Date(int64(binary.BigEndian.Uint64(b))), nil
}

// FetchTimeOfDay reads the current column as TIME_OF_DAY.
func (v *ValueStream) FetchTimeOfDay() (date.TimeOfDay, error) {
	if err := v.expectType(TypeTimeOfDay); err != nil {
		return 0, err
	}
	b, err := v.r.readN(8)
	if err != nil {
		return 0, err
	}
	v.done()
	return date.TimeOfDay(int64(binary.BigEndian.Uint64(b))), nil
}

// FetchTimeOfDayWithOffset reads the current column as
// TIME_OF_DAY_WITH_TIME_ZONE.
func (v *ValueStream) FetchTimeOfDayWithOffset() (date.TimeOfDayWithOffset, error) {
	if err := v.expectType(TypeTimeOfDayWithOffset); err != nil {
		return date.TimeOfDayWithOffset{}, err
	}
	b, err := v.r.readN(10)
	if err != nil {
		return date.TimeOfDayWithOffset{}, err
	}
	v.done()
	nanos := int64(binary.BigEndian.Uint64(b[:8]))
	offset := int16(binary.BigEndian.Uint16(b[8:10]))
	return date.TimeOfDayWithOffset{TimeOfDay: date.TimeOfDay(nanos), OffsetMinutes: int(offset)}, nil
}

// FetchTimePoint reads the current column as TIME_POINT.
func (v *ValueStream) FetchTimePoint() (date.TimePoint, error) {
	if err := v.expectType(TypeTimePoint); err != nil {
		return date.TimePoint{}, err
	}
	b, err := v.r.readN(12)
	if err != nil {
		return date.TimePoint{}, err
	}
	v.done()
	seconds := int64(binary.BigEndian.Uint64(b[:8]))
	nanoAdj := int32(binary.BigEndian.Uint32(b[8:12]))
	return date.TimePoint{Seconds: seconds, NanoAdjustment: int64(nanoAdj)}, nil
}

// FetchTimePointWithOffset reads the current column as
// TIME_POINT_WITH_TIME_ZONE.
func (v *ValueStream) FetchTimePointWithOffset() (date.TimePointWithOffset, error) {
	if err := v.expectType(TypeTimePointWithOffset); err != nil {
		return date.TimePointWithOffset{}, err
	}
	b, err := v.r.readN(14)
	if err != nil {
		return date.TimePointWithOffset{}, err
	}
	v.done()
	seconds := int64(binary.BigEndian.Uint64(b[:8]))
	nanoAdj := int32(binary.BigEndian.Uint32(b[8:12]))
	offset := int16(binary.BigEndian.Uint16(b[12:14]))
	return date.TimePointWithOffset{
		TimePoint:     date.TimePoint{Seconds: seconds, NanoAdjustment: int64(nanoAdj)},
		OffsetMinutes: int(offset),
	}, nil
}

// FetchBlobReference reads the current column as a BLOB reference.
func (v *ValueStream) FetchBlobReference() (LobReference, error) {
	return v.fetchLobReference(TypeBlobReference)
}

// FetchClobReference reads the current column as a CLOB reference.
func (v *ValueStream) FetchClobReference() (LobReference, error) {
	return v.fetchLobReference(TypeClobReference)
}

func (v *ValueStream) fetchLobReference(t Type) (LobReference, error) {
	if err := v.expectType(t); err != nil {
		return LobReference{}, err
	}
	n, err := v.r.readLength(v.tagLo)
	if err != nil {
		return LobReference{}, err
	}
	b, err := v.r.readN(n)
	if err != nil {
		return LobReference{}, err
	}
	v.done()
	return LobReference{ID: b}, nil
}

// bigIntFits128 reports whether v fits a 128-bit signed-magnitude
// coefficient (127 magnitude bits plus the sign bit). The encoder in
// encode.go does not call it.
func bigIntFits128(v *big.Int) bool {
	return v.BitLen() <= 127 // leave room for the sign bit
}
