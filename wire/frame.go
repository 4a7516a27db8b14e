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

// Package wire implements the framed session transport: Link (the
// byte-level framing over one TCP connection), ResponseBox (the
// slot-based response router), Wire (the demultiplexer that drives
// both), and DataChannel (the per-result-set byte stream). The frame
// header layout, the slot-to-handle routing, and the receive-loop
// shape are grounded on the teacher's plan.Client/server frame
// protocol in plan/partition.go: a small fixed-size binary header
// followed by a length-delimited body, read with a scratch buffer
// that tracks how many valid bytes are already buffered.
package wire

import (
	"encoding/binary"
	"fmt"
)

// Info is the one-byte frame kind that precedes every frame header.
type Info byte

const (
	// Request-direction info bytes.
	InfoRequestSessionPayload Info = 1
	InfoRequestResultSetByeOk Info = 3
	InfoRequestCancel         Info = 4

	// Response-direction info bytes.
	InfoResponseSessionPayload   Info = 5
	InfoResponseResultSetPayload Info = 6
	InfoResponseResultSetHello   Info = 7
	InfoResponseResultSetBye     Info = 8
	InfoResponseSessionBodyhead  Info = 9
)

func (i Info) String() string {
	switch i {
	case InfoRequestSessionPayload:
		return "REQUEST_SESSION_PAYLOAD"
	case InfoRequestResultSetByeOk:
		return "REQUEST_RESULT_SET_BYE_OK"
	case InfoRequestCancel:
		return "REQUEST_CANCEL"
	case InfoResponseSessionPayload:
		return "RESPONSE_SESSION_PAYLOAD"
	case InfoResponseResultSetPayload:
		return "RESPONSE_RESULT_SET_PAYLOAD"
	case InfoResponseResultSetHello:
		return "RESPONSE_RESULT_SET_HELLO"
	case InfoResponseResultSetBye:
		return "RESPONSE_RESULT_SET_BYE"
	case InfoResponseSessionBodyhead:
		return "RESPONSE_SESSION_BODYHEAD"
	default:
		return fmt.Sprintf("Info(%d)", byte(i))
	}
}

// IsResultSet reports whether i is one of the three result-set
// frame kinds that Wire routes to a DataChannel instead of a
// ResponseBox slot.
func (i Info) IsResultSet() bool {
	switch i {
	case InfoResponseResultSetPayload, InfoResponseResultSetHello, InfoResponseResultSetBye:
		return true
	default:
		return false
	}
}

// hasWriterByte reports whether a response frame of this kind has
// the extra writer:u8 inserted before length, per the wire layout in
// spec section 6: only RESPONSE_RESULT_SET_PAYLOAD carries it.
func (i Info) hasWriterByte() bool {
	return i == InfoResponseResultSetPayload
}

// hasLength reports whether a frame of this kind is followed by a
// length field (and, for lengths greater than zero, a payload) at
// all. REQUEST_CANCEL and REQUEST_RESULT_SET_BYE_OK are pure
// acknowledgements: 3 bytes on the wire (info, slot) and nothing
// else, ever. Every other frame kind uses the general 7-byte header
// (plus the writer byte where hasWriterByte is true), with length
// zero standing in for "no payload this frame".
func (i Info) hasLength() bool {
	switch i {
	case InfoRequestCancel, InfoRequestResultSetByeOk:
		return false
	default:
		return true
	}
}

// Slot identifies one in-flight request. It is assigned by the
// client and echoed verbatim by the server on every frame belonging
// to that request.
type Slot uint16

const (
	headerSize       = 7 // info:u8 | slot:u16 LE | length:u32 LE
	headerOnlySize   = 3 // info:u8 | slot:u16 LE
	writerByteSize   = 1
	maxPayloadLength = 1<<31 - 1
)

// EncodeRequestHeader writes the 7-byte request frame header (always
// REQUEST_SESSION_PAYLOAD) for a payload of the given length into
// dst, which must be at least headerSize bytes.
func EncodeRequestHeader(dst []byte, slot Slot, length int) {
	dst[0] = byte(InfoRequestSessionPayload)
	binary.LittleEndian.PutUint16(dst[1:3], uint16(slot))
	binary.LittleEndian.PutUint32(dst[3:7], uint32(length))
}

// EncodeHeaderOnly writes the 3-byte header-only frame (no payload)
// used for cancel and result-set bye-ok acknowledgements.
func EncodeHeaderOnly(dst []byte, info Info, slot Slot) {
	dst[0] = byte(info)
	binary.LittleEndian.PutUint16(dst[1:3], uint16(slot))
}

// HeaderOnlySize is the size in bytes of a header-only frame.
func HeaderOnlySize() int { return headerOnlySize }

// HeaderSize is the size in bytes of a regular frame header
// (excluding the extra writer byte on result-set payload frames).
func HeaderSize() int { return headerSize }

// Message is one fully received frame: its kind, the slot it belongs
// to, the writer id (meaningful only when Info.hasWriterByte()), and
// its payload. A zero-length, non-nil Payload is a valid "flush"
// sentinel on a data-channel writer; a nil Payload means the frame
// carried no body at all.
type Message struct {
	Info    Info
	Slot    Slot
	Writer  byte
	Payload []byte
}
