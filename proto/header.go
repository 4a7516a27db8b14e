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

// Package proto implements the length-delimited framework envelopes
// that Wire wraps around every service request and response.
//
// The real Tsurugi wire protocol describes these envelopes (and the
// service-specific payloads carried inside them) with generated
// protobuf message types; regenerating or vendoring that schema is
// explicitly out of scope for this client (see spec section 1). What
// is in scope is the framing discipline itself: every message on the
// session payload path is a sequence of length-delimited submessages.
// This package reproduces that framing with
// google.golang.org/protobuf/encoding/protowire's low-level
// varint/length-delimited primitives, hand-writing just the handful
// of fields this client actually needs to interpret.
package proto

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers for FrameworkRequestHeader.
const (
	reqFieldServiceMessageVersionMajor protowire.Number = 1
	reqFieldServiceMessageVersionMinor protowire.Number = 2
	reqFieldServiceID                  protowire.Number = 3
	reqFieldSessionID                  protowire.Number = 4
)

// FrameworkRequestHeader is prepended, length-delimited, to every
// service request payload sent over a session-payload frame.
type FrameworkRequestHeader struct {
	ServiceMessageVersionMajor uint64
	ServiceMessageVersionMinor uint64
	ServiceID                  uint64
	SessionID                  uint64
}

// Marshal appends the length-delimited encoding of h to dst.
func (h FrameworkRequestHeader) Marshal(dst []byte) []byte {
	body := h.marshalBody(nil)
	return protowire.AppendBytes(dst, body)
}

func (h FrameworkRequestHeader) marshalBody(dst []byte) []byte {
	dst = appendVarintField(dst, reqFieldServiceMessageVersionMajor, h.ServiceMessageVersionMajor)
	dst = appendVarintField(dst, reqFieldServiceMessageVersionMinor, h.ServiceMessageVersionMinor)
	dst = appendVarintField(dst, reqFieldServiceID, h.ServiceID)
	dst = appendVarintField(dst, reqFieldSessionID, h.SessionID)
	return dst
}

// UnmarshalFrameworkRequestHeader consumes one length-delimited
// FrameworkRequestHeader from the front of msg and returns the
// decoded header plus the remaining bytes.
func UnmarshalFrameworkRequestHeader(msg []byte) (FrameworkRequestHeader, []byte, error) {
	body, rest, err := consumeBytes(msg)
	if err != nil {
		return FrameworkRequestHeader{}, nil, fmt.Errorf("proto: reading request header: %w", err)
	}
	var h FrameworkRequestHeader
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return FrameworkRequestHeader{}, nil, protowire.ParseError(n)
		}
		body = body[n:]
		switch num {
		case reqFieldServiceMessageVersionMajor:
			h.ServiceMessageVersionMajor, body, err = consumeVarint(body, typ)
		case reqFieldServiceMessageVersionMinor:
			h.ServiceMessageVersionMinor, body, err = consumeVarint(body, typ)
		case reqFieldServiceID:
			h.ServiceID, body, err = consumeVarint(body, typ)
		case reqFieldSessionID:
			h.SessionID, body, err = consumeVarint(body, typ)
		default:
			body, err = skipField(body, typ)
		}
		if err != nil {
			return FrameworkRequestHeader{}, nil, err
		}
	}
	return h, rest, nil
}

// Field numbers for FrameworkResponseHeader.
const (
	respFieldPayloadType       protowire.Number = 1
	respFieldServerDiagnostics protowire.Number = 2
)

// PayloadType distinguishes a normal service response body from a
// server-originated diagnostic.
type PayloadType uint64

const (
	PayloadTypeServiceResult PayloadType = 0
	PayloadTypeDiagnostics   PayloadType = 1
)

// FrameworkResponseHeader is stripped, length-delimited, from the
// front of every RESPONSE_SESSION_PAYLOAD / RESPONSE_SESSION_BODYHEAD
// frame before the remaining bytes are handed to a service client.
type FrameworkResponseHeader struct {
	PayloadType PayloadType
	Diagnostics *DiagnosticRecord // non-nil iff PayloadType == PayloadTypeDiagnostics
}

// UnmarshalFrameworkResponseHeader consumes one length-delimited
// FrameworkResponseHeader from the front of msg and returns the
// decoded header plus the remaining bytes (the service response
// body).
func UnmarshalFrameworkResponseHeader(msg []byte) (FrameworkResponseHeader, []byte, error) {
	body, rest, err := consumeBytes(msg)
	if err != nil {
		return FrameworkResponseHeader{}, nil, fmt.Errorf("proto: reading response header: %w", err)
	}
	var h FrameworkResponseHeader
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return FrameworkResponseHeader{}, nil, protowire.ParseError(n)
		}
		body = body[n:]
		switch num {
		case respFieldPayloadType:
			var v uint64
			v, body, err = consumeVarint(body, typ)
			h.PayloadType = PayloadType(v)
		case respFieldServerDiagnostics:
			var raw []byte
			raw, body, err = consumeBytesTyped(body, typ)
			if err == nil {
				var diag DiagnosticRecord
				diag, err = unmarshalDiagnosticRecord(raw)
				h.Diagnostics = &diag
			}
		default:
			body, err = skipField(body, typ)
		}
		if err != nil {
			return FrameworkResponseHeader{}, nil, err
		}
	}
	return h, rest, nil
}

// Field numbers for DiagnosticRecord.
const (
	diagFieldCategory protowire.Number = 1
	diagFieldCode      protowire.Number = 2
	diagFieldMessage   protowire.Number = 3
	diagFieldName      protowire.Number = 4
)

// DiagnosticRecord is the body of a ServerDiagnostics response
// payload: a structured category/code plus a human-readable message.
type DiagnosticRecord struct {
	Category int
	Code     int
	Message  string
	Name     string
}

func (d DiagnosticRecord) marshal(dst []byte) []byte {
	dst = appendVarintField(dst, diagFieldCategory, uint64(d.Category))
	dst = appendVarintField(dst, diagFieldCode, uint64(d.Code))
	dst = protowire.AppendTag(dst, diagFieldMessage, protowire.BytesType)
	dst = protowire.AppendString(dst, d.Message)
	if d.Name != "" {
		dst = protowire.AppendTag(dst, diagFieldName, protowire.BytesType)
		dst = protowire.AppendString(dst, d.Name)
	}
	return dst
}

// MarshalDiagnosticRecord encodes d as a length-delimited message,
// used by test fixtures that simulate a server sending a
// ServerDiagnostics response.
func MarshalDiagnosticRecord(d DiagnosticRecord) []byte {
	return protowire.AppendBytes(nil, d.marshal(nil))
}

// MarshalFrameworkResponseHeader encodes h as a length-delimited
// message, including h.Diagnostics when it is set; used by test
// fixtures that simulate both service results and diagnostics.
func MarshalFrameworkResponseHeader(h FrameworkResponseHeader) []byte {
	var body []byte
	body = appendVarintField(body, respFieldPayloadType, uint64(h.PayloadType))
	if h.Diagnostics != nil {
		body = protowire.AppendTag(body, respFieldServerDiagnostics, protowire.BytesType)
		body = protowire.AppendBytes(body, h.Diagnostics.marshal(nil))
	}
	return protowire.AppendBytes(nil, body)
}

func unmarshalDiagnosticRecord(body []byte) (DiagnosticRecord, error) {
	var d DiagnosticRecord
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return DiagnosticRecord{}, protowire.ParseError(n)
		}
		body = body[n:]
		var err error
		switch num {
		case diagFieldCategory:
			var v uint64
			v, body, err = consumeVarint(body, typ)
			d.Category = int(v)
		case diagFieldCode:
			var v uint64
			v, body, err = consumeVarint(body, typ)
			d.Code = int(v)
		case diagFieldMessage:
			var s []byte
			s, body, err = consumeBytesTyped(body, typ)
			d.Message = string(s)
		case diagFieldName:
			var s []byte
			s, body, err = consumeBytesTyped(body, typ)
			d.Name = string(s)
		default:
			body, err = skipField(body, typ)
		}
		if err != nil {
			return DiagnosticRecord{}, err
		}
	}
	return d, nil
}

func appendVarintField(dst []byte, num protowire.Number, v uint64) []byte {
	dst = protowire.AppendTag(dst, num, protowire.VarintType)
	return protowire.AppendVarint(dst, v)
}

func consumeVarint(body []byte, typ protowire.Type) (uint64, []byte, error) {
	if typ != protowire.VarintType {
		return 0, nil, fmt.Errorf("proto: expected varint wire type, got %d", typ)
	}
	v, n := protowire.ConsumeVarint(body)
	if n < 0 {
		return 0, nil, protowire.ParseError(n)
	}
	return v, body[n:], nil
}

func consumeBytesTyped(body []byte, typ protowire.Type) ([]byte, []byte, error) {
	if typ != protowire.BytesType {
		return nil, nil, fmt.Errorf("proto: expected length-delimited wire type, got %d", typ)
	}
	return consumeBytes(body)
}

func consumeBytes(body []byte) ([]byte, []byte, error) {
	v, n := protowire.ConsumeBytes(body)
	if n < 0 {
		return nil, nil, protowire.ParseError(n)
	}
	return v, body[n:], nil
}

func skipField(body []byte, typ protowire.Type) ([]byte, error) {
	n := protowire.ConsumeFieldValue(0, typ, body)
	if n < 0 {
		return nil, protowire.ParseError(n)
	}
	return body[n:], nil
}
