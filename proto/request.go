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

import "google.golang.org/protobuf/encoding/protowire"

// ServiceID identifies which service a request's body is addressed
// to; carried in the FrameworkRequestHeader. The real Tsurugi wire
// protocol assigns these per its IDL; this client assigns its own
// internally-consistent numbering since the IDL itself is out of
// scope (see package doc).
type ServiceID uint64

const (
	ServiceIDEndpoint ServiceID = 1
	ServiceIDCore     ServiceID = 2
	ServiceIDSQL      ServiceID = 3
	ServiceIDSystem   ServiceID = 4
)

// ServiceMessageVersionMajor/Minor are the fixed protocol versions
// this client speaks, stamped on every request header.
const (
	ServiceMessageVersionMajor = 1
	ServiceMessageVersionMinor = 0
)

// BuildRequest assembles one session-payload request body: a
// length-delimited FrameworkRequestHeader addressed to serviceID and
// sessionID, followed by the service-specific message body nested
// under the command field number — the oneof discriminator every
// original_source *Request message carries (e.g. CoreRequest's
// `command: Some(command)`), letting same-shaped bodies like
// UpdateExpirationTime and Shutdown be told apart before either is
// decoded. This is exactly the byte sequence Wire.Send expects.
func BuildRequest(serviceID ServiceID, sessionID uint64, command protowire.Number, body []byte) []byte {
	h := FrameworkRequestHeader{
		ServiceMessageVersionMajor: ServiceMessageVersionMajor,
		ServiceMessageVersionMinor: ServiceMessageVersionMinor,
		ServiceID:                  uint64(serviceID),
		SessionID:                  sessionID,
	}
	dst := h.Marshal(nil)
	return AppendMessageField(dst, command, body)
}

// UnmarshalCommand reads the command discriminator and its nested
// body from the front of rest, the bytes UnmarshalFrameworkRequestHeader
// returns after the header itself. A server (or a test standing in
// for one) uses this to route a request to the right operation before
// decoding its body.
func UnmarshalCommand(rest []byte) (protowire.Number, []byte, error) {
	num, typ, n := protowire.ConsumeTag(rest)
	if n < 0 {
		return 0, nil, protowire.ParseError(n)
	}
	body, _, err := consumeBytesTyped(rest[n:], typ)
	if err != nil {
		return 0, nil, err
	}
	return num, body, nil
}

// AppendVarintField appends a varint-typed field to dst, for service
// packages hand-writing their own request/response messages in the
// same minimal protobuf-style encoding FrameworkRequestHeader uses.
func AppendVarintField(dst []byte, num protowire.Number, v uint64) []byte {
	return appendVarintField(dst, num, v)
}

// AppendBytesField appends a length-delimited field (covers both
// `bytes` and `string` fields) to dst.
func AppendBytesField(dst []byte, num protowire.Number, v []byte) []byte {
	dst = protowire.AppendTag(dst, num, protowire.BytesType)
	return protowire.AppendBytes(dst, v)
}

// AppendMessageField appends a nested length-delimited message field
// whose body has already been encoded.
func AppendMessageField(dst []byte, num protowire.Number, body []byte) []byte {
	return AppendBytesField(dst, num, body)
}

// ConsumeTag reads one field tag (number, wire type) from the front
// of body.
func ConsumeTag(body []byte) (protowire.Number, protowire.Type, int) {
	return protowire.ConsumeTag(body)
}

// ConsumeVarintField reads a varint-typed field's value, checking typ
// matches.
func ConsumeVarintField(body []byte, typ protowire.Type) (uint64, []byte, error) {
	return consumeVarint(body, typ)
}

// ConsumeBytesField reads a length-delimited field's value, checking
// typ matches.
func ConsumeBytesField(body []byte, typ protowire.Type) ([]byte, []byte, error) {
	return consumeBytesTyped(body, typ)
}

// SkipField skips one field's value given its wire type, for
// unrecognized field numbers in a forwards-compatible message
// reader.
func SkipField(body []byte, typ protowire.Type) ([]byte, error) {
	return skipField(body, typ)
}
