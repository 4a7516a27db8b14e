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

// Package tgerr defines the uniform error taxonomy shared by every
// layer of the client: Link, Wire, ResponseBox, the value codec,
// service clients, and Session.
package tgerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the four taxonomy buckets
// described by the wire protocol design: caller misuse, deadline
// expiry, transport failure, or a server-originated diagnostic.
type Kind int

const (
	// KindClient covers caller misuse or an unexpected response
	// shape: invalid response, already closed, already taken,
	// broken encoding, broken relation.
	KindClient Kind = iota
	// KindTimeout covers a deadline that expired before an
	// operation completed. The underlying slot, if any, is left
	// outstanding.
	KindTimeout
	// KindIO covers transport failure: connect, read, write, or a
	// link that has been marked broken by a prior I/O error.
	KindIO
	// KindServer covers a server-originated diagnostic, decoded
	// from a ServerDiagnostics framework response payload.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindClient:
		return "ClientError"
	case KindTimeout:
		return "TimeoutError"
	case KindIO:
		return "IoError"
	case KindServer:
		return "ServerError"
	default:
		return "UnknownError"
	}
}

// Error is the uniform error type returned by every public
// operation in the client. It wraps an optional cause so callers
// can still errors.Is/errors.As through to transport-level errors
// (e.g. io.EOF, net.Error).
type Error struct {
	Kind  Kind
	Msg   string
	Cause error

	// Diagnostic is populated only for KindServer errors.
	Diagnostic *DiagnosticCode
}

func (e *Error) Error() string {
	if e.Kind == KindServer && e.Diagnostic != nil {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Msg, e.Diagnostic.String())
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, target) hold for any *Error target of the
// same Kind, whatever its message: errors.Is(err, tgerr.ErrAlreadyClosed)
// holds for every ClientError, and errors.Is(err, tgerr.Timeout(""))
// for every TimeoutError.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// Client builds a ClientError with no wrapped cause.
func Client(format string, args ...any) *Error {
	return newf(KindClient, nil, format, args...)
}

// ClientWrap builds a ClientError wrapping cause.
func ClientWrap(cause error, format string, args ...any) *Error {
	return newf(KindClient, cause, format, args...)
}

// Timeout builds a TimeoutError.
func Timeout(format string, args ...any) *Error {
	return newf(KindTimeout, nil, format, args...)
}

// IO builds an IoError wrapping cause.
func IO(cause error, format string, args ...any) *Error {
	return newf(KindIO, cause, format, args...)
}

// Server builds a ServerError carrying a structured diagnostic code.
func Server(diag DiagnosticCode, message string) *Error {
	d := diag
	return &Error{Kind: KindServer, Msg: message, Diagnostic: &d}
}

// sentinel ClientErrors used pervasively across the package tree;
// defined once here so every layer reports the same message text
// for the same condition. Since Is compares kinds, errors.Is against
// any of them matches every ClientError.
var (
	ErrAlreadyClosed  = Client("already closed")
	ErrAlreadyTaken   = Client("already taken")
	ErrBrokenRelation = Client("broken relation")
	ErrBrokenEncoding = Client("broken encoding")
	ErrInvalidResponse = Client("invalid response")
)

// IsTimeout reports whether err is (or wraps) a TimeoutError.
func IsTimeout(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindTimeout
	}
	return false
}

// IsIO reports whether err is (or wraps) an IoError.
func IsIO(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindIO
	}
	return false
}

// IsServer reports whether err is (or wraps) a ServerError, and if
// so returns its diagnostic code.
func IsServer(err error) (DiagnosticCode, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindServer && e.Diagnostic != nil {
		return *e.Diagnostic, true
	}
	return DiagnosticCode{}, false
}
