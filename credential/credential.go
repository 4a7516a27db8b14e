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

// Package credential defines the credential kinds ConnectionOptions
// accepts, plus the supporting infrastructure for the "file" kind:
// at-rest token encryption (FileStore) and the consistent-hashing
// shard assignment used by the large-object path mapping (LobShard).
// Credential acquisition and token renewal are not handled here, and
// Session's handshake does not present a Credential to the server.
package credential

// Kind discriminates the four credential forms ConnectionOptions
// accepts.
type Kind int

const (
	KindNone Kind = iota
	KindUserPassword
	KindAuthToken
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUserPassword:
		return "user-password"
	case KindAuthToken:
		return "auth-token"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// Credential is the value ConnectionOptions carries for its
// credential field: exactly the fields relevant to Kind are
// meaningful, mirroring the "plain exported fields, zero-value
// friendly" style the teacher uses for configuration structs.
type Credential struct {
	Kind Kind

	// User-password kind.
	User     string
	Password string

	// Auth-token kind: a token presented directly, bypassing
	// FileStore.
	Token string

	// File kind: a path naming an encrypted auth token (see
	// FileStore). Nothing in this module decrypts or sends it.
	FilePath string
}

// None returns the no-credential Credential, used against servers
// configured without authentication.
func None() Credential { return Credential{Kind: KindNone} }

// UserPassword returns a user-password Credential.
func UserPassword(user, password string) Credential {
	return Credential{Kind: KindUserPassword, User: user, Password: password}
}

// AuthToken returns a Credential presenting token directly.
func AuthToken(token string) Credential {
	return Credential{Kind: KindAuthToken, Token: token}
}

// File returns a Credential naming path, a file holding an encrypted
// auth token. Session's handshake neither reads nor presents it.
func File(path string) Credential {
	return Credential{Kind: KindFile, FilePath: path}
}
