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

func TestConstructors(t *testing.T) {
	cases := []struct {
		name string
		c    Credential
		kind Kind
	}{
		{"none", None(), KindNone},
		{"user-password", UserPassword("alice", "s3cret"), KindUserPassword},
		{"auth-token", AuthToken("tok-123"), KindAuthToken},
		{"file", File("/var/lib/tsurugi/token"), KindFile},
	}
	for _, c := range cases {
		if c.c.Kind != c.kind {
			t.Errorf("%s: got kind %v, want %v", c.name, c.c.Kind, c.kind)
		}
	}
	up := UserPassword("alice", "s3cret")
	if up.User != "alice" || up.Password != "s3cret" {
		t.Errorf("UserPassword fields: %+v", up)
	}
	if AuthToken("tok-123").Token != "tok-123" {
		t.Errorf("AuthToken field not preserved")
	}
	if File("/p").FilePath != "/p" {
		t.Errorf("File field not preserved")
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindNone:         "none",
		KindUserPassword: "user-password",
		KindAuthToken:    "auth-token",
		KindFile:         "file",
		Kind(99):         "unknown",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
