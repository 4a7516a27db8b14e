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

package tsurugi

import "github.com/tsurugidb/tsurugi-go/service/core"

// ShutdownType selects how Session.Shutdown asks the server to
// terminate the session.
type ShutdownType = core.ShutdownType

const (
	// Graceful waits for in-flight requests on the session to finish
	// before terminating it.
	Graceful = core.Graceful
	// Forceful abandons in-flight requests immediately.
	Forceful = core.Forceful
)
