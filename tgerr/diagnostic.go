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

package tgerr

import "fmt"

// DiagnosticCode is the structured error classification carried by
// ServerError: a category number and symbolic name, and a code
// number and symbolic name within that category.
type DiagnosticCode struct {
	CategoryNumber int
	CategoryName   string
	CodeNumber     int
	Name           string
}

// String formats the code as "CAT-00000 (NAME)", e.g.
// "SQL-03004 (SYMBOL_ANALYZE_EXCEPTION)".
func (d DiagnosticCode) String() string {
	return fmt.Sprintf("%s-%05d (%s)", d.CategoryName, d.CodeNumber, d.Name)
}

// Short formats just "CAT-00000", without the symbolic name.
func (d DiagnosticCode) Short() string {
	return fmt.Sprintf("%s-%05d", d.CategoryName, d.CodeNumber)
}

// Known diagnostic categories. The category number is the value
// that appears on the wire in a DiagnosticRecord; the table below is
// intentionally small and only resolves categories this client
// itself is expected to observe and react to (e.g. to recognize a
// transaction-aborted condition). Unrecognized categories/codes are
// still surfaced as a ServerError, with a "CAT<n>" category name in
// place of a symbolic one.
const (
	CategoryUnknown  = 0
	CategorySQL      = 3
	CategoryJogasaki = 4
)

var categoryNames = map[int]string{
	CategoryUnknown:  "UNKNOWN",
	CategorySQL:      "SQL",
	CategoryJogasaki: "JGS",
}

// NewDiagnosticCode resolves a category/code pair to a DiagnosticCode,
// filling in the category names known to this client. An unknown
// category is named "CAT<n>" after its number, and an empty code name
// becomes "UNKNOWN".
func NewDiagnosticCode(category, code int, name string) DiagnosticCode {
	cname, ok := categoryNames[category]
	if !ok {
		cname = fmt.Sprintf("CAT%d", category)
	}
	if name == "" {
		name = "UNKNOWN"
	}
	return DiagnosticCode{
		CategoryNumber: category,
		CategoryName:   cname,
		CodeNumber:     code,
		Name:           name,
	}
}
