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

package date

import (
	"testing"
	"time"
)

func TestDateRoundTrip(t *testing.T) {
	cases := []struct{ y, m, d int }{
		{1970, 1, 1},
		{1969, 12, 31},
		{2024, 2, 29},
		{1, 1, 1},
		{9999, 12, 31},
	}
	for _, c := range cases {
		d := DateOf(c.y, c.m, c.d)
		if d.Year() != c.y || d.Month() != c.m || d.Day() != c.d {
			t.Errorf("DateOf(%d,%d,%d) round-tripped to %d-%d-%d", c.y, c.m, c.d, d.Year(), d.Month(), d.Day())
		}
	}
}

func TestDateEpoch(t *testing.T) {
	if DateOf(1970, 1, 1) != 0 {
		t.Errorf("epoch date should be 0 days, got %d", DateOf(1970, 1, 1))
	}
	if DateOf(1969, 12, 31) != -1 {
		t.Errorf("day before epoch should be -1, got %d", DateOf(1969, 12, 31))
	}
}

func TestTimeOfDayRoundTrip(t *testing.T) {
	tod := TimeOfDayOf(23, 59, 58, 123456789)
	if tod.Hour() != 23 || tod.Minute() != 59 || tod.Second() != 58 || tod.Nanosecond() != 123456789 {
		t.Errorf("TimeOfDay round trip mismatch: %v", tod)
	}
}

func TestTimeOfDayWithOffsetString(t *testing.T) {
	tod := TimeOfDayWithOffset{TimeOfDay: TimeOfDayOf(9, 0, 0, 0), OffsetMinutes: -300}
	if got, want := tod.String(), "09:00:00-05:00"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestTimePointRoundTrip(t *testing.T) {
	tp := TimePointFromTime(time.Date(2026, 7, 31, 12, 30, 0, 500, time.UTC))
	if tp.Seconds != tp.Time().Unix() {
		t.Fatalf("seconds mismatch after conversion")
	}
	tp2 := TimePoint{Seconds: tp.Seconds, NanoAdjustment: tp.NanoAdjustment}
	if !tp.Equal(tp2) {
		t.Errorf("expected equal time points")
	}
}

func TestTimePointOrdering(t *testing.T) {
	a := TimePoint{Seconds: 100, NanoAdjustment: 0}
	b := TimePoint{Seconds: 100, NanoAdjustment: 1}
	if !a.Before(b) || !b.After(a) {
		t.Errorf("expected a before b")
	}
}
