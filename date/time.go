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

// Package date holds the epoch-based temporal types used by the
// value codec. The wire represents every temporal column as a
// small integer offset from an epoch rather than as a calendar
// struct, so these types favor fast conversion to and from those
// offsets over calendar-field access (the opposite tradeoff a
// generic civil-time package would make).
package date

import (
	"fmt"
	"time"
)

const nsPerDay = int64(24 * time.Hour)

// Date represents a DATE column: a day count relative to the Unix
// epoch (1970-01-01), with no time-of-day component. Negative values
// represent days before the epoch.
type Date int64

// DateFromTime truncates t (interpreted in UTC) to a Date.
func DateFromTime(t time.Time) Date {
	t = t.UTC()
	days := t.Unix() / 86400
	if t.Unix()%86400 < 0 {
		days--
	}
	return Date(days)
}

// DateOf constructs a Date from calendar components.
func DateOf(year, month, day int) Date {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return DateFromTime(t)
}

// Time returns d as a time.Time at midnight UTC.
func (d Date) Time() time.Time {
	return time.Unix(int64(d)*86400, 0).UTC()
}

func (d Date) Year() int  { return d.Time().Year() }
func (d Date) Month() int { return int(d.Time().Month()) }
func (d Date) Day() int   { return d.Time().Day() }

func (d Date) String() string {
	t := d.Time()
	return fmt.Sprintf("%04d-%02d-%02d", t.Year(), t.Month(), t.Day())
}

// TimeOfDay represents a TIME column with no zone offset: a count
// of nanoseconds since midnight, local to whatever zone the caller
// intends.
type TimeOfDay int64

// TimeOfDayOf constructs a TimeOfDay from clock components.
func TimeOfDayOf(hour, min, sec, ns int) TimeOfDay {
	total := int64(hour)*int64(time.Hour) +
		int64(min)*int64(time.Minute) +
		int64(sec)*int64(time.Second) +
		int64(ns)
	return TimeOfDay(total)
}

func (t TimeOfDay) Hour() int       { return int(int64(t) / int64(time.Hour) % 24) }
func (t TimeOfDay) Minute() int     { return int(int64(t) / int64(time.Minute) % 60) }
func (t TimeOfDay) Second() int     { return int(int64(t) / int64(time.Second) % 60) }
func (t TimeOfDay) Nanosecond() int { return int(int64(t) % int64(time.Second)) }

func (t TimeOfDay) String() string {
	ns := t.Nanosecond()
	if ns == 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
	}
	return fmt.Sprintf("%02d:%02d:%02d.%09d", t.Hour(), t.Minute(), t.Second(), ns)
}

// TimeOfDayWithOffset adds a zone offset, carried as whole minutes
// east of UTC, to a TimeOfDay.
type TimeOfDayWithOffset struct {
	TimeOfDay
	OffsetMinutes int
}

func (t TimeOfDayWithOffset) String() string {
	sign := byte('+')
	off := t.OffsetMinutes
	if off < 0 {
		sign = '-'
		off = -off
	}
	return fmt.Sprintf("%s%c%02d:%02d", t.TimeOfDay.String(), sign, off/60, off%60)
}

// TimePoint represents a TIMESTAMP column: seconds since the Unix
// epoch plus a nanosecond adjustment in [0, 1e9), matching the
// wire's (seconds, nano-adjustment) pair exactly so round-tripping
// never needs to re-derive the split.
type TimePoint struct {
	Seconds       int64
	NanoAdjustment int64
}

// TimePointFromTime converts a time.Time to a TimePoint (UTC).
func TimePointFromTime(t time.Time) TimePoint {
	t = t.UTC()
	return TimePoint{Seconds: t.Unix(), NanoAdjustment: int64(t.Nanosecond())}
}

// Time returns tp as a time.Time in UTC.
func (tp TimePoint) Time() time.Time {
	return time.Unix(tp.Seconds, tp.NanoAdjustment).UTC()
}

func (tp TimePoint) Equal(o TimePoint) bool {
	return tp.Seconds == o.Seconds && tp.NanoAdjustment == o.NanoAdjustment
}

func (tp TimePoint) Before(o TimePoint) bool {
	if tp.Seconds != o.Seconds {
		return tp.Seconds < o.Seconds
	}
	return tp.NanoAdjustment < o.NanoAdjustment
}

func (tp TimePoint) After(o TimePoint) bool {
	return o.Before(tp)
}

func (tp TimePoint) String() string {
	return tp.Time().Format(time.RFC3339Nano)
}

// TimePointWithOffset adds a zone offset, carried as whole minutes
// east of UTC, to a TimePoint. The Seconds/NanoAdjustment fields
// remain UTC; OffsetMinutes is purely informational display data,
// matching the wire's representation (it does not shift Seconds).
type TimePointWithOffset struct {
	TimePoint
	OffsetMinutes int
}

func (tp TimePointWithOffset) String() string {
	sign := byte('+')
	off := tp.OffsetMinutes
	if off < 0 {
		sign = '-'
		off = -off
	}
	return fmt.Sprintf("%s%c%02d:%02d", tp.TimePoint.String(), sign, off/60, off%60)
}
