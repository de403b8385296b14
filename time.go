package iec60870

import "time"

/*
Time values. IEC 60870-5-101/104 define four binary time encodings of
increasing width, all little-endian, all expressing milliseconds within a
day/hour/minute rather than an absolute instant with a time zone.

  CP16Time2a: milliseconds only (2 bytes).
  CP24Time2a: milliseconds + minute + IV + RES/GEN (3 bytes).
  CP32Time2a: CP24Time2a + hour + RES + SU (4 bytes).
  CP56Time2a: CP32Time2a + day-of-month + day-of-week + month + RES + year (7 bytes).

IV = invalid flag. SU = summer time. GEN = substituted (non-genuine) time.
The standard leaves century disambiguation of the two-digit year to the
application; see CP56Time2a.Time below for the pivot this library picked.
*/

// CP16Time2a is the 2-byte millisecond-only binary time.
type CP16Time2a uint16

// ParseCP16Time2a decodes a little-endian 2-byte millisecond count.
func ParseCP16Time2a(b []byte) CP16Time2a {
	return CP16Time2a(parseLittleEndianUint16(b))
}

// Bytes encodes the millisecond count, little-endian.
func (t CP16Time2a) Bytes() []byte {
	return serializeLittleEndianUint16(uint16(t))
}

// CP24Time2a is the 3-byte time: milliseconds(16) + minute(6) + IV(1) + RES/GEN(1).
type CP24Time2a struct {
	Millisecond int    // [0, 59999]
	Minute      int    // [0, 59]
	Invalid     bool   // IV
	Substituted bool   // GEN
	raw         [3]byte
}

// ParseCP24Time2a decodes 3 bytes into a CP24Time2a.
func ParseCP24Time2a(b []byte) CP24Time2a {
	ms := uint(b[0]) | uint(b[1])<<8
	return CP24Time2a{
		Millisecond: int(ms),
		Minute:      int(b[2] & 0x3f),
		Invalid:     b[2]&0x80 != 0,
		Substituted: b[2]&0x40 != 0,
	}
}

// Bytes encodes the CP24Time2a to its 3-byte wire form.
func (t CP24Time2a) Bytes() []byte {
	ms := uint16(t.Millisecond)
	b2 := byte(t.Minute & 0x3f)
	if t.Invalid {
		b2 |= 0x80
	}
	if t.Substituted {
		b2 |= 0x40
	}
	return []byte{byte(ms), byte(ms >> 8), b2}
}

// CP32Time2a is the 4-byte time: CP24Time2a + hour(5) + RES(2) + SU(1).
type CP32Time2a struct {
	CP24Time2a
	Hour       int  // [0, 23]
	SummerTime bool // SU
}

// ParseCP32Time2a decodes 4 bytes into a CP32Time2a.
func ParseCP32Time2a(b []byte) CP32Time2a {
	return CP32Time2a{
		CP24Time2a: ParseCP24Time2a(b[:3]),
		Hour:       int(b[3] & 0x1f),
		SummerTime: b[3]&0x80 != 0,
	}
}

// Bytes encodes the CP32Time2a to its 4-byte wire form.
func (t CP32Time2a) Bytes() []byte {
	b4 := byte(t.Hour & 0x1f)
	if t.SummerTime {
		b4 |= 0x80
	}
	return append(t.CP24Time2a.Bytes(), b4)
}

// CP56Time2a is the 7-byte time: CP32Time2a + day-of-month(5) + day-of-week(3) + month(4) + RES(4) + year(7) + RES(1).
type CP56Time2a struct {
	CP32Time2a
	Day       int // day of month, [1, 31]
	DayOfWeek int // [1, 7], 1 = Monday per the standard
	Month     int // [1, 12]
	Year      int // [0, 99], two-digit year; see Time() for century pivot
}

// ParseCP56Time2a decodes 7 bytes into a CP56Time2a.
func ParseCP56Time2a(b []byte) CP56Time2a {
	return CP56Time2a{
		CP32Time2a: ParseCP32Time2a(b[:4]),
		Day:        int(b[4] & 0x1f),
		DayOfWeek:  int(b[4]>>5) & 0x07,
		Month:      int(b[5] & 0x0f),
		Year:       int(b[6] & 0x7f),
	}
}

// Bytes encodes the CP56Time2a to its 7-byte wire form.
func (t CP56Time2a) Bytes() []byte {
	b := t.CP32Time2a.Bytes()
	b4 := byte(t.Day&0x1f) | byte(t.DayOfWeek&0x07)<<5
	b5 := byte(t.Month & 0x0f)
	b6 := byte(t.Year & 0x7f)
	return append(b, b4, b5, b6)
}

// centuryPivot resolves the two-digit year the standard leaves to the
// application (design note, spec.md section 9 Open Question). Years
// [0, 68] are read as 2000-2068, years [69, 99] as 1969-1999 — the
// POSIX/RFC-2822 two-digit-year pivot, chosen so the library behaves the
// same way common SCADA tooling already does, well past this library's
// practical service life.
func centuryPivot(twoDigitYear int) int {
	if twoDigitYear <= 68 {
		return 2000 + twoDigitYear
	}
	return 1900 + twoDigitYear
}

// Time reconstructs an absolute instant in loc from the encoded fields,
// applying the century pivot documented on centuryPivot. The result is
// zero if the IV flag is set.
func (t CP56Time2a) Time(loc *time.Location) time.Time {
	if t.Invalid {
		return time.Time{}
	}
	sec := t.Millisecond / 1000
	nsec := (t.Millisecond % 1000) * 1e6
	return time.Date(centuryPivot(t.Year), time.Month(t.Month), t.Day, t.Hour, t.Minute, sec, nsec, loc)
}

// NewCP56Time2a encodes t as a CP56Time2a in the wall clock of t's own
// location, setting the day-of-week and summer-time fields from t.
func NewCP56Time2a(t time.Time) CP56Time2a {
	if t.IsZero() {
		return CP56Time2a{CP32Time2a: CP32Time2a{CP24Time2a: CP24Time2a{Invalid: true}}}
	}
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	ms := sec*1000 + t.Nanosecond()/1e6
	dow := int(t.Weekday())
	if dow == 0 {
		dow = 7 // standard counts Monday=1..Sunday=7
	}
	return CP56Time2a{
		CP32Time2a: CP32Time2a{
			CP24Time2a: CP24Time2a{Millisecond: ms, Minute: min},
			Hour:       hour,
			SummerTime: t.IsDST(),
		},
		Day:       day,
		DayOfWeek: dow,
		Month:     int(month),
		Year:      year % 100,
	}
}
