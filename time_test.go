package iec60870

import (
	"testing"
	"time"
)

func TestCP56Time2aRoundTrip(t *testing.T) {
	loc := time.UTC
	in := time.Date(2023, time.July, 4, 10, 30, 45, 250*1e6, loc)

	cp := NewCP56Time2a(in)
	wire := cp.Bytes()
	if len(wire) != 7 {
		t.Fatalf("want 7 bytes, got %d", len(wire))
	}

	parsed := ParseCP56Time2a(wire)
	out := parsed.Time(loc)
	if !out.Equal(in) {
		t.Errorf("round trip: got %v, want %v", out, in)
	}
	if parsed.DayOfWeek != 2 {
		t.Errorf("day of week: got %d, want 2 (Tuesday)", parsed.DayOfWeek)
	}
}

func TestCP56Time2aInvalidFlagZeroesTime(t *testing.T) {
	cp := NewCP56Time2a(time.Time{})
	if !cp.Invalid {
		t.Fatal("zero time should set IV")
	}
	if got := cp.Time(time.UTC); !got.IsZero() {
		t.Errorf("invalid time should decode to zero value, got %v", got)
	}
}

func TestCenturyPivot(t *testing.T) {
	cases := map[int]int{0: 2000, 68: 2068, 69: 1969, 99: 1999}
	for in, want := range cases {
		if got := centuryPivot(in); got != want {
			t.Errorf("centuryPivot(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestCP24Time2aRoundTrip(t *testing.T) {
	cp := CP24Time2a{Millisecond: 45250, Minute: 30, Invalid: false, Substituted: true}
	wire := cp.Bytes()
	got := ParseCP24Time2a(wire)
	if got != cp {
		t.Errorf("round trip: got %+v, want %+v", got, cp)
	}
}

func TestCP32Time2aRoundTrip(t *testing.T) {
	cp := CP32Time2a{CP24Time2a: CP24Time2a{Millisecond: 1000, Minute: 5}, Hour: 23, SummerTime: true}
	got := ParseCP32Time2a(cp.Bytes())
	if got != cp {
		t.Errorf("round trip: got %+v, want %+v", got, cp)
	}
}

func TestCP16Time2aRoundTrip(t *testing.T) {
	cp := CP16Time2a(59999)
	if got := ParseCP16Time2a(cp.Bytes()); got != cp {
		t.Errorf("round trip: got %d, want %d", got, cp)
	}
}
