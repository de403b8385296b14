package iec60870

import "testing"

func TestIOARoundTrip(t *testing.T) {
	cases := []struct {
		ioa   IOA
		width int
	}{
		{0x11, 1}, {0x1122, 2}, {0x112233, 3}, {0, 1}, {0xffffff, 3},
	}
	for _, c := range cases {
		encoded, err := encodeIOA(c.ioa, c.width)
		if err != nil {
			t.Fatalf("encode width=%d: %v", c.width, err)
		}
		if len(encoded) != c.width {
			t.Fatalf("encoded width: got %d, want %d", len(encoded), c.width)
		}
		got, err := decodeIOA(encoded, c.width)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got != c.ioa {
			t.Errorf("round trip: got %d, want %d", got, c.ioa)
		}
	}
}

func TestEncodeIOAOverflow(t *testing.T) {
	if _, err := encodeIOA(0x100, 1); !IsCodecError(err, ErrInvalidWidth) {
		t.Fatalf("want ErrInvalidWidth, got %v", err)
	}
}

func TestElementWidthKnownTypes(t *testing.T) {
	cases := map[TypeID]int{
		M_SP_NA_1: 1,
		M_SP_TA_1: 4,  // 1 + cp24(3)
		M_SP_TB_1: 8,  // 1 + cp56(7)
		M_ME_TA_1: 6,  // 3 + cp24(3)
		C_SE_TC_1: 12, // 5 + cp56(7)
	}
	for typeID, want := range cases {
		got, err := elementWidth(typeID)
		if err != nil {
			t.Fatalf("%s: %v", typeID, err)
		}
		if got != want {
			t.Errorf("%s: got %d, want %d", typeID, got, want)
		}
	}
}

func TestElementWidthUnknownType(t *testing.T) {
	_, err := elementWidth(TypeID(0))
	if !IsCodecError(err, ErrUnknownType) {
		t.Fatalf("want ErrUnknownType, got %v", err)
	}
}

func TestTypeIDString(t *testing.T) {
	if M_SP_NA_1.String() != "M_SP_NA_1" {
		t.Errorf("got %s", M_SP_NA_1.String())
	}
	if got := TypeID(200).String(); got == "" {
		t.Error("unknown type id should still stringify")
	}
}
