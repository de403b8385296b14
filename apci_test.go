package iec60870

import "testing"

func TestParseAPCIIFrame(t *testing.T) {
	// N(S) = 3, N(R) = 1, per the standard's worked example.
	cf := []byte{0x06, 0x00, 0x02, 0x00}
	frame, err := ParseAPCI(cf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	i, ok := frame.(IFrame)
	if !ok {
		t.Fatalf("want IFrame, got %T", frame)
	}
	if i.SendSN != 3 || i.RecvSN != 1 {
		t.Errorf("got SendSN=%d RecvSN=%d, want 3/1", i.SendSN, i.RecvSN)
	}
}

func TestIFrameControlFieldsRoundTrip(t *testing.T) {
	in := IFrame{SendSN: 12345, RecvSN: 6789}
	cf := in.controlFields()
	out, err := ParseAPCI(cf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := out.(IFrame)
	if got != in {
		t.Errorf("round trip: got %+v, want %+v", got, in)
	}
}

func TestSFrameControlFieldsRoundTrip(t *testing.T) {
	in := SFrame{RecvSN: 100}
	out, err := ParseAPCI(in.controlFields())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out.Type() != FrameTypeS {
		t.Fatalf("want S frame, got %s", out.Type())
	}
	if got := out.(SFrame); got.RecvSN != in.RecvSN {
		t.Errorf("recv sn: got %d, want %d", got.RecvSN, in.RecvSN)
	}
}

func TestUFrameControlFieldsRoundTrip(t *testing.T) {
	for _, in := range []UFrame{
		UFrameStartDtActivate, UFrameStartDtConfirm,
		UFrameStopDtActivate, UFrameStopDtConfirm,
		UFrameTestFrActivate, UFrameTestFrConfirm,
	} {
		out, err := ParseAPCI(in.controlFields())
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		got, ok := out.(UFrame)
		if !ok {
			t.Fatalf("want UFrame, got %T", out)
		}
		if got.Function != in.Function {
			t.Errorf("function: got %s, want %s", got.Function, in.Function)
		}
	}
}

func TestEncodeDecodeAPDU(t *testing.T) {
	asduBytes := []byte{byte(M_SP_NA_1), 0x01, byte(CauseSpontaneous), 0x00, 0x01, 0x00, 0x0a, 0x00, 0x00, 0x01}
	apdu := APDU{Frame: IFrame{SendSN: 1, RecvSN: 2}, Raw: asduBytes}

	wire, err := EncodeAPDU(apdu)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if wire[0] != startByte {
		t.Fatalf("bad start byte 0x%02x", wire[0])
	}
	wantLen := 4 + len(asduBytes)
	if int(wire[1]) != wantLen {
		t.Fatalf("length field: got %d, want %d", wire[1], wantLen)
	}

	decoded, err := DecodeAPDU(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	i, ok := decoded.Frame.(IFrame)
	if !ok || i.SendSN != 1 || i.RecvSN != 2 {
		t.Fatalf("decoded frame mismatch: %+v", decoded.Frame)
	}
	if string(decoded.Raw) != string(asduBytes) {
		t.Errorf("raw mismatch: got % X, want % X", decoded.Raw, asduBytes)
	}
}

func TestDecodeAPDURejectsBadStartByte(t *testing.T) {
	_, err := DecodeAPDU([]byte{0x00, 0x04, 0x01, 0x00, 0x00, 0x00})
	if err == nil {
		t.Fatal("expected error for bad start byte")
	}
}
