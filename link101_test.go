package iec60870

import "testing"

func TestEncodeDecodeFixedFrame(t *testing.T) {
	f := LinkFrame{Primary: true, FCVOrDFC: true, FCBOrACD: true, Function: byte(FuncRequestUserData2), Address: 5}
	wire, err := EncodeFixedFrame(f, 1)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if wire[0] != ft12StartFixed || wire[len(wire)-1] != ft12End {
		t.Fatalf("bad framing: % X", wire)
	}
	got, err := DecodeLinkFrame(wire, 1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != f {
		t.Errorf("round trip: got %+v, want %+v", got, f)
	}
}

func TestEncodeDecodeVariableFrame(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}
	f := LinkFrame{Primary: false, Function: byte(FuncRespondUserData), Address: 300, Payload: payload}
	wire, err := EncodeVariableFrame(f, 2)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if wire[0] != ft12StartVar || wire[3] != ft12StartVar {
		t.Fatalf("bad framing: % X", wire)
	}
	got, err := DecodeLinkFrame(wire, 2)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Address != f.Address || got.Function != f.Function || string(got.Payload) != string(payload) {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestDecodeLinkFrameRejectsBadChecksum(t *testing.T) {
	f := LinkFrame{Primary: true, Function: byte(FuncResetRemoteLink), Address: 1}
	wire, err := EncodeFixedFrame(f, 1)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	wire[len(wire)-2] ^= 0xff // corrupt checksum
	if _, err := DecodeLinkFrame(wire, 1); err == nil {
		t.Fatal("expected checksum error")
	}
}

func TestBroadcastLinkAddr(t *testing.T) {
	if broadcastLinkAddr(1) != 0xff {
		t.Errorf("1-byte broadcast: got %d", broadcastLinkAddr(1))
	}
	if broadcastLinkAddr(2) != 0xffff {
		t.Errorf("2-byte broadcast: got %d", broadcastLinkAddr(2))
	}
}
