package iec60870

import "testing"

func TestSlave101ResetLink(t *testing.T) {
	s := NewSlave101(1, 1, DefaultCS101Params(), nil)
	reply := s.HandleFrame(LinkFrame{Primary: true, Function: byte(FuncResetRemoteLink), Address: 1})
	if reply == nil || SecondaryFunction(reply.Function) != FuncAck {
		t.Fatalf("expected ACK reply, got %+v", reply)
	}
	if !s.linkReset {
		t.Error("expected linkReset = true")
	}
}

func TestSlave101RejectsUserDataBeforeReset(t *testing.T) {
	s := NewSlave101(1, 1, DefaultCS101Params(), nil)
	reply := s.HandleFrame(LinkFrame{Primary: true, Function: byte(FuncUserDataConfirmed), FCVOrDFC: true, Address: 1})
	if reply == nil || SecondaryFunction(reply.Function) != FuncNack {
		t.Fatalf("expected NACK before reset, got %+v", reply)
	}
}

func TestSlave101RetransmitsOnRepeatedFCB(t *testing.T) {
	s := NewSlave101(1, 1, DefaultCS101Params(), nil)
	s.HandleFrame(LinkFrame{Primary: true, Function: byte(FuncResetRemoteLink), Address: 1})

	var delivered int
	s.HandleASDU = func(a *ASDU) { delivered++ }

	params := DefaultCS101Params()
	asdu := NewASDU(params, false, CauseOfTransmission{Cause: CauseSpontaneous}, 1)
	if err := asdu.AddInformationObject(M_SP_NA_1, 0, []byte{0}); err != nil {
		t.Fatalf("add: %v", err)
	}
	payload, err := asdu.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	req := LinkFrame{Primary: true, Function: byte(FuncUserDataConfirmed), FCVOrDFC: true, FCBOrACD: false, Address: 1, Payload: payload}
	first := s.HandleFrame(req)
	if first == nil || SecondaryFunction(first.Function) != FuncAck {
		t.Fatalf("expected ACK, got %+v", first)
	}
	if delivered != 1 {
		t.Fatalf("expected 1 delivery, got %d", delivered)
	}

	// same FCB again: primary never saw the ack, must not re-deliver.
	second := s.HandleFrame(req)
	if second == nil || SecondaryFunction(second.Function) != FuncAck {
		t.Fatalf("expected ACK on retransmit, got %+v", second)
	}
	if delivered != 1 {
		t.Errorf("expected no re-delivery on FCB retransmit, got %d deliveries", delivered)
	}
}

func TestSlave101RequestUserDataNoData(t *testing.T) {
	s := NewSlave101(1, 1, DefaultCS101Params(), nil)
	reply := s.HandleFrame(LinkFrame{Primary: true, Function: byte(FuncRequestUserData2), Address: 1})
	if reply == nil || SecondaryFunction(reply.Function) != FuncRespondNoData {
		t.Fatalf("expected RESPOND_NO_DATA, got %+v", reply)
	}
}

func TestSlave101RequestUserDataWithData(t *testing.T) {
	s := NewSlave101(1, 1, DefaultCS101Params(), nil)
	params := DefaultCS101Params()
	asdu := NewASDU(params, false, CauseOfTransmission{Cause: CauseSpontaneous}, 1)
	if err := asdu.AddInformationObject(M_SP_NA_1, 0, []byte{1}); err != nil {
		t.Fatalf("add: %v", err)
	}
	payload, err := asdu.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	s.PollUserData = func(class1 bool) []byte { return payload }

	reply := s.HandleFrame(LinkFrame{Primary: true, Function: byte(FuncRequestUserData2), Address: 1})
	if reply == nil || SecondaryFunction(reply.Function) != FuncRespondUserData {
		t.Fatalf("expected RESPOND_USER_DATA, got %+v", reply)
	}
	if string(reply.Payload) != string(payload) {
		t.Error("payload mismatch")
	}
}

func TestSlave101RequestUserDataRetransmitsOnRepeatedFCB(t *testing.T) {
	s := NewSlave101(1, 1, DefaultCS101Params(), nil)
	s.HandleFrame(LinkFrame{Primary: true, Function: byte(FuncResetRemoteLink), Address: 1})

	var polls int
	s.PollUserData = func(class1 bool) []byte {
		polls++
		params := DefaultCS101Params()
		asdu := NewASDU(params, false, CauseOfTransmission{Cause: CauseSpontaneous}, 1)
		if err := asdu.AddInformationObject(M_SP_NA_1, 0, []byte{byte(polls)}); err != nil {
			t.Fatalf("add: %v", err)
		}
		payload, err := asdu.Encode()
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		return payload
	}

	req := LinkFrame{Primary: true, Function: byte(FuncRequestUserData2), FCVOrDFC: true, FCBOrACD: false, Address: 1}
	first := s.HandleFrame(req)
	if first == nil || SecondaryFunction(first.Function) != FuncRespondUserData {
		t.Fatalf("expected RESPOND_USER_DATA, got %+v", first)
	}
	if polls != 1 {
		t.Fatalf("expected 1 poll, got %d", polls)
	}

	// same FCB again: primary never saw the response, must replay it
	// rather than advancing to the next queued data.
	second := s.HandleFrame(req)
	if second == nil || SecondaryFunction(second.Function) != FuncRespondUserData {
		t.Fatalf("expected RESPOND_USER_DATA on retransmit, got %+v", second)
	}
	if polls != 1 {
		t.Errorf("expected no new poll on FCB retransmit, got %d polls", polls)
	}
	if string(second.Payload) != string(first.Payload) {
		t.Error("expected replayed payload to match the first response")
	}
}

func TestSlave101IgnoresBroadcastReset(t *testing.T) {
	s := NewSlave101(1, 1, DefaultCS101Params(), nil)
	reply := s.HandleFrame(LinkFrame{Primary: true, Function: byte(FuncResetRemoteLink), Address: broadcastLinkAddr(1)})
	if reply != nil {
		t.Errorf("expected no reply to broadcast reset, got %+v", reply)
	}
	if !s.linkReset {
		t.Error("expected linkReset = true even for broadcast")
	}
}

func TestSlave101IgnoresUnaddressedFrame(t *testing.T) {
	s := NewSlave101(1, 1, DefaultCS101Params(), nil)
	reply := s.HandleFrame(LinkFrame{Primary: true, Function: byte(FuncResetRemoteLink), Address: 2})
	if reply != nil {
		t.Errorf("expected no reply for a frame addressed to another station, got %+v", reply)
	}
}
