package iec60870

import "github.com/sirupsen/logrus"

// Slave101 is the CS101 secondary station: it answers a primary's
// fixed-frame requests, tracking FCB per spec.md section 4.4's
// retransmission rule (an unexpected FCB on an FCV=1 frame means the
// primary never saw the last reply, so the reply is repeated rather
// than advanced).
type Slave101 struct {
	Address  uint16
	AddrWidth int
	Params   AppLayerParams

	lg *logrus.Logger

	linkReset    bool
	lastFCB      bool
	haveLastFCB  bool
	lastReply    []byte
	lastReplyFn  SecondaryFunction
	lastReplyACD bool

	// PollUserData is called to produce the next class-1/class-2 ASDU
	// payload to return on a data request, or nil if there is none.
	PollUserData func(class1 bool) []byte
	// HandleASDU processes a confirmed user-data frame addressed to
	// this station.
	HandleASDU ASDUHandler
}

// NewSlave101 constructs a secondary station answering as address.
func NewSlave101(address uint16, addrWidth int, params AppLayerParams, lg *logrus.Logger) *Slave101 {
	if lg == nil {
		lg = _lg
	}
	return &Slave101{Address: address, AddrWidth: addrWidth, Params: params, lg: lg}
}

// HandleFrame processes one decoded request addressed to this station
// (or the broadcast address) and returns the reply frame to send back,
// or nil if no reply is warranted (e.g. an unconfirmed broadcast).
func (s *Slave101) HandleFrame(req LinkFrame) *LinkFrame {
	if req.Address != s.Address && req.Address != broadcastLinkAddr(s.AddrWidth) {
		return nil
	}
	broadcast := req.Address == broadcastLinkAddr(s.AddrWidth)

	switch PrimaryFunction(req.Function) {
	case FuncResetRemoteLink:
		s.linkReset = true
		s.haveLastFCB = false
		s.lastReply = nil
		s.lastReplyFn = 0
		s.lastReplyACD = false
		if broadcast {
			return nil
		}
		return s.reply(FuncAck, false)

	case FuncRequestLinkStatus:
		if broadcast {
			return nil
		}
		return s.reply(FuncStatusOfLink, false)

	case FuncUserDataConfirmed:
		if !s.linkReset {
			return s.reply(FuncNack, false)
		}
		if req.FCVOrDFC && s.haveLastFCB && req.FCBOrACD == s.lastFCB {
			// retransmission: the primary never saw our last reply.
			if broadcast {
				return nil
			}
			return s.reply(FuncAck, false)
		}
		s.lastFCB = req.FCBOrACD
		s.haveLastFCB = true
		if s.HandleASDU != nil && len(req.Payload) > 0 {
			asdu, err := ParseASDU(req.Payload, s.Params)
			if err != nil {
				s.lg.WithError(err).Warn("dropping unparsable cs101 asdu")
			} else {
				s.HandleASDU(asdu)
			}
		}
		if broadcast {
			return nil
		}
		return s.reply(FuncAck, false)

	case FuncUserDataNoReply:
		if s.HandleASDU != nil && len(req.Payload) > 0 {
			asdu, err := ParseASDU(req.Payload, s.Params)
			if err == nil {
				s.HandleASDU(asdu)
			}
		}
		return nil

	case FuncRequestUserData1, FuncRequestUserData2:
		if broadcast {
			return nil
		}
		if req.FCVOrDFC && s.haveLastFCB && req.FCBOrACD == s.lastFCB {
			// retransmission: the primary never saw our last response.
			return &LinkFrame{Function: byte(s.lastReplyFn), FCBOrACD: s.lastReplyACD, Address: s.Address, Payload: s.lastReply}
		}
		s.lastFCB = req.FCBOrACD
		s.haveLastFCB = true
		class1 := PrimaryFunction(req.Function) == FuncRequestUserData1
		payload := s.nextUserData(class1)
		if payload == nil {
			return s.replyVariable(FuncRespondNoData, false, nil)
		}
		return s.replyVariable(FuncRespondUserData, s.moreClass1Pending(), payload)

	default:
		return s.reply(FuncLinkNotImplemented, false)
	}
}

func (s *Slave101) nextUserData(class1 bool) []byte {
	if s.PollUserData == nil {
		return nil
	}
	return s.PollUserData(class1)
}

// moreClass1Pending supplies the ACD bit of a user-data response. It
// always returns false: Slave101 keeps no class-1 queue of its own, so its
// responses never signal access demand.
func (s *Slave101) moreClass1Pending() bool {
	return false
}

func (s *Slave101) reply(fn SecondaryFunction, acd bool) *LinkFrame {
	return &LinkFrame{Function: byte(fn), FCBOrACD: acd, Address: s.Address}
}

func (s *Slave101) replyVariable(fn SecondaryFunction, acd bool, payload []byte) *LinkFrame {
	s.lastReply = payload
	s.lastReplyFn = fn
	s.lastReplyACD = acd
	return &LinkFrame{Function: byte(fn), FCBOrACD: acd, Address: s.Address, Payload: payload}
}
