package iec60870

import (
	"time"

	"github.com/sirupsen/logrus"
)

// SlaveState is a polled outstation's position in the per-slave state
// machine of spec.md section 4.4.
type SlaveState int

const (
	SlaveIdle SlaveState = iota
	SlaveBusy
	SlaveAvailable
	SlaveError
)

func (s SlaveState) String() string {
	switch s {
	case SlaveIdle:
		return "IDLE"
	case SlaveBusy:
		return "BUSY"
	case SlaveAvailable:
		return "AVAILABLE"
	case SlaveError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// slaveLink tracks one polled outstation's link state: the FCB the
// primary expects to send next, its retry budget and the per-slave
// SlaveState.
type slaveLink struct {
	address       uint16
	state         SlaveState
	expectFCB     bool
	retries       int
	lastRequestAt time.Time
	resetDone     bool
}

// MasterLinkConfig configures a Master101's polling loop.
type MasterLinkConfig struct {
	AddrWidth              int
	LinkLayerResponseTimeout time.Duration
	LinkLayerRetries       int
	PollInterval           time.Duration
}

// DefaultMasterLinkConfig returns conventional CS101 polling parameters.
func DefaultMasterLinkConfig() MasterLinkConfig {
	return MasterLinkConfig{
		AddrWidth:                1,
		LinkLayerResponseTimeout: 2 * time.Second,
		LinkLayerRetries:         3,
		PollInterval:             200 * time.Millisecond,
	}
}

// Master101 is the CS101 primary station: it polls a configured set of
// secondaries in a RESET_LINK -> data-exchange cycle, per spec.md
// section 4.4. It is new relative to the teacher, which only implements
// CS104; its frame plumbing reuses link101.go and its send/recv
// transport shape mirrors the teacher's goroutine-pair style in
// client.go.
type Master101 struct {
	Config MasterLinkConfig
	Params AppLayerParams
	OnASDU ASDUHandler

	lg *logrus.Logger

	send sendFunc
	recv func(time.Duration) ([]byte, error)

	slaves map[uint16]*slaveLink
	order  []uint16
}

// NewMaster101 builds a primary station driving send/recv against a
// serial transport. recv must honor the given timeout, returning an
// error (e.g. context.DeadlineExceeded) if nothing arrives in time.
func NewMaster101(params AppLayerParams, send sendFunc, recv func(time.Duration) ([]byte, error), lg *logrus.Logger) *Master101 {
	if lg == nil {
		lg = _lg
	}
	return &Master101{
		Config: DefaultMasterLinkConfig(),
		Params: params,
		lg:     lg,
		send:   send,
		recv:   recv,
		slaves: make(map[uint16]*slaveLink),
	}
}

// AddSlave registers a secondary to poll.
func (m *Master101) AddSlave(address uint16) {
	if _, ok := m.slaves[address]; ok {
		return
	}
	m.slaves[address] = &slaveLink{address: address, state: SlaveIdle}
	m.order = append(m.order, address)
}

// SlaveState reports a registered slave's current state.
func (m *Master101) SlaveState(address uint16) SlaveState {
	if s, ok := m.slaves[address]; ok {
		return s.state
	}
	return SlaveIdle
}

// PollOnce drives one full round over every registered slave: for a
// SlaveIdle link it runs RESET_REMOTE_LINK; for a ready link it runs one
// data-exchange step (REQUEST_USER_DATA_2, escalating to
// REQUEST_USER_DATA_1 when ACD was last signalled).
func (m *Master101) PollOnce() {
	for _, addr := range m.order {
		s := m.slaves[addr]
		if s.state == SlaveError {
			continue
		}
		if !s.resetDone {
			m.resetLink(s)
			continue
		}
		m.exchangeData(s)
	}
}

func (m *Master101) requestResponse(f LinkFrame) (LinkFrame, error) {
	frame, err := EncodeFixedFrame(f, m.Config.AddrWidth)
	if err != nil {
		return LinkFrame{}, err
	}
	if err := m.send(frame); err != nil {
		return LinkFrame{}, &TransportError{Err: err}
	}
	raw, err := m.recv(m.Config.LinkLayerResponseTimeout)
	if err != nil {
		return LinkFrame{}, err
	}
	return DecodeLinkFrame(raw, m.Config.AddrWidth)
}

// resetLink runs the two-step link-initialisation handshake: REQUEST_LINK_STATUS
// confirms the secondary is reachable before RESET_REMOTE_LINK clears its FCB
// state, per the polling cycle's link-establishment sequence.
func (m *Master101) resetLink(s *slaveLink) {
	statusResp, err := m.requestResponse(LinkFrame{Primary: true, Function: byte(FuncRequestLinkStatus), Address: s.address})
	if err != nil {
		m.retryOrFail(s, "request link status", err)
		return
	}
	if SecondaryFunction(statusResp.Function) != FuncStatusOfLink {
		m.retryOrFail(s, "request link status", newProtocolError(ErrUnexpectedFormat, "expected STATUS_OF_LINK"))
		return
	}

	resp, err := m.requestResponse(LinkFrame{Primary: true, Function: byte(FuncResetRemoteLink), Address: s.address})
	if err != nil {
		m.retryOrFail(s, "reset remote link", err)
		return
	}
	if SecondaryFunction(resp.Function) != FuncAck {
		m.retryOrFail(s, "reset remote link", newProtocolError(ErrUnexpectedFormat, "expected ACK"))
		return
	}
	s.expectFCB = false
	s.resetDone = true
	s.retries = 0
	s.state = SlaveAvailable
}

func (m *Master101) exchangeData(s *slaveLink) {
	fn := FuncRequestUserData2
	if s.state == SlaveBusy {
		fn = FuncRequestUserData1
	}
	f := LinkFrame{
		Primary:  true,
		FCVOrDFC: true,
		FCBOrACD: s.expectFCB,
		Function: byte(fn),
		Address:  s.address,
	}
	resp, err := m.requestResponse(f)
	if err != nil {
		m.retryOrFail(s, "request user data", err)
		return
	}
	s.expectFCB = !s.expectFCB
	s.retries = 0
	s.state = SlaveAvailable

	switch SecondaryFunction(resp.Function) {
	case FuncRespondUserData:
		if m.OnASDU != nil && len(resp.Payload) > 0 {
			asdu, err := ParseASDU(resp.Payload, m.Params)
			if err != nil {
				m.lg.WithError(err).Warn("dropping unparsable cs101 asdu")
				return
			}
			m.OnASDU(asdu)
		}
		if resp.FCBOrACD {
			s.state = SlaveBusy // ACD: more class-1 data waiting
		}
	case FuncRespondNoData:
	default:
		m.lg.Warnf("unexpected secondary function %d from %d", resp.Function, s.address)
	}
}

func (m *Master101) retryOrFail(s *slaveLink, action string, err error) {
	s.retries++
	m.lg.WithError(err).Debugf("%s failed for slave %d (attempt %d)", action, s.address, s.retries)
	if s.retries > m.Config.LinkLayerRetries {
		s.state = SlaveError
		m.lg.Errorf("slave %d -> ERROR after %d retries", s.address, s.retries)
	}
}

// RequestLinkStatus issues REQUEST_LINK_STATUS and reports whether
// STATUS_OF_LINK came back within the response timeout.
func (m *Master101) RequestLinkStatus(address uint16) (bool, error) {
	resp, err := m.requestResponse(LinkFrame{Primary: true, Function: byte(FuncRequestLinkStatus), Address: address})
	if err != nil {
		return false, err
	}
	return SecondaryFunction(resp.Function) == FuncStatusOfLink, nil
}
