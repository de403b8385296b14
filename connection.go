package iec60870

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ConnectionState is a CS104 connection's position in the APCI state
// machine of spec.md section 4.5.
type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateUnconfirmedStopped
	StateStarted
	StateStopped
	StateClosing
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateUnconfirmedStopped:
		return "UNCONFIRMED_STOPPED"
	case StateStarted:
		return "STARTED"
	case StateStopped:
		return "STOPPED"
	case StateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// ConnectionTimers holds the four protocol timers of spec.md section 4.5.
type ConnectionTimers struct {
	T0 time.Duration // connection establishment timeout
	T1 time.Duration // ack timeout for sent I-frames and U-frames
	T2 time.Duration // supervisory-ack idle delay, must be < T1
	T3 time.Duration // idle test timeout
}

// DefaultConnectionTimers returns the standard's suggested values.
func DefaultConnectionTimers() ConnectionTimers {
	return ConnectionTimers{
		T0: 30 * time.Second,
		T1: 15 * time.Second,
		T2: 10 * time.Second,
		T3: 20 * time.Second,
	}
}

// WindowParams holds the k/w sliding-window parameters of spec.md section 4.5.
type WindowParams struct {
	K int // max outstanding sent I-frames before a new one must queue
	W int // max received-unacked I-frames before an S-frame is required
}

// DefaultWindowParams returns the standard's suggested k=12, w=8.
func DefaultWindowParams() WindowParams {
	return WindowParams{K: 12, W: 8}
}

// pendingIFrame is one sent-but-unacknowledged I-frame, retained so it can
// be retransmitted across a reconnect (spec.md section 4.5, "Unconfirmed-I
// duplicates on reconnect").
type pendingIFrame struct {
	seq  uint16
	asdu []byte
	sent time.Time
}

// sendFunc hands an encoded APDU to the transport. recvFunc blocks for the
// next complete, framed APDU (its bytes, start byte included) or returns an
// error when the transport closes.
type sendFunc func([]byte) error
type recvFunc func() ([]byte, error)

// LinkStateFunc is notified whenever a connection transitions state.
type LinkStateFunc func(state ConnectionState)

// ASDUHandler receives one application-layer ASDU delivered in I-frame
// receive order (spec.md section 5, "Ordering guarantees").
type ASDUHandler func(asdu *ASDU)

// Connection is the CS104 APCI engine: window accounting, the four
// timers and the {IDLE..CLOSING} state machine described in spec.md
// section 4.5. One Connection serves one TCP link; Client and Server
// each own one per socket. Scheduling follows spec.md section 5: one
// background goroutine receives and applies incoming frames while a
// second calls Tick on a ticker to evaluate timers; sends run on the
// caller's goroutine — the teacher's two-goroutine shape in client.go,
// generalized to carry the full protocol state instead of stub panics.
type Connection struct {
	Params  AppLayerParams
	Timers  ConnectionTimers
	Window  WindowParams
	OnState LinkStateFunc
	OnASDU  ASDUHandler

	lg *logrus.Logger

	mu    sync.Mutex
	state ConnectionState

	vs  uint16 // send sequence counter V_S
	vr  uint16 // receive sequence counter V_R
	ack uint16 // highest N(R) acknowledged by the peer

	unackedRecv int       // received I-frames not yet S-acked
	lastRecvAt  time.Time // for t2
	lastActive  time.Time // any frame received, for t3

	pending      []pendingIFrame
	sendQueue    [][]byte // ASDUs queued because the window is full
	awaitingStartDT bool
	awaitingStopDT  bool
	awaitingTestFR  bool
	testFRSentAt    time.Time
	startedAt       time.Time
	stopRequestedAt time.Time

	send sendFunc
	recv recvFunc

	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// NewConnection builds a Connection bound to the given transport
// primitives. Call Start to begin the send/receive goroutines and Stop
// (or Close) to tear them down.
func NewConnection(params AppLayerParams, send sendFunc, recv recvFunc, lg *logrus.Logger) *Connection {
	if lg == nil {
		lg = _lg
	}
	return &Connection{
		Params: params,
		Timers: DefaultConnectionTimers(),
		Window: DefaultWindowParams(),
		lg:     lg,
		state:  StateIdle,
		send:   send,
		recv:   recv,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

func (c *Connection) setState(s ConnectionState) {
	c.state = s
	if c.OnState != nil {
		c.OnState(s)
	}
}

// State reports the connection's current position in the state machine.
func (c *Connection) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start enters CONNECTING, launches the receive loop and the tick loop,
// and moves to UNCONFIRMED_STOPPED once the transport is up. The caller
// (Client) is expected to already have a live socket behind send/recv.
func (c *Connection) Start() {
	c.mu.Lock()
	now := time.Now()
	c.setState(StateConnecting)
	c.lastActive = now
	c.lastRecvAt = now
	c.setState(StateUnconfirmedStopped)
	c.mu.Unlock()

	go c.receiveLoop()
	go c.tickLoop()
}

// StartDataTransfer sends STARTDT act, which the state machine confirms
// on receipt of STARTDT con (UNCONFIRMED_STOPPED/STOPPED → STARTED).
func (c *Connection) StartDataTransfer() error {
	c.mu.Lock()
	c.awaitingStartDT = true
	c.startedAt = time.Now()
	c.mu.Unlock()
	return c.sendU(UFrameStartDtActivate)
}

// StopDataTransfer sends STOPDT act. Per spec.md section 5's cancellation
// contract, the caller should wait for the state to reach STOPPED
// (bounded by T1) before assuming outstanding I-frames have drained.
func (c *Connection) StopDataTransfer() error {
	c.mu.Lock()
	c.awaitingStopDT = true
	c.stopRequestedAt = time.Now()
	c.mu.Unlock()
	return c.sendU(UFrameStopDtActivate)
}

// Close moves the connection to CLOSING, discards the send queue and stops
// the tick loop. It does not close the underlying socket: the receive loop
// exits once its pending recv returns, and closing the socket is done by
// the owner (Client.Close, Server.Close).
func (c *Connection) Close() {
	c.mu.Lock()
	c.setState(StateClosing)
	c.sendQueue = nil
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.stopCh) })
}

// Wait blocks until the receive loop has fully exited, confirming the
// transport side is torn down.
func (c *Connection) Wait() {
	<-c.doneCh
}

// Send submits an ASDU for transmission. If the outstanding window is
// full (>= k), it is queued FIFO and released as acks arrive.
func (c *Connection) Send(asdu *ASDU) error {
	encoded, err := asdu.Encode()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateStarted {
		return newStateError(ErrNotStarted, "connection is not in STARTED")
	}
	if c.outstandingLocked() >= c.Window.K {
		c.sendQueue = append(c.sendQueue, encoded)
		return nil
	}
	return c.sendILocked(encoded)
}

func (c *Connection) outstandingLocked() int {
	return int(seqDelta(c.vs, c.ack))
}

// seqDelta computes a-b modulo 2^15, the window arithmetic of spec.md
// section 4.5 rule 5.
func seqDelta(a, b uint16) uint16 {
	return (a - b) & 0x7fff
}

func (c *Connection) sendILocked(encoded []byte) error {
	seq := c.vs
	frame := IFrame{SendSN: seq, RecvSN: c.vr}
	out, err := EncodeAPDU(APDU{Frame: frame, Raw: encoded})
	if err != nil {
		return err
	}
	c.vs = (c.vs + 1) & 0x7fff
	c.pending = append(c.pending, pendingIFrame{seq: seq, asdu: encoded, sent: time.Now()})
	c.unackedRecv = 0
	return c.send(out)
}

func (c *Connection) sendU(f UFrame) error {
	out, err := EncodeAPDU(APDU{Frame: f})
	if err != nil {
		return err
	}
	return c.send(out)
}

func (c *Connection) sendS() error {
	c.mu.Lock()
	f := SFrame{RecvSN: c.vr}
	c.unackedRecv = 0
	c.mu.Unlock()
	out, err := EncodeAPDU(APDU{Frame: f})
	if err != nil {
		return err
	}
	return c.send(out)
}

// receiveLoop decodes incoming APDUs and applies them to the state
// machine; it is the "readingFromSocket" half of the teacher's
// goroutine pair, generalized from printing frame names to driving
// V_S/V_R/ACK bookkeeping.
func (c *Connection) receiveLoop() {
	defer close(c.doneCh)
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		raw, err := c.recv()
		if err != nil {
			c.lg.WithError(err).Debug("connection receive loop exiting")
			c.mu.Lock()
			c.setState(StateClosing)
			c.mu.Unlock()
			return
		}
		apdu, err := DecodeAPDU(raw)
		if err != nil {
			c.lg.WithError(err).Warn("dropping malformed apdu")
			continue
		}
		c.handleAPDU(apdu)
	}
}

func (c *Connection) handleAPDU(apdu APDU) {
	c.mu.Lock()
	c.lastActive = time.Now()
	c.awaitingTestFR = false
	c.mu.Unlock()

	switch f := apdu.Frame.(type) {
	case IFrame:
		c.handleIFrame(f, apdu.Raw)
	case SFrame:
		c.handleAck(f.RecvSN)
	case UFrame:
		c.handleUFrame(f)
	}
}

func (c *Connection) handleIFrame(f IFrame, raw []byte) {
	c.mu.Lock()
	if f.SendSN != c.vr {
		c.mu.Unlock()
		c.lg.Errorf("out-of-order N(S): want %d got %d, closing", c.vr, f.SendSN)
		c.Close()
		return
	}
	c.vr = (c.vr + 1) & 0x7fff
	c.unackedRecv++
	c.lastRecvAt = time.Now()
	needAck := c.unackedRecv >= c.Window.W
	c.mu.Unlock()
	c.handleAck(f.RecvSN)

	asdu, err := ParseASDU(raw, c.Params)
	if err != nil {
		c.lg.WithError(err).Warn("dropping unparsable asdu")
	} else if c.OnASDU != nil {
		c.OnASDU(asdu)
	}

	if needAck {
		if err := c.sendS(); err != nil {
			c.lg.WithError(err).Warn("failed to send supervisory ack")
		}
	}
}

// handleAck drops pending frames acknowledged by N(R) and releases
// queued sends into the now-available window.
func (c *Connection) handleAck(nr uint16) {
	c.mu.Lock()
	c.ack = nr
	// Frames are sent with strictly increasing, wrap-around sequence
	// numbers, so the pending queue is already ordered: everything
	// before the first entry whose seq equals nr has been acknowledged.
	i := 0
	for i < len(c.pending) && c.pending[i].seq != nr {
		i++
	}
	c.pending = c.pending[i:]

	for len(c.sendQueue) > 0 && c.outstandingLocked() < c.Window.K {
		next := c.sendQueue[0]
		c.sendQueue = c.sendQueue[1:]
		if err := c.sendILocked(next); err != nil {
			c.lg.WithError(err).Warn("failed to flush queued send")
			break
		}
	}
	c.mu.Unlock()
}

func (c *Connection) handleUFrame(f UFrame) {
	switch f.Function {
	case UStartDtActivate:
		if err := c.sendU(UFrameStartDtConfirm); err != nil {
			c.lg.WithError(err).Warn("failed to confirm STARTDT")
		}
		c.mu.Lock()
		c.setState(StateStarted)
		c.mu.Unlock()
	case UStartDtConfirm:
		c.mu.Lock()
		c.awaitingStartDT = false
		c.setState(StateStarted)
		c.mu.Unlock()
	case UStopDtActivate:
		if err := c.sendU(UFrameStopDtConfirm); err != nil {
			c.lg.WithError(err).Warn("failed to confirm STOPDT")
		}
		c.mu.Lock()
		c.setState(StateStopped)
		c.mu.Unlock()
	case UStopDtConfirm:
		c.mu.Lock()
		c.awaitingStopDT = false
		c.setState(StateStopped)
		c.mu.Unlock()
	case UTestFrActivate:
		if err := c.sendU(UFrameTestFrConfirm); err != nil {
			c.lg.WithError(err).Warn("failed to confirm TESTFR")
		}
	case UTestFrConfirm:
		c.mu.Lock()
		c.awaitingTestFR = false
		c.mu.Unlock()
	}
}

// tickLoop evaluates the four protocol timers on a fixed cadence, per
// spec.md section 5's tick entrypoint. It runs as the background-thread
// mode the spec describes as optional; callers embedding the library
// single-threaded can instead call Tick directly on their own schedule.
func (c *Connection) tickLoop() {
	interval := c.Timers.T2
	if c.Timers.T1 < interval {
		interval = c.Timers.T1
	}
	if c.Timers.T3 < interval {
		interval = c.Timers.T3
	}
	interval /= 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.Tick()
		}
	}
}

// Tick evaluates outstanding timers and emits frames as needed: a
// supervisory ack once t2 elapses since the last received I-frame, a
// TESTFR act once t3 elapses with no activity, and a connection close
// if t1 elapses on any unacknowledged I-frame, outstanding U-frame-act,
// or outstanding TESTFR act.
func (c *Connection) Tick() {
	now := time.Now()

	c.mu.Lock()
	state := c.state
	unacked := c.unackedRecv
	sinceRecv := now.Sub(c.lastRecvAt)
	sinceActive := now.Sub(c.lastActive)
	awaitingStartDT := c.awaitingStartDT
	startedAt := c.startedAt
	awaitingStopDT := c.awaitingStopDT
	stopRequestedAt := c.stopRequestedAt
	awaitingTestFR := c.awaitingTestFR
	testFRSentAt := c.testFRSentAt
	var oldestPending time.Time
	if len(c.pending) > 0 {
		oldestPending = c.pending[0].sent
	}
	c.mu.Unlock()

	if state == StateClosing || state == StateIdle {
		return
	}

	if unacked > 0 && sinceRecv >= c.Timers.T2 {
		if err := c.sendS(); err != nil {
			c.lg.WithError(err).Warn("failed to send idle supervisory ack")
		}
	}

	if awaitingStartDT && now.Sub(startedAt) >= c.Timers.T1 {
		c.lg.Error("STARTDT not confirmed within t1, closing")
		c.Close()
		return
	}

	if awaitingStopDT && now.Sub(stopRequestedAt) >= c.Timers.T1 {
		c.lg.Error("STOPDT not confirmed within t1, closing")
		c.Close()
		return
	}

	if !oldestPending.IsZero() && now.Sub(oldestPending) >= c.Timers.T1 {
		c.lg.Error("unacknowledged i-frame exceeded t1, closing")
		c.Close()
		return
	}

	if awaitingTestFR {
		if now.Sub(testFRSentAt) >= c.Timers.T1 {
			c.lg.Error("TESTFR not confirmed within t1, closing")
			c.Close()
		}
		return
	}

	if sinceActive >= c.Timers.T3 {
		c.mu.Lock()
		c.awaitingTestFR = true
		c.testFRSentAt = now
		c.mu.Unlock()
		if err := c.sendU(UFrameTestFrActivate); err != nil {
			c.lg.WithError(err).Warn("failed to send TESTFR act")
		}
	}
}

// ResumeFrom discards retained pending frames whose N(S) is at or before
// the peer's resume ACK and resends the rest in order, per spec.md
// section 4.5's reconnect contract.
func (c *Connection) ResumeFrom(peerAck uint16) error {
	c.mu.Lock()
	i := 0
	for i < len(c.pending) && c.pending[i].seq != peerAck {
		i++
	}
	toResend := append([]pendingIFrame(nil), c.pending[i:]...)
	c.pending = nil
	c.mu.Unlock()

	for _, p := range toResend {
		if err := c.sendEncoded(p.asdu); err != nil {
			return err
		}
	}
	return nil
}

// sendEncoded submits pre-encoded ASDU bytes directly, used by ResumeFrom
// to retransmit retained frames without re-encoding them.
func (c *Connection) sendEncoded(encoded []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outstandingLocked() >= c.Window.K {
		c.sendQueue = append(c.sendQueue, encoded)
		return nil
	}
	return c.sendILocked(encoded)
}
