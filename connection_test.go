package iec60870

import (
	"io"
	"testing"
	"time"
)

// pipeTransport wires two Connections together in-process via byte
// channels, standing in for a TCP socket in tests.
type pipeTransport struct {
	out chan []byte
	in  chan []byte
}

func newPipePair() (*pipeTransport, *pipeTransport) {
	a := make(chan []byte, 16)
	b := make(chan []byte, 16)
	return &pipeTransport{out: a, in: b}, &pipeTransport{out: b, in: a}
}

func (p *pipeTransport) send(data []byte) error {
	p.out <- append([]byte(nil), data...)
	return nil
}

func (p *pipeTransport) recv() ([]byte, error) {
	data, ok := <-p.in
	if !ok {
		return nil, io.EOF
	}
	return data, nil
}

func newTestConnection(t *testing.T, transport *pipeTransport) *Connection {
	t.Helper()
	cx := NewConnection(DefaultCS104Params(), transport.send, transport.recv, nil)
	cx.Timers = ConnectionTimers{T0: time.Second, T1: time.Second, T2: 200 * time.Millisecond, T3: time.Second}
	return cx
}

func waitForState(t *testing.T, cx *Connection, want ConnectionState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cx.State() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s, got %s", want, cx.State())
}

func TestConnectionStartDataTransferHandshake(t *testing.T) {
	masterT, slaveT := newPipePair()
	master := newTestConnection(t, masterT)
	slave := newTestConnection(t, slaveT)

	master.Start()
	slave.Start()
	defer master.Close()
	defer slave.Close()

	if err := master.StartDataTransfer(); err != nil {
		t.Fatalf("start data transfer: %v", err)
	}

	waitForState(t, master, StateStarted)
	waitForState(t, slave, StateStarted)
}

func TestConnectionStopDataTransferTimeout(t *testing.T) {
	masterT, _ := newPipePair()
	master := newTestConnection(t, masterT)

	master.Start()
	defer master.Close()

	master.mu.Lock()
	master.state = StateStarted
	master.mu.Unlock()

	if err := master.StopDataTransfer(); err != nil {
		t.Fatalf("stop data transfer: %v", err)
	}

	waitForState(t, master, StateClosing)
}

func TestConnectionSendDeliversASDUInOrder(t *testing.T) {
	masterT, slaveT := newPipePair()
	master := newTestConnection(t, masterT)
	slave := newTestConnection(t, slaveT)

	received := make(chan *ASDU, 10)
	slave.OnASDU = func(a *ASDU) { received <- a }

	master.Start()
	slave.Start()
	defer master.Close()
	defer slave.Close()

	if err := master.StartDataTransfer(); err != nil {
		t.Fatalf("start data transfer: %v", err)
	}
	waitForState(t, master, StateStarted)
	waitForState(t, slave, StateStarted)

	params := DefaultCS104Params()
	for i := 0; i < 3; i++ {
		asdu := NewASDU(params, false, CauseOfTransmission{Cause: CauseSpontaneous}, 1)
		if err := asdu.AddInformationObject(M_SP_NA_1, IOA(i), []byte{byte(i % 2)}); err != nil {
			t.Fatalf("add: %v", err)
		}
		if err := master.Send(asdu); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	for i := 0; i < 3; i++ {
		select {
		case got := <-received:
			elem, err := got.Element(0)
			if err != nil {
				t.Fatalf("element: %v", err)
			}
			if elem.Address != IOA(i) {
				t.Errorf("asdu %d: ioa = %d, want %d", i, elem.Address, i)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for asdu %d", i)
		}
	}
}

func TestConnectionWindowQueuesBeyondK(t *testing.T) {
	masterT, slaveT := newPipePair()
	master := newTestConnection(t, masterT)
	master.Window = WindowParams{K: 1, W: 100}
	slave := newTestConnection(t, slaveT)
	slave.Window = WindowParams{K: 100, W: 100}

	master.Start()
	slave.Start()
	defer master.Close()
	defer slave.Close()

	if err := master.StartDataTransfer(); err != nil {
		t.Fatalf("start data transfer: %v", err)
	}
	waitForState(t, master, StateStarted)
	waitForState(t, slave, StateStarted)

	params := DefaultCS104Params()
	for i := 0; i < 3; i++ {
		asdu := NewASDU(params, false, CauseOfTransmission{Cause: CauseSpontaneous}, 1)
		if err := asdu.AddInformationObject(M_SP_NA_1, IOA(i), []byte{0}); err != nil {
			t.Fatalf("add: %v", err)
		}
		if err := master.Send(asdu); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		master.mu.Lock()
		queued := len(master.sendQueue)
		master.mu.Unlock()
		if queued == 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	master.mu.Lock()
	defer master.mu.Unlock()
	if len(master.sendQueue) != 0 {
		t.Errorf("expected send queue to drain once acks arrive, still has %d", len(master.sendQueue))
	}
}

func TestSeqDeltaWraps(t *testing.T) {
	if got := seqDelta(1, 0x7fff); got != 2 {
		t.Errorf("seqDelta(1, 0x7fff) = %d, want 2", got)
	}
	if got := seqDelta(5, 5); got != 0 {
		t.Errorf("seqDelta(5, 5) = %d, want 0", got)
	}
}
