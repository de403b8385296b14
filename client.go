package iec60870

import (
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Client is the CS104 master (controlling station): it dials one
// outstation, drives STARTDT/STOPDT, and hands received ASDUs to the
// configured handler. It does not reconnect a dropped connection by
// itself. The goroutine-pair transport shape follows the teacher's
// client.go; sequence/window bookkeeping now
// lives in Connection instead of the teacher's stubbed sendIFrame/
// sendSFrame.
type Client struct {
	opt *ClientOption

	tc      *tls.Config
	timeout time.Duration

	mu   sync.Mutex
	conn net.Conn
	cx   *Connection

	lg *logrus.Logger
}

// NewClient dials no connection by itself; call Connect to establish the
// link and start the STARTDT handshake.
func NewClient(opt *ClientOption, lg *logrus.Logger) *Client {
	if lg == nil {
		lg = _lg
	}
	return &Client{opt: opt, timeout: opt.connectTimeout, tc: opt.tc, lg: lg}
}

// Connect dials the configured address, starts the Connection engine and
// issues STARTDT act, per spec.md section 4.5.
func (c *Client) Connect() error {
	conn, err := c.dial()
	if err != nil {
		return &TransportError{Err: err}
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	cx := NewConnection(DefaultCS104Params(), c.writeAPDU, c.readAPDU, c.lg)
	cx.OnASDU = c.opt.handler.HandleASDU
	cx.OnState = func(s ConnectionState) {
		c.lg.Debugf("connection state -> %s", s)
		if s == StateStarted && c.opt.onConnectHandler != nil {
			c.opt.onConnectHandler(c)
		}
		if s == StateStopped && c.opt.onDisconnectHandler != nil {
			c.opt.onDisconnectHandler(c)
		}
	}
	c.mu.Lock()
	c.cx = cx
	c.mu.Unlock()

	cx.Start()
	return cx.StartDataTransfer()
}

func (c *Client) dial() (net.Conn, error) {
	address := c.opt.server.Host
	if c.tc != nil {
		return tls.DialWithDialer(&net.Dialer{Timeout: c.timeout}, "tcp", address, c.tc)
	}
	return net.DialTimeout("tcp", address, c.timeout)
}

func (c *Client) writeAPDU(data []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	_, err := conn.Write(data)
	return err
}

func (c *Client) readAPDU() ([]byte, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("not connected")
	}
	return ReadAPDU(conn.Read)
}

// Send submits asdu for transmission to the outstation.
func (c *Client) Send(asdu *ASDU) error {
	c.mu.Lock()
	cx := c.cx
	c.mu.Unlock()
	if cx == nil {
		return newStateError(ErrNotStarted, "client is not connected")
	}
	return cx.Send(asdu)
}

// IsConnected reports whether the APCI state machine is in STARTED.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	cx := c.cx
	c.mu.Unlock()
	return cx != nil && cx.State() == StateStarted
}

// Close issues STOPDT act, waits for confirmation (at most T1, ending
// early if the connection closes), and drops the transport.
func (c *Client) Close() {
	c.mu.Lock()
	cx, conn := c.cx, c.conn
	c.mu.Unlock()
	if cx != nil {
		if err := cx.StopDataTransfer(); err == nil {
			deadline := time.Now().Add(cx.Timers.T1)
			for time.Now().Before(deadline) {
				if s := cx.State(); s == StateStopped || s == StateClosing {
					break
				}
				time.Sleep(10 * time.Millisecond)
			}
		}
		cx.Close()
	}
	if conn != nil {
		conn.Close()
	}
}
