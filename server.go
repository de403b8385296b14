package iec60870

import (
	"crypto/tls"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

// ServerHandler receives ASDUs delivered by any of a Server's accepted
// connections, in I-frame receive order per connection.
type ServerHandler interface {
	HandleASDU(conn *ServerConn, asdu *ASDU)
}

// ServerHandlerFunc adapts a plain function to ServerHandler.
type ServerHandlerFunc func(conn *ServerConn, asdu *ASDU)

func (f ServerHandlerFunc) HandleASDU(conn *ServerConn, asdu *ASDU) { f(conn, asdu) }

// NewServer constructs a CS104 slave (controlled station) listening on
// address.
func NewServer(address string, tc *tls.Config, handler ServerHandler, lg *logrus.Logger) *Server {
	if lg == nil {
		lg = _lg
	}
	return &Server{
		address: address,
		tc:      tc,
		handler: handler,
		params:  DefaultCS104Params(),
		lg:      lg,
	}
}

// Server in IEC 60870-5-104 is also called the slave or controlled
// station: it accepts connections from one or more masters and serves
// each from its own Connection engine.
type Server struct {
	address string
	tc      *tls.Config
	handler ServerHandler
	params  AppLayerParams

	lg *logrus.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[*ServerConn]struct{}
}

// ServerConn is one accepted master connection, pairing the raw socket
// with its Connection engine so handlers can send unsolicited ASDUs
// back.
type ServerConn struct {
	net.Conn
	cx *Connection
}

// Send transmits asdu back to the connected master.
func (sc *ServerConn) Send(asdu *ASDU) error {
	return sc.cx.Send(asdu)
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	if err := s.listen(); err != nil {
		return err
	}
	s.mu.Lock()
	s.conns = make(map[*ServerConn]struct{})
	s.mu.Unlock()

	defer s.listener.Close()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.lg.WithError(err).Error("accept failed, stopping server")
			return err
		}
		go s.serve(conn)
	}
}

func (s *Server) listen() error {
	var listener net.Listener
	var err error
	if s.tc != nil {
		listener, err = tls.Listen("tcp", s.address, s.tc)
	} else {
		listener, err = net.Listen("tcp", s.address)
	}
	if err != nil {
		return &TransportError{Err: err}
	}
	s.lg.Debugf("iec60870 server listening on %s (tls=%v)", s.address, s.tc != nil)
	s.listener = listener
	return nil
}

func (s *Server) serve(conn net.Conn) {
	s.lg.Debugf("serving connection from %s", conn.RemoteAddr())
	sc := &ServerConn{Conn: conn}

	cx := NewConnection(s.params, conn.Write, func() ([]byte, error) {
		return ReadAPDU(conn.Read)
	}, s.lg)
	sc.cx = cx
	cx.OnASDU = func(asdu *ASDU) {
		if s.handler != nil {
			s.handler.HandleASDU(sc, asdu)
		}
	}
	cx.OnState = func(st ConnectionState) {
		s.lg.Debugf("%s -> %s", conn.RemoteAddr(), st)
	}

	s.mu.Lock()
	s.conns[sc] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, sc)
		s.mu.Unlock()
		conn.Close()
	}()

	cx.Start()
	cx.Wait()
}

// Close stops the listener and every active connection.
func (s *Server) Close() {
	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	conns := make([]*ServerConn, 0, len(s.conns))
	for sc := range s.conns {
		conns = append(conns, sc)
	}
	s.mu.Unlock()

	for _, sc := range conns {
		sc.cx.Close()
		sc.Conn.Close()
	}
}
