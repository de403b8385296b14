package iec60870

import (
	"crypto/tls"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultConnectTimeout    = 30 * time.Second
	DefaultReconnectRetries  = 0
	DefaultReconnectInterval = 1 * time.Minute
)

// ClientHandler receives ASDUs delivered by a Client's Connection, in
// I-frame receive order.
type ClientHandler interface {
	HandleASDU(asdu *ASDU)
}

// ClientHandlerFunc adapts a plain function to ClientHandler.
type ClientHandlerFunc func(asdu *ASDU)

func (f ClientHandlerFunc) HandleASDU(asdu *ASDU) { f(asdu) }

// NewClientOption parses server (host:port, optionally tcp:// prefixed)
// and builds the option set NewClient consumes.
func NewClientOption(server string, handler ClientHandler) (*ClientOption, error) {
	if len(server) > 0 && server[0] == ':' {
		server = "127.0.0.1" + server
	}
	if !strings.Contains(server, "://") {
		server = "tcp://" + server
	}
	remoteURL, err := url.Parse(server)
	if err != nil {
		return nil, err
	}
	return &ClientOption{
		server:         remoteURL,
		connectTimeout: DefaultConnectTimeout,
		autoReconnectRule: &AutoReconnectRule{
			retries:  DefaultReconnectRetries,
			interval: DefaultReconnectInterval,
		},
		handler: handler,
	}, nil
}

// ClientOption configures a Client: target address, TLS, a stored
// reconnect rule (see AutoReconnectRule) and the connect/disconnect
// notification hooks.
type ClientOption struct {
	server            *url.URL
	connectTimeout    time.Duration
	autoReconnectRule *AutoReconnectRule

	onConnectHandler    OnConnectHandler
	onDisconnectHandler OnDisconnectHandler

	handler ClientHandler

	tc *tls.Config
}

// AutoReconnectRule holds a retry count and interval for reconnecting a
// dropped connection (retries == 0 meaning no limit). It is stored on the
// ClientOption only; Client does not read it and never reconnects by
// itself.
type AutoReconnectRule struct {
	retries  int
	interval time.Duration
}

func (o *ClientOption) SetConnectTimeout(timeout time.Duration) *ClientOption {
	if timeout > 0 {
		o.connectTimeout = timeout
	}
	return o
}

func (o *ClientOption) SetAutoReconnectRule(rule *AutoReconnectRule) *ClientOption {
	if rule == nil {
		return o
	}
	if rule.retries < 0 {
		rule.retries = DefaultReconnectRetries
	}
	if rule.interval < 0 {
		rule.interval = DefaultReconnectInterval
	}
	o.autoReconnectRule = rule
	return o
}

func (o *ClientOption) SetTLS(tc *tls.Config) *ClientOption {
	o.tc = tc
	return o
}

// OnConnectHandler is invoked once the CS104 state machine reaches
// STARTED.
type OnConnectHandler func(c *Client)

func (o *ClientOption) SetOnConnectHandler(handler OnConnectHandler) *ClientOption {
	if handler != nil {
		o.onConnectHandler = handler
	}
	return o
}

// OnDisconnectHandler is invoked once the CS104 state machine reaches
// STOPPED.
type OnDisconnectHandler func(c *Client)

func (o *ClientOption) SetOnDisconnectHandler(handler OnDisconnectHandler) *ClientOption {
	if handler != nil {
		o.onDisconnectHandler = handler
	}
	return o
}
