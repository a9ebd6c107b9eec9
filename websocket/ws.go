// Copyright 2020 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package websocket

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"

	"golang.org/x/net/websocket"

	"mellium.im/xmppframe"
	"mellium.im/xmppframe/element"
)

// ErrNoProtocol is returned by the server handshake if the client did not
// offer the XMPP subprotocol.
var ErrNoProtocol = errors.New("websocket: client did not request the xmpp subprotocol")

// A Handler is called for each top-level element read from a connection along
// with the pipeline that read it, which can be used to reply.
type Handler func(p *xmppframe.Pipeline, el *element.Element) error

// Server returns a WebSocket server that accepts connections offering the XMPP
// subprotocol and frames each of them with its own pipeline.
//
// The pipeline options are applied to every connection.
// Connections made over TLS start with the Secure bit set.
func Server(h Handler, opts ...xmppframe.Option) websocket.Server {
	return websocket.Server{
		Handshake: handshake,
		Handler: func(conn *websocket.Conn) {
			/* #nosec */
			Serve(conn, h, opts...)
		},
	}
}

func handshake(cfg *websocket.Config, _ *http.Request) error {
	for _, proto := range cfg.Protocol {
		if proto == WSProtocol {
			cfg.Protocol = []string{WSProtocol}
			return nil
		}
	}
	return ErrNoProtocol
}

// Serve frames the XMPP stream on an established WebSocket connection until
// the stream or the connection ends.
//
// If the peer closes the stream a <close/> element is sent in reply.
// If the stream fails a stream error describing the failure is sent instead.
// The connection is closed before Serve returns.
func Serve(conn *websocket.Conn, h Handler, opts ...xmppframe.Option) error {
	ctx := context.Background()
	if req := conn.Request(); req != nil {
		ctx = req.Context()
		if req.TLS != nil {
			opts = append(opts[:len(opts):len(opts)], xmppframe.InitialState(xmppframe.Secure))
		}
	}

	var p *xmppframe.Pipeline
	p = xmppframe.New(conn, xmppframe.HandlerFunc(func(el *element.Element) error {
		return h(p, el)
	}), opts...)

	err := p.Serve(ctx)
	switch {
	case err != nil && ctx.Err() == nil:
		/* #nosec */
		p.SendError(xmppframe.Condition(err))
	case p.State()&xmppframe.InputStreamClosed != 0:
		/* #nosec */
		p.CloseStream()
	}
	if cerr := p.Close(); err == nil {
		err = cerr
	}
	return err
}

// DialDirect dials the provided WebSocket endpoint.
//
// Calling DialDirect is the equivalent of creating a Dialer type with only the
// Origin option set and calling its DialDirect method.
func DialDirect(ctx context.Context, origin, addr string) (net.Conn, error) {
	d := Dialer{
		Origin: origin,
	}
	return d.DialDirect(ctx, addr)
}

// Dialer connects to XMPP WebSocket endpoints.
// The zero value for each field is equivalent to dialing without that option
// with the exception of Origin (which is required).
type Dialer struct {
	// A WebSocket client origin.
	Origin string

	// TLS config for secure WebSocket (wss).
	// If TLSConfig is nil a default config is used.
	TLSConfig *tls.Config

	// Additional header fields to be sent in WebSocket opening handshake.
	Header http.Header

	// Dialer used when opening websocket connections.
	Dialer *net.Dialer
}

// DialDirect dials the websocket endpoint at addr, which must be a complete
// URI with a scheme of "ws" or "wss".
//
// Context is currently not used due to restrictions in the underlying WebSocket
// implementation.
// This may change in the future.
func (d *Dialer) DialDirect(_ context.Context, addr string) (net.Conn, error) {
	cfg, err := d.config(addr)
	if err != nil {
		return nil, err
	}
	return websocket.DialConfig(cfg)
}

func (d *Dialer) config(addr string) (cfg *websocket.Config, err error) {
	cfg, err = websocket.NewConfig(addr, d.Origin)
	if err != nil {
		return nil, err
	}
	cfg.Protocol = []string{WSProtocol}
	cfg.TlsConfig = d.TLSConfig
	if cfg.TlsConfig == nil {
		cfg.TlsConfig = &tls.Config{
			ServerName: cfg.Location.Hostname(),
		}
	}
	if d.Header != nil {
		cfg.Header = d.Header
	}
	cfg.Dialer = d.Dialer
	return cfg, nil
}
