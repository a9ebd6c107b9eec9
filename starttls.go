// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xmppframe

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"

	"mellium.im/xmppframe/compress"
	"mellium.im/xmppframe/internal/ns"
)

// BUG(ssw): STARTTLS does not have security layer byte precision; bytes sent
// by the peer after <proceed/> that were read before StartTLS was called are
// framed as plaintext.

// TLS returns a transform that runs TLS over a net.Conn.
// The handshake is performed on the first read or write.
func TLS(cfg *tls.Config, server bool) Transform {
	return func(rw io.ReadWriter) (io.ReadWriter, error) {
		conn, ok := rw.(net.Conn)
		if !ok {
			return nil, errNotConn
		}
		if server {
			return tls.Server(conn, cfg), nil
		}
		return tls.Client(conn, cfg), nil
	}
}

// StartTLS installs a TLS transform and sets the Secure and
// StreamRestartRequired bits.
// If server is true a <proceed/> element is written before the transform is
// installed; a client must already have read one.
//
// If no config is given, a config with the ServerName set to the from address
// of the last stream header read is used.
func (p *Pipeline) StartTLS(cfg *tls.Config, server bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cfg == nil {
		cfg = &tls.Config{
			ServerName: p.info.From,
		}
	}
	if server {
		if p.state&Secure != 0 {
			return ErrUpgraded
		}
		if err := p.write(fmt.Sprintf(`<proceed xmlns='%s'/>`, ns.StartTLS)); err != nil {
			return err
		}
	}
	return p.upgrade(TLS(cfg, server), Secure|StreamRestartRequired)
}

// Compress acknowledges a compression request with a <compressed/> element
// and installs the method's transform, setting the Compressed and
// StreamRestartRequired bits.
func (p *Pipeline) Compress(m compress.Method) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state&Compressed != 0 {
		return ErrUpgraded
	}
	ack, err := encode(compress.Compressed())
	if err != nil {
		return err
	}
	if err = p.write(ack); err != nil {
		return err
	}
	return p.upgrade(Transform(m.Wrapper), Compressed|StreamRestartRequired)
}
