// Copyright 2022 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xmpptest

import (
	"net"
)

// LocalPipe returns both ends of a TCP connection over the loopback interface.
// Unlike net.Pipe the connection is buffered by the kernel, so a write does not
// wait for the peer to read.
func LocalPipe() (client, server net.Conn, err error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, nil, err
	}
	/* #nosec */
	defer ln.Close()

	type accepted struct {
		conn net.Conn
		err  error
	}
	c := make(chan accepted, 1)
	go func() {
		conn, err := ln.Accept()
		c <- accepted{conn: conn, err: err}
	}()
	client, err = net.Dial("tcp", ln.Addr().String())
	if err != nil {
		return nil, nil, err
	}
	a := <-c
	if a.err != nil {
		/* #nosec */
		client.Close()
		return nil, nil, a.err
	}
	return client, a.conn, nil
}
