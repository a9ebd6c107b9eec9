// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package compress

import (
	"compress/zlib"
	"io"
	"sync"
)

var zlibMethod = Method{
	Name: "zlib",
	Wrapper: func(rw io.ReadWriter) (io.ReadWriter, error) {
		return &zlibConn{raw: rw, w: zlib.NewWriter(rw)}, nil
	},
}

// zlibConn compresses writes immediately but creates its zlib reader on the
// first read.
// The zlib reader reads header data from the connection as soon as it is
// created and blocks until it can do so, while the transform is installed
// before the peer has sent anything compressed.
type zlibConn struct {
	raw io.ReadWriter

	wm sync.Mutex
	w  *zlib.Writer

	rm sync.Mutex
	r  io.ReadCloser
}

func (c *zlibConn) reader() (io.Reader, error) {
	c.rm.Lock()
	defer c.rm.Unlock()

	if c.r == nil {
		r, err := zlib.NewReader(c.raw)
		if err != nil {
			return nil, err
		}
		c.r = r
	}
	return c.r, nil
}

func (c *zlibConn) Read(p []byte) (int, error) {
	r, err := c.reader()
	if err != nil {
		return 0, err
	}
	return r.Read(p)
}

// Write compresses p and flushes it so that the peer can decompress every
// write as soon as it arrives.
func (c *zlibConn) Write(p []byte) (int, error) {
	c.wm.Lock()
	defer c.wm.Unlock()

	n, err := c.w.Write(p)
	if err != nil {
		return n, err
	}
	return n, c.w.Flush()
}

// Close closes the zlib reader (if one was created) and writer and returns
// the last error.
// It does not close the underlying connection.
func (c *zlibConn) Close() error {
	var closers []io.Closer
	c.rm.Lock()
	if c.r != nil {
		closers = append(closers, c.r)
	}
	c.rm.Unlock()
	c.wm.Lock()
	defer c.wm.Unlock()
	closers = append(closers, c.w)

	var err error
	for _, cl := range closers {
		if e := cl.Close(); e != nil {
			err = e
		}
	}
	return err
}
