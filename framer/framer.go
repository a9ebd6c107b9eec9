// Copyright 2022 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package framer turns a stream of bytes into complete top-level XML units.
//
// A Framer is the composition of a utf8dec.Decoder and a scan.Scanner: bytes
// are decoded, the decoded text is scanned, and completed units are queued in
// the order their closing boundary was found.
// Zero, one, or many units may be completed by a single write.
package framer // import "mellium.im/xmppframe/framer"

import (
	"bytes"

	"golang.org/x/text/transform"

	"mellium.im/xmppframe/scan"
	"mellium.im/xmppframe/utf8dec"
)

// Framer frames a byte stream into units.
// The zero value is ready to use and uses a scanner with no size limit.
// A Framer is not safe for concurrent use.
type Framer struct {
	dec   utf8dec.Decoder
	scan  *scan.Scanner
	queue []scan.Unit
	tmp   []byte
}

// New returns a Framer whose scanner is configured by opts.
func New(opts ...scan.Option) *Framer {
	return &Framer{scan: scan.New(opts...)}
}

// Write decodes and scans p, queueing every unit that it completes.
// It always consumes all of p unless an error is returned.
// Bytes at the end of p that begin a multi-byte character are held by the
// Framer until the rest of the character is written.
func (f *Framer) Write(p []byte) (int, error) {
	text, err := f.dec.Decode(p)
	if err != nil {
		// Units completed by the valid prefix are still queued so that they can
		// be delivered before the error is reported.
		f.feed(text)
		return 0, err
	}
	if err = f.feed(text); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Consume decodes and scans the unread bytes in buf, and returns the units they
// complete.
//
// Unlike Write, Consume never holds bytes itself: an incomplete character at
// the end of buf is left unread in buf so that the next call picks it up after
// the transport appends more data.
// If bytes were previously held by Write, all of buf is consumed instead.
func (f *Framer) Consume(buf *bytes.Buffer) ([]scan.Unit, error) {
	if f.dec.Buffered() > 0 {
		_, err := f.Write(buf.Next(buf.Len()))
		return f.drain(), err
	}

	src := buf.Bytes()
	if cap(f.tmp) < len(src) {
		f.tmp = make([]byte, len(src))
	}
	dst := f.tmp[:len(src)]
	nDst, nSrc, err := f.dec.Transform(dst, src, false)
	switch err {
	case nil, transform.ErrShortSrc:
		err = nil
	}
	buf.Next(nSrc)
	if ferr := f.feed(string(dst[:nDst])); err == nil {
		err = ferr
	}
	return f.drain(), err
}

// Frame is like Write but returns the queued units instead of leaving them in
// the queue.
func (f *Framer) Frame(p []byte) ([]scan.Unit, error) {
	_, err := f.Write(p)
	return f.drain(), err
}

// Next removes the oldest queued unit and returns it.
// If the queue is empty, ok is false.
func (f *Framer) Next() (u scan.Unit, ok bool) {
	if len(f.queue) == 0 {
		return u, false
	}
	u = f.queue[0]
	f.queue[0] = scan.Unit{}
	f.queue = f.queue[1:]
	return u, true
}

// Len returns the number of queued units.
func (f *Framer) Len() int {
	return len(f.queue)
}

// Buffered returns the number of bytes held by the decoder and the number of
// bytes of an incomplete unit held by the scanner.
func (f *Framer) Buffered() (held, text int) {
	return f.dec.Buffered(), f.scanner().Buffered()
}

// Keepalive reports whether whitespace was received between units since the
// last call.
func (f *Framer) Keepalive() bool {
	return f.scanner().Keepalive()
}

// Reset discards the queue and all decoder and scanner state.
func (f *Framer) Reset() {
	f.dec.Reset()
	f.scanner().Reset()
	f.queue = nil
}

func (f *Framer) feed(text string) error {
	if text == "" {
		return nil
	}
	units, err := f.scanner().Feed(text)
	f.queue = append(f.queue, units...)
	return err
}

func (f *Framer) scanner() *scan.Scanner {
	if f.scan == nil {
		f.scan = &scan.Scanner{}
	}
	return f.scan
}

func (f *Framer) drain() []scan.Unit {
	q := f.queue
	f.queue = nil
	return q
}
