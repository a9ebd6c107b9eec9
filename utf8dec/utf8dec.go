// Copyright 2022 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package utf8dec decodes UTF-8 that arrives off the network in arbitrary
// chunks.
//
// A multi-byte sequence may be split across two reads.
// The decoder distinguishes such a sequence, which is held back until the rest
// of it arrives, from input that can never become valid UTF-8.
// The two forms of the API differ in who holds the incomplete bytes:
// Decode keeps them inside the Decoder, while Transform leaves them unconsumed
// in the caller's buffer.
package utf8dec // import "mellium.im/xmppframe/utf8dec"

import (
	"errors"
	"strconv"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// ErrMalformed is matched by any error returned when the input is not valid
// UTF-8 and could not be made valid by reading more bytes.
var ErrMalformed = errors.New("utf8dec: malformed input")

// Error is returned when invalid UTF-8 is found in the input.
type Error struct {
	// Offset is the number of bytes of valid input that preceded the invalid
	// sequence.
	Offset int64
}

func (e *Error) Error() string {
	return "utf8dec: malformed input at byte " + strconv.FormatInt(e.Offset, 10)
}

// Unwrap returns ErrMalformed.
func (e *Error) Unwrap() error {
	return ErrMalformed
}

var _ transform.Transformer = (*Decoder)(nil)

// Decoder is a stateful UTF-8 decoder.
// The zero value is ready for use.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	held  [utf8.UTFMax - 1]byte
	nheld int
	want  int

	off int64
	err error
	in  []byte
	out []byte
}

// Transform implements transform.Transformer.
//
// Transform copies the longest valid prefix of src to dst.
// If src ends in the start of a multi-byte sequence and atEOF is false, the
// incomplete bytes are not consumed and transform.ErrShortSrc is returned so
// that the caller leaves them in its buffer.
// Transform does not use the bytes held by Decode.
func (d *Decoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	nDst, nSrc, err = encoding.UTF8Validator.Transform(dst, src, atEOF)
	d.off += int64(nSrc)
	if err == encoding.ErrInvalidUTF8 {
		err = &Error{Offset: d.off}
	}
	return nDst, nSrc, err
}

// Decode decodes p, which is treated as following any bytes held from a
// previous call, and returns the longest string of complete characters.
// An incomplete trailing sequence is held until the next call.
//
// Concatenating the results of Decode over any split of the input gives the
// same result as decoding the input in a single call.
// Once Decode returns an error every later call returns the same error until
// Reset is called.
func (d *Decoder) Decode(p []byte) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	src := p
	if d.nheld > 0 {
		d.in = append(append(d.in[:0], d.held[:d.nheld]...), p...)
		src = d.in
	}
	if cap(d.out) < len(src) {
		d.out = make([]byte, len(src))
	}
	dst := d.out[:len(src)]

	nDst, nSrc, err := d.Transform(dst, src, false)
	switch err {
	case nil, transform.ErrShortSrc:
	default:
		d.err = err
		d.nheld, d.want = 0, 0
		return string(dst[:nDst]), err
	}

	d.nheld = copy(d.held[:], src[nSrc:])
	d.want = 0
	if d.nheld > 0 {
		d.want = seqLen(d.held[0])
	}
	return string(dst[:nDst]), nil
}

// Buffered returns the number of bytes held by Decode.
// It is never more than 3.
func (d *Decoder) Buffered() int {
	return d.nheld
}

// Pending returns the number of bytes held by Decode and the total length of
// the sequence they begin.
// If no bytes are held both are zero.
func (d *Decoder) Pending() (held, want int) {
	return d.nheld, d.want
}

// Reset clears all held bytes and any sticky error.
func (d *Decoder) Reset() {
	d.nheld, d.want = 0, 0
	d.off = 0
	d.err = nil
}

// seqLen returns the length of the sequence started by the leading byte b.
func seqLen(b byte) int {
	switch {
	case b&0xE0 == 0xC0:
		return 2
	case b&0xF0 == 0xE0:
		return 3
	case b&0xF8 == 0xF0:
		return 4
	}
	return 1
}
