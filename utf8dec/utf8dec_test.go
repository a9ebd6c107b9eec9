// Copyright 2022 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package utf8dec_test

import (
	"errors"
	"io/ioutil"
	"strconv"
	"strings"
	"testing"
	"testing/iotest"

	"golang.org/x/text/transform"

	"mellium.im/xmppframe/utf8dec"
)

var chunkTestCases = [...]string{
	0: "",
	1: "plain ascii",
	2: "<body>café</body>",
	3: "<body>€€€</body>",
	4: "<body>\U0001F600 and \U0001F4A9</body>",
	5: "é€\U0001F600é",
}

func TestChunkingInvariance(t *testing.T) {
	for i, tc := range chunkTestCases {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			for split := 0; split <= len(tc); split++ {
				d := &utf8dec.Decoder{}
				first, err := d.Decode([]byte(tc[:split]))
				if err != nil {
					t.Fatalf("split %d: unexpected error on first chunk: %v", split, err)
				}
				second, err := d.Decode([]byte(tc[split:]))
				if err != nil {
					t.Fatalf("split %d: unexpected error on second chunk: %v", split, err)
				}
				if out := first + second; out != tc {
					t.Errorf("split %d: wrong output: want=%q, got=%q", split, tc, out)
				}
				if n := d.Buffered(); n != 0 {
					t.Errorf("split %d: bytes left buffered: %d", split, n)
				}
			}
		})
	}
}

func TestByteAtATime(t *testing.T) {
	for i, tc := range chunkTestCases {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			d := &utf8dec.Decoder{}
			var out strings.Builder
			for j := 0; j < len(tc); j++ {
				s, err := d.Decode([]byte{tc[j]})
				if err != nil {
					t.Fatalf("unexpected error at byte %d: %v", j, err)
				}
				out.WriteString(s)
			}
			if out.String() != tc {
				t.Errorf("wrong output: want=%q, got=%q", tc, out.String())
			}
		})
	}
}

func TestThreeByteBoundary(t *testing.T) {
	euro := []byte("€")
	if len(euro) != 3 {
		t.Fatalf("test setup: want 3 bytes, got %d", len(euro))
	}
	d := &utf8dec.Decoder{}
	for i := 0; i < 2; i++ {
		s, err := d.Decode(euro[i : i+1])
		if err != nil {
			t.Fatalf("unexpected error after byte %d: %v", i+1, err)
		}
		if s != "" {
			t.Errorf("decoded output after byte %d: %q", i+1, s)
		}
		held, want := d.Pending()
		if held != i+1 || want != 3 {
			t.Errorf("wrong pending state after byte %d: want=(%d, 3), got=(%d, %d)", i+1, i+1, held, want)
		}
	}
	s, err := d.Decode(euro[2:])
	if err != nil {
		t.Fatalf("unexpected error after byte 3: %v", err)
	}
	if s != "€" {
		t.Errorf("wrong output after byte 3: want=%q, got=%q", "€", s)
	}
	if held, want := d.Pending(); held != 0 || want != 0 {
		t.Errorf("pending state not cleared: got=(%d, %d)", held, want)
	}
}

func TestTransformLeavesTail(t *testing.T) {
	src := []byte("ab€")
	for cut := 3; cut < len(src); cut++ {
		dst := make([]byte, len(src))
		d := &utf8dec.Decoder{}
		nDst, nSrc, err := d.Transform(dst, src[:cut], false)
		if err != transform.ErrShortSrc {
			t.Errorf("cut %d: unexpected error: want=%v, got=%v", cut, transform.ErrShortSrc, err)
		}
		if nSrc != 2 || nDst != 2 {
			t.Errorf("cut %d: reader index advanced past the incomplete sequence: nDst=%d, nSrc=%d", cut, nDst, nSrc)
		}
		if d.Buffered() != 0 {
			t.Errorf("cut %d: Transform must not hold bytes, got %d", cut, d.Buffered())
		}
	}
}

var malformedTestCases = [...]struct {
	in     []byte
	offset int64
}{
	0: {in: []byte{0xff}},
	1: {in: []byte("ok\x80"), offset: 2},
	2: {in: []byte{0xc0, 0x80}},
	3: {in: []byte{'a', 0xe2, 0x28, 0xa1}, offset: 1},
	4: {in: []byte{0xed, 0xa0, 0x80}},
	5: {in: []byte{0xf4, 0x90, 0x80, 0x80}},
	6: {in: []byte{0xf0, 0x9f, 0x28}},
	// A truncated sequence followed by an ASCII byte is invalid, not
	// incomplete.
	7: {in: []byte{0xe2, 0x82, 'a'}},
}

func TestMalformed(t *testing.T) {
	for i, tc := range malformedTestCases {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			d := &utf8dec.Decoder{}
			_, err := d.Decode(tc.in)
			if !errors.Is(err, utf8dec.ErrMalformed) {
				t.Fatalf("unexpected error: want=%v, got=%v", utf8dec.ErrMalformed, err)
			}
			var decErr *utf8dec.Error
			if !errors.As(err, &decErr) {
				t.Fatalf("wrong error type: %T", err)
			}
			if decErr.Offset != tc.offset {
				t.Errorf("wrong offset: want=%d, got=%d", tc.offset, decErr.Offset)
			}

			// The error is sticky.
			_, err = d.Decode([]byte("more"))
			if !errors.Is(err, utf8dec.ErrMalformed) {
				t.Errorf("error was not sticky: got=%v", err)
			}
			d.Reset()
			s, err := d.Decode([]byte("more"))
			if err != nil || s != "more" {
				t.Errorf("decoder not usable after reset: %q, %v", s, err)
			}
		})
	}
}

func TestMalformedAcrossChunks(t *testing.T) {
	d := &utf8dec.Decoder{}
	s, err := d.Decode([]byte{'x', 0xe2})
	if err != nil || s != "x" {
		t.Fatalf("unexpected result for first chunk: %q, %v", s, err)
	}
	_, err = d.Decode([]byte{0x28})
	if !errors.Is(err, utf8dec.ErrMalformed) {
		t.Errorf("unexpected error: want=%v, got=%v", utf8dec.ErrMalformed, err)
	}
}

func TestTransformReader(t *testing.T) {
	const in = "<message><body>é€\U0001F600</body></message>"
	r := transform.NewReader(iotest.OneByteReader(strings.NewReader(in)), &utf8dec.Decoder{})
	out, err := ioutil.ReadAll(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != in {
		t.Errorf("wrong output: want=%q, got=%q", in, out)
	}
}

func TestTransformReaderTruncated(t *testing.T) {
	r := transform.NewReader(strings.NewReader("abc\xe2\x82"), &utf8dec.Decoder{})
	_, err := ioutil.ReadAll(r)
	if !errors.Is(err, utf8dec.ErrMalformed) {
		t.Errorf("truncated input at EOF should be malformed: got=%v", err)
	}
}
