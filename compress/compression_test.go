// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package compress_test

import (
	"bytes"
	"encoding/xml"
	"io"
	"strconv"
	"strings"
	"testing"

	"mellium.im/xmlstream"

	"mellium.im/xmppframe/compress"
	"mellium.im/xmppframe/element"
	"mellium.im/xmppframe/scan"
)

var lookupTests = [...]struct {
	name    string
	methods []compress.Method
	ok      bool
}{
	0: {name: "zlib", ok: true},
	1: {name: "lzw"},
	2: {name: "lzw", methods: []compress.Method{compress.LZW}, ok: true},
	3: {name: "exi", methods: []compress.Method{compress.LZW}},
	4: {name: "", methods: []compress.Method{compress.LZW}},
}

func TestLookup(t *testing.T) {
	for i, tc := range lookupTests {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			m, ok := compress.Lookup(tc.name, tc.methods...)
			if ok != tc.ok {
				t.Fatalf("wrong result: want=%t, got=%t", tc.ok, ok)
			}
			if ok && m.Name != tc.name {
				t.Errorf("wrong method: want=%q, got=%q", tc.name, m.Name)
			}
		})
	}
}

func parse(t *testing.T, s string) *element.Element {
	t.Helper()
	el, err := (&element.Normalizer{}).Normalize(scan.Unit{Kind: scan.Element, Raw: s}, nil)
	if err != nil {
		t.Fatalf("error parsing %s: %v", s, err)
	}
	return el
}

var requestTests = [...]struct {
	in   string
	name string
	err  error
}{
	0: {
		in:   `<compress xmlns='http://jabber.org/protocol/compress'><method>zlib</method></compress>`,
		name: "zlib",
	},
	1: {
		in:   `<compress xmlns='http://jabber.org/protocol/compress'><method> lzw </method></compress>`,
		name: "lzw",
	},
	2: {
		in:  `<compress xmlns='http://jabber.org/protocol/compress'><method>exi</method></compress>`,
		err: compress.ErrUnsupportedMethod,
	},
	3: {
		in:  `<compress xmlns='http://jabber.org/protocol/compress'/>`,
		err: compress.ErrNotRequest,
	},
	4: {
		in:  `<compress xmlns='urn:example'><method>zlib</method></compress>`,
		err: compress.ErrNotRequest,
	},
	5: {
		in:  `<starttls xmlns='urn:ietf:params:xml:ns:xmpp-tls'/>`,
		err: compress.ErrNotRequest,
	},
}

func TestRequest(t *testing.T) {
	for i, tc := range requestTests {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			m, err := compress.Request(parse(t, tc.in), compress.LZW)
			if err != tc.err {
				t.Fatalf("wrong error: want=%v, got=%v", tc.err, err)
			}
			if m.Name != tc.name {
				t.Errorf("wrong method: want=%q, got=%q", tc.name, m.Name)
			}
		})
	}
}

func encode(t *testing.T, r xml.TokenReader) string {
	t.Helper()
	var b strings.Builder
	e := xml.NewEncoder(&b)
	if _, err := xmlstream.Copy(e, r); err != nil {
		t.Fatalf("error encoding: %v", err)
	}
	if err := e.Flush(); err != nil {
		t.Fatalf("error flushing: %v", err)
	}
	return b.String()
}

func TestElements(t *testing.T) {
	if s := encode(t, compress.Compressed()); s != `<compressed xmlns="http://jabber.org/protocol/compress"></compressed>` {
		t.Errorf("wrong acknowledgement: %s", s)
	}
	const want = `<failure xmlns="http://jabber.org/protocol/compress"><setup-failed></setup-failed></failure>`
	if s := encode(t, compress.Failure("setup-failed")); s != want {
		t.Errorf("wrong failure: want=%s, got=%s", want, s)
	}
}

func TestZlibRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	rw, err := compress.Zlib.Wrapper(&buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	const stanza = `<message to='a@example.net'><body>hello</body></message>`
	for i := 0; i < 2; i++ {
		if _, err = io.WriteString(rw, stanza); err != nil {
			t.Fatalf("error writing: %v", err)
		}
	}
	out := make([]byte, 2*len(stanza))
	if _, err = io.ReadFull(rw, out); err != nil {
		t.Fatalf("error reading: %v", err)
	}
	if s := string(out); s != stanza+stanza {
		t.Errorf("wrong output: want=%s, got=%s", stanza+stanza, s)
	}
	if c, ok := rw.(io.Closer); ok {
		if err = c.Close(); err != nil {
			t.Errorf("error closing: %v", err)
		}
	}
}
