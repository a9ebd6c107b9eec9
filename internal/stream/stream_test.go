// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package stream_test

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"testing"

	"golang.org/x/text/language"

	"mellium.im/xmppframe/element"
	"mellium.im/xmppframe/framer"
	"mellium.im/xmppframe/internal/decl"
	"mellium.im/xmppframe/internal/ns"
	intstream "mellium.im/xmppframe/internal/stream"
	"mellium.im/xmppframe/scan"
	"mellium.im/xmppframe/stream"
)

var sendTestCases = [...]struct {
	info     stream.Info
	contains []string
	missing  []string
}{
	0: {
		info: stream.Info{ID: "abc", XMLNS: ns.Server, To: "example.net", From: "test@example.net", Lang: language.Und},
		contains: []string{
			` id='abc'`, ` xmlns='jabber:server'`, ` to='example.net'`,
			` from='test@example.net'`, ` version='1.0'`,
			` xmlns:stream='http://etherx.jabber.org/streams'`,
		},
		missing: []string{`xml:lang`},
	},
	1: {
		info:     stream.Info{Lang: language.English, Version: stream.EmptyVersion},
		contains: []string{` xmlns='jabber:client'`, ` xml:lang='en'`},
		missing:  []string{` id='`, ` version='`},
	},
	2: {
		info:     stream.Info{To: "<&'>"},
		contains: []string{` to='&lt;&amp;&#39;&gt;'`},
	},
}

func TestSend(t *testing.T) {
	for i, tc := range sendTestCases {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			var b bytes.Buffer
			if err := intstream.Send(&b, tc.info); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			str := b.String()
			if !strings.HasPrefix(str, decl.XMLHeader+`<stream:stream `) {
				t.Errorf("Expected string to start with XML header and stream but got: %s", str)
			}
			if !strings.HasSuffix(str, `>`) || strings.HasSuffix(str, `/>`) {
				t.Errorf("Expected an open start tag but got: %s", str)
			}
			for _, s := range tc.contains {
				if !strings.Contains(str, s) {
					t.Errorf("Expected string to contain `%s` but got: %s", s, str)
				}
			}
			for _, s := range tc.missing {
				if strings.Contains(str, s) {
					t.Errorf("Expected string not to contain `%s` but got: %s", s, str)
				}
			}
		})
	}
}

// A header that is sent must be readable by the receiving side.
func TestSendRoundTrip(t *testing.T) {
	for _, ws := range []bool{false, true} {
		t.Run(strconv.FormatBool(ws), func(t *testing.T) {
			var b bytes.Buffer
			out := stream.Info{ID: "123", To: "example.net", Lang: language.English, WebSocket: ws}
			if err := intstream.Send(&b, out); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			units, err := framer.New().Frame(b.Bytes())
			if err != nil {
				t.Fatalf("error framing header: %v", err)
			}
			u := units[len(units)-1]
			n := &element.Normalizer{Content: element.NewIgnoreSet(ns.Client)}
			el, err := n.Normalize(u, nil)
			if err != nil {
				t.Fatalf("error normalizing header: %v", err)
			}
			var in stream.Info
			if err = in.FromElement(el); err != nil {
				t.Fatalf("error reading header: %v", err)
			}
			if in.ID != out.ID || in.To != out.To || in.Lang != out.Lang || in.WebSocket != ws {
				t.Errorf("header did not round trip: want=%+v, got=%+v", out, in)
			}
			if in.Version != stream.DefaultVersion {
				t.Errorf("wrong version: want=%v, got=%v", stream.DefaultVersion, in.Version)
			}
			if !ws && u.Kind != scan.StreamOpen {
				t.Errorf("wrong unit kind: want=%v, got=%v", scan.StreamOpen, u.Kind)
			}
		})
	}
}

func TestClose(t *testing.T) {
	var b bytes.Buffer
	if err := intstream.Close(&b, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s := b.String(); s != `</stream:stream>` {
		t.Errorf("wrong close: %s", s)
	}
	b.Reset()
	if err := intstream.Close(&b, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s := b.String(); s != `<close xmlns='urn:ietf:params:xml:ns:xmpp-framing'/>` {
		t.Errorf("wrong websocket close: %s", s)
	}
}

type errWriter struct{}

func (errWriter) Write(p []byte) (int, error) {
	return 0, io.ErrUnexpectedEOF
}

func TestSendReturnsWriteErr(t *testing.T) {
	err := intstream.Send(errWriter{}, stream.Info{ID: "abc"})
	if err != io.ErrUnexpectedEOF {
		t.Errorf("Expected errWriterErr (%s) but got `%s`", io.ErrUnexpectedEOF, err)
	}
}
