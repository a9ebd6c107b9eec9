// Copyright 2015 Sam Whited.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package stream_test

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"testing"

	"mellium.im/xmlstream"

	"mellium.im/xmppframe/stream"
)

var (
	_ error              = (*stream.Error)(nil)
	_ error              = stream.Error{}
	_ xml.Marshaler      = (*stream.Error)(nil)
	_ xml.Marshaler      = stream.Error{}
	_ xml.Unmarshaler    = (*stream.Error)(nil)
	_ xmlstream.WriterTo = stream.Error{}
)

var unmarshalTests = [...]struct {
	xml string
	se  stream.Error
	err bool
}{
	0: {
		`<stream:error><restricted-xml xmlns="urn:ietf:params:xml:ns:xmpp-streams"></restricted-xml></stream:error>`,
		stream.RestrictedXML, false,
	},
	1: {
		`<stream:error></a>`,
		stream.RestrictedXML, true,
	},
	2: {
		`<stream:error><policy-violation xmlns="urn:ietf:params:xml:ns:xmpp-streams"/><text xmlns="urn:ietf:params:xml:ns:xmpp-streams">too big</text></stream:error>`,
		stream.PolicyViolation.WithText("too big"), false,
	},
	3: {
		`<stream:error><text xmlns="urn:ietf:params:xml:ns:xmpp-streams">first</text><app xmlns="urn:example"/><conflict xmlns="urn:ietf:params:xml:ns:xmpp-streams"/></stream:error>`,
		stream.Conflict.WithText("first"), false,
	},
}

func TestUnmarshal(t *testing.T) {
	for i, test := range unmarshalTests {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			s := stream.Error{}
			err := xml.Unmarshal([]byte(test.xml), &s)
			switch {
			case test.err && err == nil:
				t.Errorf("Expected unmarshaling error for `%v` to fail", test.xml)
				return
			case !test.err && err != nil:
				t.Error(err)
				return
			case err != nil:
				return
			case s != test.se:
				t.Errorf("Expected `%#v` but got `%#v`", test.se, s)
			}
		})
	}
}

var marshalTests = [...]struct {
	se  stream.Error
	xml string
}{
	0: {
		se:  stream.NotWellFormed,
		xml: `<error xmlns="http://etherx.jabber.org/streams"><not-well-formed xmlns="urn:ietf:params:xml:ns:xmpp-streams"></not-well-formed></error>`,
	},
	1: {
		se:  stream.PolicyViolation.WithText("unit too large"),
		xml: `<error xmlns="http://etherx.jabber.org/streams"><policy-violation xmlns="urn:ietf:params:xml:ns:xmpp-streams"></policy-violation><text xmlns="urn:ietf:params:xml:ns:xmpp-streams">unit too large</text></error>`,
	},
}

func TestMarshal(t *testing.T) {
	for i, test := range marshalTests {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			xb, err := xml.Marshal(test.se)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s := string(xb); s != test.xml {
				t.Errorf("Bad output:\nwant=`%s`,\ngot=`%s`", test.xml, s)
			}

			var buf bytes.Buffer
			e := xml.NewEncoder(&buf)
			if _, err = test.se.WriteXML(e); err != nil {
				t.Fatalf("unexpected error writing tokens: %v", err)
			}
			if err = e.Flush(); err != nil {
				t.Fatalf("unexpected error flushing: %v", err)
			}
			if s := buf.String(); s != test.xml {
				t.Errorf("Bad WriteXML output:\nwant=`%s`,\ngot=`%s`", test.xml, s)
			}
		})
	}
}

// Both pointers and normal errors should marshal to the same thing.
func TestMarshalPointerAndNormal(t *testing.T) {
	xb, err := xml.Marshal(stream.BadFormat)
	if err != nil {
		t.Fatal(err)
	}
	xb2, err := xml.Marshal(&stream.BadFormat)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(xb, xb2) {
		t.Errorf("BadFormat and &BadFormat should marshal identically")
	}
}

func TestErrorReturnsErr(t *testing.T) {
	if stream.RestrictedXML.Error() != "restricted-xml" {
		t.Error("Error should return the name of the err")
	}
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", stream.PolicyViolation.WithText("some text"))
	if !errors.Is(err, stream.PolicyViolation) {
		t.Errorf("expected error with text to match the bare condition")
	}
	if errors.Is(err, stream.NotWellFormed) {
		t.Errorf("expected error not to match a different condition")
	}
	var se stream.Error
	if !errors.As(err, &se) || se.Text != "some text" {
		t.Errorf("expected to unwrap the stream error, got %#v", se)
	}
}
