// Copyright 2015 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

package stream

import (
	"encoding/xml"

	"mellium.im/xmlstream"
)

// Conditions reported for input that cannot be framed.
// The mapping from framing errors to these conditions is done by the
// xmppframe.Condition function.
var (
	// BadFormat is the generic condition for XML that cannot be processed.
	// The more specific conditions below are preferred.
	BadFormat = Error{Err: "bad-format"}

	// BadNamespacePrefix is used when an element or attribute uses a prefix that
	// was never declared.
	BadNamespacePrefix = Error{Err: "bad-namespace-prefix"}

	// InvalidNamespace is used when the stream header is not in the stream
	// namespace or declares a content namespace that the receiver does not
	// serve.
	InvalidNamespace = Error{Err: "invalid-namespace"}

	// InvalidXML is used by receivers that validate stanzas against a schema.
	InvalidXML = Error{Err: "invalid-xml"}

	// NotWellFormed is used for bytes that are not UTF-8 or for XML that breaks
	// the well-formedness rules of XML or XML namespaces.
	NotWellFormed = Error{Err: "not-well-formed"}

	// PolicyViolation is used for input that breaks a local rule, such as a
	// stanza that is larger than the configured limit.
	PolicyViolation = Error{Err: "policy-violation"}

	// RestrictedXML is used for comments, processing instructions, DTDs and
	// entity references where XMPP forbids them.
	RestrictedXML = Error{Err: "restricted-xml"}

	// UnsupportedEncoding is used when the stream is not encoded as UTF-8.
	UnsupportedEncoding = Error{Err: "unsupported-encoding"}

	// UnsupportedVersion is used when the version on the stream header is not
	// understood.
	UnsupportedVersion = Error{Err: "unsupported-version"}

	// ImproperAddressing is used when a to or from address is empty or is not a
	// valid domain.
	ImproperAddressing = Error{Err: "improper-addressing"}

	// UndefinedCondition is used for anything else, usually together with an
	// application specific condition or text.
	UndefinedCondition = Error{Err: "undefined-condition"}
)

// Conditions that are decided above the framing layer.
// See RFC 6120 §4.9.3 for when each should be sent.
var (
	Conflict               = Error{Err: "conflict"}
	ConnectionTimeout      = Error{Err: "connection-timeout"}
	HostGone               = Error{Err: "host-gone"}
	HostUnknown            = Error{Err: "host-unknown"}
	InternalServerError    = Error{Err: "internal-server-error"}
	InvalidFrom            = Error{Err: "invalid-from"}
	NotAuthorized          = Error{Err: "not-authorized"}
	RemoteConnectionFailed = Error{Err: "remote-connection-failed"}
	Reset                  = Error{Err: "reset"}
	ResourceConstraint     = Error{Err: "resource-constraint"}
	SystemShutdown         = Error{Err: "system-shutdown"}
	UnsupportedFeature     = Error{Err: "unsupported-feature"}
	UnsupportedStanzaType  = Error{Err: "unsupported-stanza-type"}
)

// Error is an unrecoverable stream-level error.
type Error struct {
	// Err is the name of the defined condition, for example "not-well-formed".
	Err string

	// Text is optional descriptive text that is sent with the condition.
	Text string
}

// Error satisfies the builtin error interface and returns the name of the
// StreamError. For instance, given the error:
//
//     <stream:error>
//       <restricted-xml xmlns="urn:ietf:params:xml:ns:xmpp-streams"/>
//     </stream:error>
//
// Error() would return "restricted-xml".
func (s Error) Error() string {
	return s.Err
}

// Is reports whether target is a stream error with the same condition.
// The text is not compared.
func (s Error) Is(target error) bool {
	switch t := target.(type) {
	case Error:
		return t.Err == s.Err
	case *Error:
		return t != nil && t.Err == s.Err
	}
	return false
}

// WithText returns a copy of the error that includes descriptive text.
func (s Error) WithText(text string) Error {
	s.Text = text
	return s
}

// UnmarshalXML satisfies the xml package's Unmarshaler interface and allows
// stream errors to be correctly unmarshaled from XML.
func (s *Error) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	se := struct {
		XMLName xml.Name
		Inner   []struct {
			XMLName xml.Name
			Text    string `xml:",chardata"`
		} `xml:",any"`
	}{}
	err := d.DecodeElement(&se, &start)
	if err != nil {
		return err
	}
	for _, inner := range se.Inner {
		switch {
		case inner.XMLName.Space != ErrorNS:
		case inner.XMLName.Local == "text":
			s.Text = inner.Text
		case s.Err == "":
			s.Err = inner.XMLName.Local
		}
	}
	return nil
}

// MarshalXML satisfies the xml package's Marshaler interface and allows
// stream errors to be correctly marshaled back into XML.
func (s Error) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	_, err := s.WriteXML(e)
	if err != nil {
		return err
	}
	return e.Flush()
}

// WriteXML satisfies the xmlstream.WriterTo interface.
// It is like MarshalXML except it writes tokens to w.
func (s Error) WriteXML(w xmlstream.TokenWriter) (int, error) {
	return xmlstream.Copy(w, s.TokenReader())
}

// TokenReader returns a new xml.TokenReader that returns an encoding of the
// error.
func (s Error) TokenReader() xml.TokenReader {
	inner := []xml.TokenReader{
		xmlstream.Wrap(nil, xml.StartElement{Name: xml.Name{Local: s.Err, Space: ErrorNS}}),
	}
	if s.Text != "" {
		inner = append(inner, xmlstream.Wrap(
			xmlstream.Token(xml.CharData(s.Text)),
			xml.StartElement{Name: xml.Name{Local: "text", Space: ErrorNS}},
		))
	}
	return xmlstream.Wrap(
		xmlstream.MultiReader(inner...),
		xml.StartElement{
			Name: xml.Name{Local: "error", Space: NS},
		},
	)
}
