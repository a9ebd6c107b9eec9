// Copyright 2022 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package element parses framed units into namespace-normalized element trees.
//
// Stanzas are sent in one of a few content namespaces (jabber:client,
// jabber:server, etc.) that are implied by the stream they arrive on.
// The Normalizer removes those namespaces from stanzas so that a stanza
// received on one kind of stream can be routed to another without being
// rewritten, while keeping any redeclaration that is needed for content that
// is embedded in a different namespace, such as a forwarded message.
package element // import "mellium.im/xmppframe/element"

import (
	"bytes"
	"encoding/xml"
	"strings"

	"mellium.im/xmlstream"

	"mellium.im/xmppframe/internal/ns"
)

// Namespace is a namespace declaration.
// The default namespace has an empty prefix.
type Namespace struct {
	Prefix string
	URI    string
}

// Attr is an attribute that is not a namespace declaration.
// Name.Space is the URI bound to Prefix, or empty for unprefixed attributes.
type Attr struct {
	Prefix string
	Name   xml.Name
	Value  string
}

// Node is an *Element or a CharData.
type Node interface {
	node()
}

// CharData is text content.
type CharData string

func (CharData) node() {}

// Element is a namespace-normalized element.
type Element struct {
	Prefix string

	// Name.Space is the namespace the element is in after normalization.
	// It is empty if the namespace was elided.
	Name xml.Name
	Attr []Attr

	// NS is the list of namespace declarations reproduced on the element in
	// the order they appeared.
	NS []Namespace

	// Elided is the list of namespace declarations that appeared on the element
	// but were removed by normalization.
	Elided []Namespace

	Child []Node
}

func (*Element) node() {}

// Attribute returns the value of the first unprefixed attribute with the
// given local name and reports whether it was found.
func (e *Element) Attribute(local string) (string, bool) {
	for _, a := range e.Attr {
		if a.Prefix == "" && a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// AttributeNS is like Attribute but matches the attribute namespace.
func (e *Element) AttributeNS(space, local string) (string, bool) {
	for _, a := range e.Attr {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// Lang returns the value of the xml:lang attribute.
func (e *Element) Lang() string {
	lang, _ := e.AttributeNS(ns.XML, "lang")
	return lang
}

// Text returns the concatenation of all character data that are direct
// children of e.
func (e *Element) Text() string {
	var b strings.Builder
	for _, c := range e.Child {
		if cd, ok := c.(CharData); ok {
			b.WriteString(string(cd))
		}
	}
	return b.String()
}

// FirstChild returns the first child element with the given local name.
// If space is not empty the namespace must also match.
func (e *Element) FirstChild(space, local string) *Element {
	for _, c := range e.Child {
		el, ok := c.(*Element)
		if !ok {
			continue
		}
		if el.Name.Local == local && (space == "" || el.Name.Space == space) {
			return el
		}
	}
	return nil
}

// Children returns the child elements of e.
func (e *Element) Children() []*Element {
	var els []*Element
	for _, c := range e.Child {
		if el, ok := c.(*Element); ok {
			els = append(els, el)
		}
	}
	return els
}

// Namespaces returns the prefixed namespace declarations reproduced on e.
func (e *Element) Namespaces() []Namespace {
	var out []Namespace
	for _, n := range e.NS {
		if n.Prefix != "" {
			out = append(out, n)
		}
	}
	return out
}

// QualifiedName returns the prefixed name of the element as it appeared in
// the input.
func (e *Element) QualifiedName() string {
	if e.Prefix == "" {
		return e.Name.Local
	}
	return e.Prefix + ":" + e.Name.Local
}

// TokenReader returns a stream of tokens that encodes e.
// Namespace declarations are written where the normalized tree needs them:
// the declarations in NS, and any binding required by the element or
// attribute names that is not already in scope.
// No declaration is written for names in the xml namespace.
//
// Start and end element names are qualified names in Name.Local with an empty
// Name.Space so that they can be encoded by an xml.Encoder without it adding
// declarations of its own.
func (e *Element) TokenReader() xml.TokenReader {
	return e.tokenReader(nil)
}

// WriteXML implements xmlstream.WriterTo.
func (e *Element) WriteXML(w xmlstream.TokenWriter) (int, error) {
	return xmlstream.Copy(w, e.TokenReader())
}

// String returns the serialized form of e.
func (e *Element) String() string {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	if _, err := e.WriteXML(enc); err != nil {
		return ""
	}
	if err := enc.Flush(); err != nil {
		return ""
	}
	return buf.String()
}

func (e *Element) tokenReader(scope []Namespace) xml.TokenReader {
	scope = scope[:len(scope):len(scope)]
	start := xml.StartElement{Name: xml.Name{Local: e.QualifiedName()}}

	declare := func(prefix, uri string) {
		scope = append(scope, Namespace{Prefix: prefix, URI: uri})
		local := "xmlns"
		if prefix != "" {
			local += ":" + prefix
		}
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: local}, Value: uri})
	}
	for _, n := range e.NS {
		declare(n.Prefix, n.URI)
	}
	if uri, _ := lookup(scope, e.Prefix); uri != e.Name.Space {
		declare(e.Prefix, e.Name.Space)
	}
	for _, a := range e.Attr {
		if a.Prefix == "" {
			continue
		}
		if uri, _ := lookup(scope, a.Prefix); uri != a.Name.Space {
			declare(a.Prefix, a.Name.Space)
		}
	}
	for _, a := range e.Attr {
		local := a.Name.Local
		if a.Prefix != "" {
			local = a.Prefix + ":" + local
		}
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: local}, Value: a.Value})
	}

	var inner []xml.TokenReader
	for _, c := range e.Child {
		switch c := c.(type) {
		case CharData:
			inner = append(inner, xmlstream.Token(xml.CharData(c)))
		case *Element:
			inner = append(inner, c.tokenReader(scope))
		}
	}
	return xmlstream.Wrap(xmlstream.MultiReader(inner...), start)
}

// lookup finds the innermost binding of prefix in scope.
func lookup(scope []Namespace, prefix string) (string, bool) {
	for i := len(scope) - 1; i >= 0; i-- {
		if scope[i].Prefix == prefix {
			return scope[i].URI, true
		}
	}
	if prefix == "xml" {
		return ns.XML, true
	}
	return "", false
}
