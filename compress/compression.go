// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package compress implements the transport side of XEP-0138: Stream
// Compression and XEP-0229: Stream Compression with LZW.
//
// A Method's Wrapper is installed as a transform on a connection once the
// <compressed/> acknowledgement has been written.
//
// Be advised: stream compression has many of the same security considerations
// as TLS compression (see RFC3749 §6) and may be difficult to implement safely
// without special expertise.
package compress // import "mellium.im/xmppframe/compress"

import (
	"encoding/xml"
	"errors"
	"strings"

	"mellium.im/legacy/compress"
	"mellium.im/xmlstream"

	"mellium.im/xmppframe/element"
)

// Namespaces used by stream compression.
const (
	NSFeatures = compress.NSFeatures
	NSProtocol = compress.NSProtocol
)

// Errors returned when reading a compression request.
var (
	ErrNotRequest        = errors.New("compress: element is not a compression request")
	ErrUnsupportedMethod = errors.New("compress: unsupported method")
)

var (
	// LZW implements stream compression using the Lempel-Ziv-Welch (DCLZ)
	// compressed data format.
	LZW Method = compress.LZW

	// Zlib implements stream compression using the zlib format.
	// It is always supported.
	Zlib Method = zlibMethod
)

// Method is a stream compression method.
// Custom methods may be defined, but generally speaking the only supported
// methods will be those with names defined in the "Stream Compression Methods
// Registry" maintained by the XSF Editor:
// https://xmpp.org/registrar/compress.html
type Method = compress.Method

// Lookup returns the method with the given name from methods.
// Zlib is always found even if it is not in methods.
func Lookup(name string, methods ...Method) (Method, bool) {
	if name == Zlib.Name {
		return Zlib, true
	}
	for _, m := range methods {
		if m.Name == name {
			return m, true
		}
	}
	return Method{}, false
}

// Request reads a <compress/> element and returns the requested method from
// methods (see Lookup).
func Request(el *element.Element, methods ...Method) (Method, error) {
	if el.Name.Local != "compress" || el.Name.Space != NSProtocol && el.Name.Space != "" {
		return Method{}, ErrNotRequest
	}
	child := el.FirstChild("", "method")
	if child == nil {
		return Method{}, ErrNotRequest
	}
	m, ok := Lookup(strings.TrimSpace(child.Text()), methods...)
	if !ok {
		return Method{}, ErrUnsupportedMethod
	}
	return m, nil
}

// Compressed returns the acknowledgement that is sent before compression
// starts.
func Compressed() xml.TokenReader {
	return xmlstream.Wrap(nil, xml.StartElement{Name: xml.Name{Space: NSProtocol, Local: "compressed"}})
}

// Failure returns a compression failure with the given condition, for example
// "unsupported-method" or "setup-failed".
func Failure(condition string) xml.TokenReader {
	return xmlstream.Wrap(
		xmlstream.Wrap(nil, xml.StartElement{Name: xml.Name{Local: condition}}),
		xml.StartElement{Name: xml.Name{Space: NSProtocol, Local: "failure"}},
	)
}
