// Copyright 2020 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package stream

import (
	"encoding/xml"
	"errors"
	"net"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/text/language"

	"mellium.im/xmppframe/element"
	"mellium.im/xmppframe/internal/ns"
)

var (
	errEmptyDomain = errors.New("stream: empty domainpart")
	errBadIP       = errors.New("stream: invalid IP literal")
)

// Info contains metadata extracted from a stream header.
type Info struct {
	Prefix  string
	Name    xml.Name
	XMLNS   string
	To      string
	From    string
	ID      string
	Version Version
	Lang    language.Tag

	// NS is the list of namespaces declared on the header, including those
	// that were elided from the normalized header.
	// They are in scope for every element sent on the stream.
	NS []element.Namespace

	// WebSocket is true if the header was an RFC 7395 <open/> element.
	WebSocket bool
}

// IsHeader reports whether el is a stream header: either a stream element in
// the stream namespace or an RFC 7395 <open/> element.
func IsHeader(el *element.Element) bool {
	return el.Name.Local == "stream" && el.Prefix != "" ||
		el.Name.Local == "open" && el.Name.Space == ns.Framing
}

// IsClose reports whether el is an RFC 7395 <close/> element.
func IsClose(el *element.Element) bool {
	return el.Name.Local == "close" && el.Name.Space == ns.Framing
}

// FromElement sets the data in Info from a normalized stream header and
// validates it.
// The content namespace declared by a stream element must be one of content;
// if content is empty jabber:client and jabber:server are allowed.
// This only returns stream errors.
func (i *Info) FromElement(el *element.Element, content ...string) error {
	*i = Info{Prefix: el.Prefix, Name: el.Name, Version: EmptyVersion}
	i.WebSocket = el.Name.Local == "open"

	switch {
	case i.WebSocket && el.Name.Space != ns.Framing:
		return InvalidNamespace
	case !i.WebSocket && el.Name.Local != "stream":
		return BadFormat
	case !i.WebSocket && el.Name.Space != NS:
		return InvalidNamespace
	}

	decls := append(append([]element.Namespace(nil), el.Elided...), el.NS...)
	for _, n := range decls {
		if n.Prefix != "" || i.WebSocket {
			continue
		}
		if !allowed(n.URI, content) {
			return InvalidNamespace
		}
		i.XMLNS = n.URI
	}
	if i.WebSocket {
		// RFC 7395 streams are always in the client namespace and each element
		// carries its own declaration.
		i.XMLNS = ns.Client
	} else {
		i.NS = decls
	}

	for _, attr := range el.Attr {
		switch {
		case attr.Prefix == "xml" && attr.Name.Local == "lang":
			tag, err := language.Parse(attr.Value)
			if err != nil {
				return BadFormat
			}
			i.Lang = tag
		case attr.Prefix != "":
		case attr.Name.Local == "to":
			if err := checkAddress(attr.Value); err != nil {
				return ImproperAddressing
			}
			i.To = attr.Value
		case attr.Name.Local == "from":
			if err := checkAddress(attr.Value); err != nil {
				return ImproperAddressing
			}
			i.From = attr.Value
		case attr.Name.Local == "id":
			i.ID = attr.Value
		case attr.Name.Local == "version":
			if err := (&i.Version).UnmarshalXMLAttr(xml.Attr{Name: attr.Name, Value: attr.Value}); err != nil {
				return BadFormat
			}
		}
	}
	if DefaultVersion.Major < i.Version.Major {
		return UnsupportedVersion
	}
	return nil
}

func allowed(uri string, content []string) bool {
	if len(content) == 0 {
		return uri == ns.Client || uri == ns.Server
	}
	for _, c := range content {
		if c == uri {
			return true
		}
	}
	return false
}

// checkAddress validates the domainpart of an address.
// Addresses in the header may be full JIDs, so any localpart and resourcepart
// are ignored.
func checkAddress(addr string) error {
	domain := addr
	if i := strings.IndexByte(domain, '/'); i != -1 {
		domain = domain[:i]
	}
	if i := strings.LastIndexByte(domain, '@'); i != -1 {
		domain = domain[i+1:]
	}
	if domain == "" {
		return errEmptyDomain
	}
	if strings.HasPrefix(domain, "[") && strings.HasSuffix(domain, "]") {
		if net.ParseIP(domain[1:len(domain)-1]) == nil {
			return errBadIP
		}
		return nil
	}
	_, err := idna.Lookup.ToASCII(strings.TrimSuffix(domain, "."))
	return err
}
