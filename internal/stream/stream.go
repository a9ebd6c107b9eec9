// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package stream writes stream headers and trailers.
package stream // import "mellium.im/xmppframe/internal/stream"

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"

	"golang.org/x/text/language"

	"mellium.im/xmppframe/internal/decl"
	"mellium.im/xmppframe/internal/ns"
	"mellium.im/xmppframe/stream"
)

// Send sends a new XML header followed by a stream start element on the given
// io.Writer.
// If info.WebSocket is set an RFC 7395 <open/> element is sent instead and
// there is no XML header.
//
// We don't use an xml.Encoder both because Go's standard library xml package
// really doesn't like the namespaced stream:stream attribute and because we can
// guarantee well-formedness of the XML with a print in this case and printing
// is much faster than encoding.
func Send(w io.Writer, info stream.Info) error {
	b := bufio.NewWriter(w)

	var err error
	if info.WebSocket {
		_, err = fmt.Fprintf(b, `<open xmlns='%s'`, ns.Framing)
	} else {
		_, err = b.WriteString(decl.XMLHeader + `<stream:stream`)
	}
	if err != nil {
		return err
	}

	for _, attr := range [...]struct{ name, value string }{
		{"id", info.ID},
		{"to", info.To},
		{"from", info.From},
		{"version", versionString(info.Version)},
		{"xml:lang", langString(info)},
	} {
		if attr.value == "" {
			continue
		}
		if _, err = fmt.Fprintf(b, ` %s='`, attr.name); err != nil {
			return err
		}
		if err = xml.EscapeText(b, []byte(attr.value)); err != nil {
			return err
		}
		if err = b.WriteByte('\''); err != nil {
			return err
		}
	}

	if info.WebSocket {
		_, err = b.WriteString(`/>`)
	} else {
		xmlns := info.XMLNS
		if xmlns == "" {
			xmlns = ns.Client
		}
		_, err = fmt.Fprintf(b, ` xmlns='%s' xmlns:stream='%s'>`, xmlns, stream.NS)
	}
	if err != nil {
		return err
	}
	return b.Flush()
}

// Close writes the end of a stream that was started with Send.
func Close(w io.Writer, websocket bool) error {
	var err error
	if websocket {
		_, err = fmt.Fprintf(w, `<close xmlns='%s'/>`, ns.Framing)
	} else {
		_, err = io.WriteString(w, `</stream:stream>`)
	}
	return err
}

func langString(info stream.Info) string {
	if info.Lang == language.Und {
		return ""
	}
	return info.Lang.String()
}

// versionString returns the version attribute to send.
// The zero version is sent as the default version and the version implied by
// a missing attribute is not sent at all.
func versionString(v stream.Version) string {
	switch v {
	case stream.Version{}:
		return stream.DefaultVersion.String()
	case stream.EmptyVersion:
		return ""
	}
	return v.String()
}
