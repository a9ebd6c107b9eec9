// Copyright 2022 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

//go:generate go run -tags=tools golang.org/x/tools/cmd/stringer -type=Kind

// Package xmppframe turns the bytes read from an XMPP connection into
// normalized top-level elements.
//
// Bytes are read off the connection in whatever chunks the network delivers
// them.
// A Pipeline decodes them as UTF-8, finds the boundaries of complete top-level
// elements without building a tree of the whole stream, and parses each
// completed element with the namespace of the stream stripped from it.
// Elements are delivered to a Handler in the order they arrived:
//
//	p := xmppframe.New(conn, xmppframe.HandlerFunc(func(el *element.Element) error {
//		log.Printf("got %s", el.QualifiedName())
//		return nil
//	}), xmppframe.Server)
//	err := p.Serve(ctx)
//
// Bytes may also be pushed into a pipeline with Feed or OnBytesAvailable if the
// connection is read elsewhere.
//
// # Transport upgrades
//
// Security layers and compression change the bytes on the wire but not the
// stream being framed.
// Upgrade installs a new transform, such as TLS or zlib, beneath the pipeline
// without discarding anything that has already been read.
// StartTLS and Compress also mark the stream as requiring a restart so that
// the next element must be a new stream header.
// ResetStream is a separate operation that discards all partially read input.
//
// # Errors
//
// Every error is fatal to the connection.
// Errors that originate in the input are of type *Error and have a Kind of
// MalformedInput or FramingError; Condition maps any error to the stream error
// that should be sent to the peer before the connection is closed.
package xmppframe // import "mellium.im/xmppframe"
