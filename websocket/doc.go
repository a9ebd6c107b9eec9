// Copyright 2020 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package websocket frames XMPP streams carried over WebSocket connections
// using the subprotocol defined in RFC 7395.
//
// Each WebSocket message carries one or more complete top-level elements and
// the stream is opened and closed with <open/> and <close/> elements in the
// framing namespace instead of a stream:stream element.
// The framing pipeline is indifferent to message boundaries so elements that
// are split across messages by a misbehaving peer are still reassembled.
package websocket // import "mellium.im/xmppframe/websocket"

import (
	"mellium.im/xmppframe/internal/ns"
)

// Various constants used by this package, provided as a convenience.
const (
	// NS is the XML namespace used by the XMPP subprotocol framing.
	NS = ns.Framing

	// WSProtocol is the protocol string used during the WebSocket handshake.
	WSProtocol = "xmpp"
)
