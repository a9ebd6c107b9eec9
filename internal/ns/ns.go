// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package ns provides namespace constants that are used by the framing
// packages.
package ns // import "mellium.im/xmppframe/internal/ns"

// Content namespaces.
// A stanza in one of these namespaces is understood from the context of the
// stream it arrived on.
const (
	Client            = "jabber:client"
	Server            = "jabber:server"
	Component         = "jabber:component:accept"
	ConnectionManager = "jabber:connectionmanager"
	HTTPBind          = "http://jabber.org/protocol/httpbind"
)

// List of other commonly used namespaces.
const (
	Dialback = "jabber:server:dialback"
	Framing  = "urn:ietf:params:xml:ns:xmpp-framing"
	StartTLS = "urn:ietf:params:xml:ns:xmpp-tls"
	Stream   = "http://etherx.jabber.org/streams"
	Streams  = "urn:ietf:params:xml:ns:xmpp-streams"
	XML      = "http://www.w3.org/XML/1998/namespace"
	XMLNS    = "http://www.w3.org/2000/xmlns/"
)
