// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xmppframe

import (
	"io"
	"log"

	"mellium.im/xmppframe/internal/ns"
	"mellium.im/xmppframe/scan"
	"mellium.im/xmppframe/stream"
)

const defaultReadBufferSize = 4096

// Option's can be used to configure a pipeline.
type Option func(*options)
type options struct {
	log      *log.Logger
	accept   []string
	content  []string
	prefixed []string
	scan     []scan.Option
	readSize int
	sink     func(error)
	backup   Deliverer
	state    State
}

func getOpts(o ...Option) (res options) {
	res.content = []string{ns.Client, ns.Server, ns.Component, ns.ConnectionManager, ns.HTTPBind}
	res.prefixed = []string{stream.NS}
	for _, f := range o {
		f(&res)
	}

	// Log to /dev/null by default.
	if res.log == nil {
		res.log = log.New(io.Discard, "", log.LstdFlags)
	}
	if res.readSize <= 0 {
		res.readSize = defaultReadBufferSize
	}
	return
}

// Roles a pipeline can play.
// The role determines the content namespace that a stream header must declare.
// By default either jabber:client or jabber:server is accepted.
var (
	// Client accepts client-to-server streams.
	Client Option = role(ns.Client)

	// Server accepts server-to-server streams.
	Server Option = role(ns.Server)

	// Component accepts XEP-0114 component streams.
	Component Option = role(ns.Component)
)

func role(uri string) Option {
	return func(o *options) {
		o.accept = []string{uri}
	}
}

// The Logger option can be provided to have the pipeline log debug messages.
func Logger(logger *log.Logger) Option {
	return func(o *options) {
		o.log = logger
	}
}

// ContentNamespaces sets the namespaces that are stripped from the outermost
// element of each stanza.
// By default these are the client, server, component, connection manager and
// BOSH namespaces.
func ContentNamespaces(uri ...string) Option {
	return func(o *options) {
		o.content = uri
	}
}

// PrefixNamespaces sets the namespaces whose prefixed declarations are
// stripped from the outermost element of each stanza.
// By default this is the stream namespace.
func PrefixNamespaces(uri ...string) Option {
	return func(o *options) {
		o.prefixed = uri
	}
}

// MaxUnitSize limits the size in bytes of a single top-level element.
// Elements that grow larger are a FramingError.
// If n is zero or less there is no limit.
// By default the limit is scan.DefaultMaxSize.
func MaxUnitSize(n int) Option {
	return func(o *options) {
		o.scan = append(o.scan, scan.MaxSize(n))
	}
}

// ReadBufferSize sets the size of the buffer used by Serve.
func ReadBufferSize(n int) Option {
	return func(o *options) {
		o.readSize = n
	}
}

// ErrorSink is called with every error in the input that stops the pipeline.
// It is not called for errors returned by the handler.
func ErrorSink(f func(error)) Option {
	return func(o *options) {
		o.sink = f
	}
}

// Backup sets a Deliverer that is given any text that cannot be written to the
// connection.
func Backup(d Deliverer) Option {
	return func(o *options) {
		o.backup = d
	}
}

// InitialState sets state bits on a new pipeline, for example Secure for a
// connection that was secured before any XMPP was sent.
func InitialState(mask State) Option {
	return func(o *options) {
		o.state |= mask
	}
}
