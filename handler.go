// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xmppframe

import (
	"mellium.im/xmppframe/element"
)

// A Handler responds to the elements read from a stream.
// Stream headers are passed to the handler after they have been validated.
//
// Returning an error from HandleElement stops the pipeline and the error is
// returned from the call that was framing input.
type Handler interface {
	HandleElement(el *element.Element) error
}

// The HandlerFunc type is an adapter to allow the use of ordinary functions as
// handlers.
// If f is a function with the appropriate signature, HandlerFunc(f) is a
// Handler that calls f.
type HandlerFunc func(el *element.Element) error

// HandleElement calls f(el).
func (f HandlerFunc) HandleElement(el *element.Element) error {
	return f(el)
}

// A Deliverer accepts raw text that could not be written to the connection.
// It is normally used to store messages for later delivery when a connection
// fails.
type Deliverer interface {
	Deliver(text string) error
}

// The DelivererFunc type is an adapter to allow the use of ordinary functions
// as Deliverers.
type DelivererFunc func(text string) error

// Deliver calls f(text).
func (f DelivererFunc) Deliver(text string) error {
	return f(text)
}
