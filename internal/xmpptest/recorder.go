// Copyright 2017 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package xmpptest provides utilities for testing stream framing.
package xmpptest // import "mellium.im/xmppframe/internal/xmpptest"

import (
	"sync"

	"mellium.im/xmppframe/element"
)

// Recorder is a handler that keeps every element it is given.
// It is safe for concurrent use.
type Recorder struct {
	mu  sync.Mutex
	els []*element.Element

	// Err, if set, is returned from every call to HandleElement after the
	// element has been recorded.
	Err error

	// C, if not nil, receives every element after it is recorded.
	C chan *element.Element
}

// HandleElement records el.
func (r *Recorder) HandleElement(el *element.Element) error {
	r.mu.Lock()
	r.els = append(r.els, el)
	r.mu.Unlock()
	if r.C != nil {
		r.C <- el
	}
	return r.Err
}

// Elements returns the recorded elements.
func (r *Recorder) Elements() []*element.Element {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*element.Element(nil), r.els...)
}

// Names returns the qualified name of each recorded element.
func (r *Recorder) Names() []string {
	els := r.Elements()
	names := make([]string, 0, len(els))
	for _, el := range els {
		names = append(names, el.QualifiedName())
	}
	return names
}

// Strings returns the serialized form of each recorded element.
func (r *Recorder) Strings() []string {
	els := r.Elements()
	out := make([]string, 0, len(els))
	for _, el := range els {
		out = append(out, el.String())
	}
	return out
}
