// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xmppframe

import (
	"errors"

	"mellium.im/xmppframe/element"
	"mellium.im/xmppframe/internal/decl"
	"mellium.im/xmppframe/scan"
	"mellium.im/xmppframe/stream"
	"mellium.im/xmppframe/utf8dec"
)

// Errors returned by the pipeline.
var (
	ErrClosed          = errors.New("xmppframe: pipeline is closed")
	ErrRestartRequired = errors.New("xmppframe: expected a new stream header")
	ErrUpgraded        = errors.New("xmppframe: transform already installed")
	ErrInputClosed     = errors.New("xmppframe: input after the end of the stream")

	errNotConn = errors.New("xmppframe: TLS requires a net.Conn")
)

// Kind is the kind of an Error.
type Kind int

// A list of error kinds.
const (
	// MalformedInput is the kind of errors caused by bytes that are not, and
	// can never become, valid UTF-8.
	MalformedInput Kind = iota

	// FramingError is the kind of errors found while finding the boundaries of
	// elements or parsing them, including invalid stream headers.
	FramingError
)

// Error is an error in the input of a pipeline.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return "xmppframe: " + e.Kind.String() + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Condition returns the stream error that should be sent to the peer when err
// ends a stream.
func Condition(err error) stream.Error {
	var se stream.Error
	var e *Error
	switch {
	case err == nil:
		return stream.UndefinedCondition
	case errors.As(err, &se):
		return se
	case errors.Is(err, utf8dec.ErrMalformed):
		return stream.NotWellFormed
	case errors.Is(err, scan.ErrTooLarge):
		return stream.PolicyViolation
	case errors.Is(err, scan.ErrRestricted), errors.Is(err, element.ErrRestricted):
		return stream.RestrictedXML
	case errors.Is(err, element.ErrUnboundPrefix):
		return stream.BadNamespacePrefix
	case errors.Is(err, decl.ErrEncoding):
		return stream.UnsupportedEncoding
	case errors.Is(err, decl.ErrVersion), errors.Is(err, decl.ErrMalformed):
		return stream.BadFormat
	case errors.Is(err, ErrRestartRequired):
		return stream.PolicyViolation
	case errors.As(err, &e):
		return stream.NotWellFormed
	}
	return stream.UndefinedCondition
}

func inputError(err error) error {
	if errors.Is(err, utf8dec.ErrMalformed) {
		return &Error{Kind: MalformedInput, Err: err}
	}
	return &Error{Kind: FramingError, Err: err}
}
