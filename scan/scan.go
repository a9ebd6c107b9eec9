// Copyright 2022 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package scan finds the boundaries of top-level elements in an XML stream.
//
// The Scanner does not build a tree or resolve namespaces.
// It tracks just enough of the XML grammar (tags, quoted attribute values,
// comments, CDATA sections and processing instructions) to know the element
// nesting depth, and hands back the raw text of each top-level construct once
// it is complete.
// This lets the stream be framed incrementally, one chunk of text at a time,
// without parsing an unbounded document.
//
// The scanner works on decoded text.
// Every byte that is significant to the grammar is ASCII, and in UTF-8 no byte
// of a multi-byte sequence is ever ASCII, so non-ASCII characters pass through
// untouched.
package scan // import "mellium.im/xmppframe/scan"

//go:generate go run -tags=tools golang.org/x/tools/cmd/stringer -type=Kind -linecomment

import (
	"errors"
	"strconv"
)

// DefaultMaxSize is the maximum size of a unit used by New when no MaxSize
// option is given.
const DefaultMaxSize = 1 << 20

// Errors returned by the scanner.
// Each of them is wrapped in a SyntaxError.
var (
	ErrUnderflow  = errors.New("scan: end tag without matching start tag")
	ErrUnexpected = errors.New("scan: unexpected character")
	ErrRestricted = errors.New("scan: restricted XML construct")
	ErrTooLarge   = errors.New("scan: unit exceeds maximum size")
)

// SyntaxError is returned when the stream can no longer be framed.
type SyntaxError struct {
	// Offset is the number of bytes of text fed to the scanner before the byte
	// that caused the error.
	Offset int64
	Err    error
}

func (e *SyntaxError) Error() string {
	return e.Err.Error() + " at offset " + strconv.FormatInt(e.Offset, 10)
}

// Unwrap returns the underlying sentinel error.
func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// Kind is the kind of a Unit.
type Kind uint8

// A list of unit kinds.
const (
	// Element is a complete top-level element.
	Element Kind = iota // element

	// StreamOpen is the start tag of a stream, which is not closed until the
	// stream ends.
	StreamOpen // stream-open

	// StreamClose is the end tag of a stream.
	StreamClose // stream-close

	// ProcInst is a top-level processing instruction such as the XML
	// declaration.
	ProcInst // procinst
)

// Unit is the text of one complete top-level construct exactly as it appeared
// in the stream.
type Unit struct {
	Kind Kind

	// Name is the qualified name of the top-level tag, or the target of a
	// processing instruction.
	Name string

	Raw string
}

type state uint8

const (
	stText state = iota
	stOpen
	stStartName
	stInTag
	stAttrValue
	stSelfClose
	stEndName
	stEndTail
	stBang
	stLit
	stComment
	stCDATA
	stPI
)

// Option configures a Scanner.
type Option func(*Scanner)

// MaxSize limits the size in bytes of a single unit.
// A value of zero or less disables the limit.
func MaxSize(n int) Option {
	return func(s *Scanner) {
		s.maxSize = n
	}
}

// Scanner splits text into units.
// The zero value is ready to use and has no size limit.
// A Scanner is not safe for concurrent use.
type Scanner struct {
	maxSize int

	st     state
	next   state
	depth  int
	quote  byte
	tail   int
	lit    string
	target bool
	root   string
	name   []byte
	buf    []byte
	out    []Unit

	off       int64
	err       error
	keepalive bool
}

// New returns a Scanner configured by opts.
func New(opts ...Option) *Scanner {
	s := &Scanner{maxSize: DefaultMaxSize}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Feed scans text and returns every unit completed by it, in order.
//
// Text that does not complete a unit is kept until a later call.
// If the text cannot be framed an error wrapped in a *SyntaxError is returned
// along with any units that were completed before the error.
// Errors are sticky: every later call returns the same error until Reset is
// called.
func (s *Scanner) Feed(text string) ([]Unit, error) {
	if s.err != nil {
		return nil, s.err
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		s.off++

		if s.st == stText && s.depth == 0 {
			switch {
			case c == '<':
				s.buf = append(s.buf[:0], c)
				s.st = stOpen
			case isSpace(c):
				s.keepalive = true
			default:
				return s.flush(s.fail(ErrUnexpected))
			}
			continue
		}

		s.buf = append(s.buf, c)
		if s.maxSize > 0 && len(s.buf) > s.maxSize {
			return s.flush(s.fail(ErrTooLarge))
		}
		if err := s.step(c); err != nil {
			return s.flush(err)
		}
	}
	return s.flush(nil)
}

func (s *Scanner) step(c byte) error {
	switch s.st {
	case stText:
		if c == '<' {
			s.st = stOpen
		}
	case stOpen:
		switch {
		case c == '/':
			s.name = s.name[:0]
			s.st = stEndName
		case c == '!':
			s.st = stBang
		case c == '?':
			s.name = s.name[:0]
			s.tail = 0
			s.target = true
			s.st = stPI
		case isNameStart(c):
			s.name = append(s.name[:0], c)
			s.st = stStartName
		default:
			return s.fail(ErrUnexpected)
		}
	case stStartName:
		switch {
		case isSpace(c):
			s.st = stInTag
		case c == '>':
			s.startTag()
		case c == '/':
			s.st = stSelfClose
		case c == '<' || c == '"' || c == '\'' || c == '=':
			return s.fail(ErrUnexpected)
		default:
			s.name = append(s.name, c)
		}
	case stInTag:
		switch c {
		case '"', '\'':
			s.quote = c
			s.st = stAttrValue
		case '/':
			s.st = stSelfClose
		case '>':
			s.startTag()
		case '<':
			return s.fail(ErrUnexpected)
		}
	case stAttrValue:
		if c == s.quote {
			s.st = stInTag
		}
	case stSelfClose:
		if c != '>' {
			return s.fail(ErrUnexpected)
		}
		s.selfClose()
	case stEndName:
		switch {
		case isSpace(c) && len(s.name) > 0:
			s.st = stEndTail
		case c == '>' && len(s.name) > 0:
			return s.endTag()
		case isSpace(c) || c == '>' || c == '<' || c == '/':
			return s.fail(ErrUnexpected)
		default:
			s.name = append(s.name, c)
		}
	case stEndTail:
		switch {
		case c == '>':
			return s.endTag()
		case !isSpace(c):
			return s.fail(ErrUnexpected)
		}
	case stBang:
		switch c {
		case '-':
			s.lit, s.next = "-", stComment
		case '[':
			if s.depth == 0 {
				// Character data is not allowed outside of a stanza.
				return s.fail(ErrUnexpected)
			}
			s.lit, s.next = "CDATA[", stCDATA
		default:
			return s.fail(ErrRestricted)
		}
		s.st = stLit
	case stLit:
		if c != s.lit[0] {
			return s.fail(ErrUnexpected)
		}
		s.lit = s.lit[1:]
		if s.lit == "" {
			s.tail = 0
			s.st = s.next
		}
	case stComment:
		switch {
		case c == '-':
			s.tail++
		case c == '>' && s.tail >= 2:
			s.endOpaque()
		default:
			s.tail = 0
		}
	case stCDATA:
		switch {
		case c == ']':
			s.tail++
		case c == '>' && s.tail >= 2:
			s.endOpaque()
		default:
			s.tail = 0
		}
	case stPI:
		if c == '>' && s.tail == 1 {
			s.endPI()
			break
		}
		s.tail = 0
		if c == '?' {
			s.tail = 1
		}
		if s.target {
			if isSpace(c) || c == '?' {
				s.target = false
			} else {
				s.name = append(s.name, c)
			}
		}
	}
	return nil
}

func (s *Scanner) startTag() {
	if s.depth == 0 {
		if isStreamName(s.name) {
			s.emit(StreamOpen, string(s.name))
			return
		}
		s.root = string(s.name)
	}
	s.depth++
	s.st = stText
}

func (s *Scanner) selfClose() {
	if s.depth == 0 {
		s.emit(Element, string(s.name))
		return
	}
	s.st = stText
}

func (s *Scanner) endTag() error {
	if s.depth == 0 {
		if isStreamName(s.name) {
			s.emit(StreamClose, string(s.name))
			return nil
		}
		return s.fail(ErrUnderflow)
	}
	s.depth--
	if s.depth == 0 {
		s.emit(Element, s.root)
		return nil
	}
	s.st = stText
	return nil
}

func (s *Scanner) endOpaque() {
	s.st = stText
	if s.depth == 0 {
		// Comments between stanzas are dropped.
		s.buf = s.buf[:0]
	}
}

func (s *Scanner) endPI() {
	if s.depth == 0 {
		s.emit(ProcInst, string(s.name))
		return
	}
	s.st = stText
}

func (s *Scanner) emit(k Kind, name string) {
	s.out = append(s.out, Unit{Kind: k, Name: name, Raw: string(s.buf)})
	s.buf = s.buf[:0]
	s.root = ""
	s.st = stText
}

func (s *Scanner) flush(err error) ([]Unit, error) {
	units := s.out
	s.out = nil
	return units, err
}

func (s *Scanner) fail(err error) error {
	s.err = &SyntaxError{Offset: s.off - 1, Err: err}
	return s.err
}

// Depth returns the current element nesting depth.
// The stream element itself is not counted.
func (s *Scanner) Depth() int {
	return s.depth
}

// Buffered returns the number of bytes of an incomplete unit held by the
// scanner.
func (s *Scanner) Buffered() int {
	return len(s.buf)
}

// Keepalive reports whether whitespace has been received between units since
// the last call to Keepalive.
func (s *Scanner) Keepalive() bool {
	k := s.keepalive
	s.keepalive = false
	return k
}

// Reset discards all buffered text and state, including any sticky error.
// The size limit is kept.
func (s *Scanner) Reset() {
	*s = Scanner{
		maxSize: s.maxSize,
		name:    s.name[:0],
		buf:     s.buf[:0],
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isNameStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' || c == ':' || c >= 0x80
}

// isStreamName reports whether name is a prefixed name with the local part
// "stream".
func isStreamName(name []byte) bool {
	const local = ":stream"
	n := len(name) - len(local)
	return n > 0 && string(name[n:]) == local
}
