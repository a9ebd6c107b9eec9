// Copyright 2022 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package element

import (
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"

	"mellium.im/xmppframe/internal/decl"
	"mellium.im/xmppframe/internal/ns"
	"mellium.im/xmppframe/scan"
)

// Errors returned by Normalize.
// Each of them is wrapped in a SyntaxError.
var (
	ErrNotWellFormed = errors.New("element: unit is not well formed")
	ErrUnboundPrefix = errors.New("element: unbound namespace prefix")
	ErrRestricted    = errors.New("element: restricted XML construct")
	ErrNoElement     = errors.New("element: unit contains no element")
)

// SyntaxError is returned when a unit cannot be normalized.
type SyntaxError struct {
	// Offset is the byte offset in the unit at which the error was found.
	Offset int64
	Err    error
	Msg    string
}

func (e *SyntaxError) Error() string {
	s := e.Err.Error()
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s + " at offset " + strconv.FormatInt(e.Offset, 10)
}

// Unwrap returns the underlying sentinel error.
func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// Normalizer parses units and elides namespaces from them.
//
// A default namespace declaration on the outermost element whose URI is in
// Content is not reproduced, and the element is placed in no namespace.
// The same happens for a descendant that is in a Content namespace by way of
// its default namespace, so long as every ancestor up to the nearest one whose
// namespace was already elided is in that same namespace.
// This keeps redeclarations that are needed by content embedded in another
// namespace, such as a message wrapped in a forwarding envelope.
//
// A prefixed namespace declaration on the outermost element whose URI is in
// Prefixed is not reproduced.
// Prefixed redeclarations on descendants are always kept.
//
// A nil set elides nothing.
type Normalizer struct {
	Content  *IgnoreSet
	Prefixed *IgnoreSet
}

type frame struct {
	el    *Element
	qname string

	// scope is the length of the input namespace stack before the element's
	// declarations were pushed.
	scope int
}

type normalizer struct {
	content  map[string]struct{}
	prefixed map[string]struct{}
	d        *xml.Decoder
	header   bool

	// ns is the stack of namespace bindings in the input.
	ns    []Namespace
	stack []frame
	root  *Element
}

type rawReader struct {
	d *xml.Decoder
}

func (r rawReader) Token() (xml.Token, error) {
	return r.d.RawToken()
}

// Normalize parses the unit and returns its normalized element.
//
// The namespace bindings in scope are in effect for the unit as if they had
// been declared on an enclosing element; they are normally the declarations
// made by the stream header.
// A StreamOpen unit is parsed as a start tag with no children.
// Comments and processing instructions inside the unit are dropped.
func (n *Normalizer) Normalize(u scan.Unit, scope []Namespace) (*Element, error) {
	if u.Kind == scan.ProcInst || u.Kind == scan.StreamClose {
		return nil, &SyntaxError{Err: ErrNoElement, Msg: u.Kind.String()}
	}

	d := xml.NewDecoder(strings.NewReader(u.Raw))
	d.Strict = true
	p := &normalizer{
		content:  n.Content.snapshot(),
		prefixed: n.Prefixed.snapshot(),
		d:        d,
		header:   u.Kind == scan.StreamOpen,
		ns:       append([]Namespace(nil), scope...),
	}

	r := decl.Skip(rawReader{d: d})
	for {
		tok, err := r.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, p.fail(ErrNotWellFormed, err.Error())
		}
		if err = p.token(tok); err != nil {
			return nil, err
		}
	}

	switch {
	case p.root == nil:
		return nil, p.fail(ErrNoElement, "")
	case u.Kind == scan.StreamOpen && len(p.stack) != 1:
		return nil, p.fail(ErrNotWellFormed, "stream header is not a lone start tag")
	case u.Kind != scan.StreamOpen && len(p.stack) != 0:
		return nil, p.fail(ErrNotWellFormed, "unexpected EOF")
	}
	return p.root, nil
}

func (p *normalizer) fail(err error, msg string) error {
	return &SyntaxError{Offset: p.d.InputOffset(), Err: err, Msg: msg}
}

func (p *normalizer) token(tok xml.Token) error {
	if p.header && p.root != nil {
		return p.fail(ErrNotWellFormed, "stream header is not a lone start tag")
	}
	switch t := tok.(type) {
	case xml.StartElement:
		if p.root != nil && len(p.stack) == 0 {
			return p.fail(ErrNotWellFormed, "more than one root element")
		}
		return p.start(t)
	case xml.EndElement:
		if len(p.stack) == 0 {
			return p.fail(ErrNotWellFormed, "unexpected end element")
		}
		top := p.stack[len(p.stack)-1]
		if qname(t.Name) != top.qname {
			return p.fail(ErrNotWellFormed, "element <"+top.qname+"> closed by </"+qname(t.Name)+">")
		}
		p.stack = p.stack[:len(p.stack)-1]
		p.ns = p.ns[:top.scope]
	case xml.CharData:
		if len(p.stack) == 0 {
			if len(strings.TrimLeft(string(t), " \t\r\n")) > 0 {
				return p.fail(ErrNotWellFormed, "text outside of the root element")
			}
			return nil
		}
		el := p.stack[len(p.stack)-1].el
		if last := len(el.Child) - 1; last >= 0 {
			if cd, ok := el.Child[last].(CharData); ok {
				el.Child[last] = cd + CharData(t)
				return nil
			}
		}
		el.Child = append(el.Child, CharData(t))
	case xml.Directive:
		return p.fail(ErrRestricted, "directive")
	case xml.Comment, xml.ProcInst:
	}
	return nil
}

func (p *normalizer) start(t xml.StartElement) error {
	var parent *Element
	if len(p.stack) > 0 {
		parent = p.stack[len(p.stack)-1].el
	}
	if t.Name.Space == "xmlns" {
		return p.fail(ErrNotWellFormed, "element with the xmlns prefix")
	}

	f := frame{qname: qname(t.Name), scope: len(p.ns)}
	el := &Element{Prefix: t.Name.Space}
	var decls []Namespace
	seen := make(map[string]struct{}, len(t.Attr))
	for _, a := range t.Attr {
		q := qname(a.Name)
		if _, dup := seen[q]; dup {
			return p.fail(ErrNotWellFormed, "duplicate attribute "+q)
		}
		seen[q] = struct{}{}

		switch {
		case a.Name.Space == "" && a.Name.Local == "xmlns":
			decls = append(decls, Namespace{URI: a.Value})
		case a.Name.Space == "xmlns":
			if a.Value == "" || a.Name.Local == "xmlns" || a.Name.Local == "xml" && a.Value != ns.XML {
				return p.fail(ErrNotWellFormed, "invalid declaration of prefix "+a.Name.Local)
			}
			decls = append(decls, Namespace{Prefix: a.Name.Local, URI: a.Value})
		}
	}
	p.ns = append(p.ns, decls...)

	uri, ok := lookup(p.ns, el.Prefix)
	if !ok && el.Prefix != "" {
		return p.fail(ErrUnboundPrefix, el.Prefix)
	}
	el.Name = xml.Name{Space: uri, Local: t.Name.Local}

	drop := false
	if _, ignored := p.content[uri]; ignored && el.Prefix == "" {
		drop = true
		for i := len(p.stack) - 1; i >= 0; i-- {
			def := defaultNS(p.stack[:i+1])
			if def == "" {
				break
			}
			if def != uri {
				drop = false
				break
			}
		}
	}
	if drop {
		el.Name.Space = ""
	}

	for _, n := range decls {
		_, content := p.content[n.URI]
		_, prefixed := p.prefixed[n.URI]
		switch {
		case n.Prefix == "" && parent == nil && content,
			n.Prefix == "" && drop && n.URI == uri,
			n.Prefix != "" && parent == nil && prefixed:
			el.Elided = append(el.Elided, n)
		default:
			el.NS = append(el.NS, n)
		}
	}

	for _, a := range t.Attr {
		if a.Name.Space == "xmlns" || a.Name.Space == "" && a.Name.Local == "xmlns" {
			continue
		}
		attr := Attr{Prefix: a.Name.Space, Name: xml.Name{Local: a.Name.Local}, Value: a.Value}
		if attr.Prefix != "" {
			space, ok := lookup(p.ns, attr.Prefix)
			if !ok {
				return p.fail(ErrUnboundPrefix, attr.Prefix)
			}
			attr.Name.Space = space
		}
		el.Attr = append(el.Attr, attr)
	}

	if parent != nil {
		parent.Child = append(parent.Child, el)
	} else {
		p.root = el
	}
	f.el = el
	p.stack = append(p.stack, f)
	return nil
}

// defaultNS returns the default namespace of the last element in stack as it
// will appear in the normalized output.
func defaultNS(stack []frame) string {
	for i := len(stack) - 1; i >= 0; i-- {
		el := stack[i].el
		if el.Prefix == "" {
			return el.Name.Space
		}
		for j := len(el.NS) - 1; j >= 0; j-- {
			if el.NS[j].Prefix == "" {
				return el.NS[j].URI
			}
		}
	}
	return ""
}

func qname(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}
