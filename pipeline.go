// Copyright 2022 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xmppframe

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"mellium.im/xmlstream"

	"mellium.im/xmppframe/element"
	"mellium.im/xmppframe/framer"
	"mellium.im/xmppframe/internal/decl"
	intstream "mellium.im/xmppframe/internal/stream"
	"mellium.im/xmppframe/scan"
	"mellium.im/xmppframe/stream"
)

// State is a bitmask that represents the current state of a pipeline.
// For a description of each bit, see the various State typed constants.
type State uint8

const (
	// Secure indicates that the underlying connection has been secured.
	// For instance, after STARTTLS has been performed or if a pre-secured
	// connection is being used such as websockets over HTTPS.
	Secure State = 1 << iota

	// Compressed indicates that stream compression is in use.
	Compressed

	// StreamRestartRequired indicates that the next element must be a new
	// stream header, for instance after STARTTLS.
	// It is cleared when the header is read.
	StreamRestartRequired

	// InputStreamClosed indicates that the peer ended its stream.
	InputStreamClosed

	// Closed indicates that the pipeline was closed.
	// All buffered input has been discarded and nothing more can be written.
	Closed
)

// A Transform wraps the current view of a connection, for example by
// encrypting or compressing everything read from and written to it.
type Transform func(io.ReadWriter) (io.ReadWriter, error)

type flusher interface {
	Flush() error
}

// A Pipeline frames the input of a single connection.
//
// Input must be supplied from one goroutine at a time, either with Serve or by
// calling Feed or OnBytesAvailable.
// The methods that write, upgrade, close, or report state may be called from
// any goroutine.
type Pipeline struct {
	// last is accessed atomically and must stay 64-bit aligned.
	last int64

	opts   options
	h      Handler
	raw    io.ReadWriter
	framer *framer.Framer
	norm   element.Normalizer
	in     bytes.Buffer
	err    error
	gen    uint64

	mu    sync.Mutex
	rw    io.ReadWriter
	state State
	info  stream.Info
	scope []element.Namespace
}

// New returns a pipeline that reads from and writes to rw and passes each
// element it reads to h.
// If h is nil elements are read and discarded.
func New(rw io.ReadWriter, h Handler, opts ...Option) *Pipeline {
	o := getOpts(opts...)
	p := &Pipeline{
		opts:   o,
		h:      h,
		raw:    rw,
		rw:     rw,
		state:  o.state,
		framer: framer.New(o.scan...),
		norm: element.Normalizer{
			Content:  element.NewIgnoreSet(o.content...),
			Prefixed: element.NewIgnoreSet(o.prefixed...),
		},
	}
	p.touch()
	return p
}

// ContentNamespaces returns the set of namespaces stripped from the outermost
// element of each stanza.
// Changes to the set apply to elements framed after the change.
func (p *Pipeline) ContentNamespaces() *element.IgnoreSet {
	return p.norm.Content
}

// PrefixNamespaces returns the set of namespaces whose prefixed declarations
// are stripped from the outermost element of each stanza.
func (p *Pipeline) PrefixNamespaces() *element.IgnoreSet {
	return p.norm.Prefixed
}

// Feed frames b and passes every element that it completes to the handler.
// Bytes at the end of b that begin a multi-byte character are kept until the
// next call.
//
// Errors are sticky: once Feed returns an error every later call returns the
// same error.
func (p *Pipeline) Feed(b []byte) error {
	if err := p.check(); err != nil {
		return err
	}
	gen := p.gen
	units, err := p.framer.Frame(b)
	return p.deliver(gen, units, err)
}

// OnBytesAvailable is like Feed but reads the unread portion of buf, which is
// normally the read buffer of a connection.
// An incomplete character at the end of buf is left unread so that it is read
// again once more bytes have been appended.
func (p *Pipeline) OnBytesAvailable(buf *bytes.Buffer) error {
	if err := p.check(); err != nil {
		return err
	}
	gen := p.gen
	units, err := p.framer.Consume(buf)
	return p.deliver(gen, units, err)
}

// Serve reads from the connection and frames its input until the peer ends
// the stream, the connection is closed, or an error is encountered.
//
// Reaching the end of the stream or of the input, even in the middle of an
// element, is a normal disconnect and nil is returned.
// If ctx is canceled and the connection has a read deadline the blocked read
// is interrupted and the context's error is returned.
func (p *Pipeline) Serve(ctx context.Context) error {
	if d, ok := p.raw.(interface{ SetReadDeadline(time.Time) error }); ok {
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				/* #nosec */
				d.SetReadDeadline(time.Now())
			case <-done:
			}
		}()
	}

	buf := make([]byte, p.opts.readSize)
	for {
		if p.State()&(InputStreamClosed|Closed) != 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := p.conn().Read(buf)
		if n > 0 {
			p.in.Write(buf[:n])
			if ferr := p.OnBytesAvailable(&p.in); ferr != nil {
				if ferr == ErrClosed {
					return nil
				}
				return ferr
			}
		}
		switch {
		case err == io.EOF:
			p.opts.log.Printf("xmppframe: connection closed by peer")
			return nil
		case err != nil:
			if p.State()&(InputStreamClosed|Closed) != 0 {
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
	}
}

// Upgrade installs t on the current view of the connection.
// Everything already read, including partial elements, is still framed after
// the upgrade; only bytes read later pass through t.
// It must only be called when no bytes written by the peer under the old view
// remain unread, such as right after a <proceed/> or <compressed/> element
// has been sent.
//
// The bits in mask are set on the pipeline.
// If mask includes StreamRestartRequired, every element after the upgrade is
// rejected with ErrRestartRequired until a new stream header is read.
// Installing a second transform for Secure or Compressed fails with
// ErrUpgraded.
func (p *Pipeline) Upgrade(t Transform, mask State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.upgrade(t, mask)
}

func (p *Pipeline) upgrade(t Transform, mask State) error {
	switch {
	case p.state&Closed != 0:
		return ErrClosed
	case p.state&mask&(Secure|Compressed) != 0:
		return ErrUpgraded
	}
	rw, err := t(p.rw)
	if err != nil {
		return err
	}
	p.rw = rw
	p.state |= mask
	p.opts.log.Printf("xmppframe: installed transform, state %08b", p.state)
	return nil
}

// ResetStream discards all partially read input and the declarations of the
// current stream header.
// Elements that were completed by the same input as the element being handled
// when ResetStream is called are also discarded.
//
// ResetStream does not change the transport and does not clear an error.
func (p *Pipeline) ResetStream() {
	p.framer.Reset()
	p.in.Reset()
	p.gen++

	p.mu.Lock()
	p.scope = nil
	p.info = stream.Info{}
	p.mu.Unlock()
	p.opts.log.Printf("xmppframe: stream reset")
}

// OpenStream writes a stream header.
func (p *Pipeline) OpenStream(info stream.Info) error {
	var b strings.Builder
	if err := intstream.Send(&b, info); err != nil {
		return err
	}
	return p.DeliverRaw(b.String())
}

// CloseStream writes the end of the stream.
// The stream is ended in the manner of the last header read: with a <close/>
// element on WebSocket streams and with </stream:stream> otherwise.
func (p *Pipeline) CloseStream() error {
	var b strings.Builder
	if err := intstream.Close(&b, p.Info().WebSocket); err != nil {
		return err
	}
	return p.DeliverRaw(b.String())
}

// SendError writes a stream error followed by the end of the stream (see
// CloseStream).
func (p *Pipeline) SendError(e stream.Error) error {
	text, err := encode(e.TokenReader())
	if err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString(text)
	if err = intstream.Close(&b, p.Info().WebSocket); err != nil {
		return err
	}
	return p.DeliverRaw(b.String())
}

// Send encodes the tokens read from r and writes them as with DeliverRaw.
func (p *Pipeline) Send(r xml.TokenReader) error {
	text, err := encode(r)
	if err != nil {
		return err
	}
	return p.DeliverRaw(text)
}

// DeliverRaw writes text to the current view of the connection and flushes it.
//
// If the pipeline is closed or the write fails, the pipeline is closed and
// text is given to the Backup deliverer if one was configured, in which case
// the backup's result is returned.
func (p *Pipeline) DeliverRaw(text string) error {
	p.mu.Lock()
	err := p.write(text)
	p.mu.Unlock()
	if err == nil {
		return nil
	}

	if err != ErrClosed {
		p.opts.log.Printf("xmppframe: error delivering raw text: %v", err)
		/* #nosec */
		p.Close()
	}
	if p.opts.backup == nil {
		return err
	}
	return p.opts.backup.Deliver(text)
}

func (p *Pipeline) write(text string) error {
	if p.state&Closed != 0 {
		return ErrClosed
	}
	if _, err := io.WriteString(p.rw, text); err != nil {
		return err
	}
	if f, ok := p.rw.(flusher); ok {
		return f.Flush()
	}
	return nil
}

// Info returns the stream header that was read most recently.
func (p *Pipeline) Info() stream.Info {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.info
}

// State returns the current state of the pipeline.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// LastActive returns the time at which an element or whitespace keepalive was
// last read.
func (p *Pipeline) LastActive() time.Time {
	return time.Unix(0, atomic.LoadInt64(&p.last))
}

// Close closes the connection and discards all buffered input.
// Calling Close more than once has no effect.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.state&Closed != 0 {
		p.mu.Unlock()
		return nil
	}
	p.state |= Closed
	p.scope = nil
	rw := p.rw
	p.mu.Unlock()
	p.opts.log.Printf("xmppframe: closing pipeline")

	var err error
	if c, ok := rw.(io.Closer); ok {
		err = c.Close()
	}
	if c, ok := p.raw.(io.Closer); ok && p.raw != rw {
		if e := c.Close(); err == nil && !errors.Is(e, net.ErrClosed) {
			err = e
		}
	}
	return err
}

func (p *Pipeline) conn() io.ReadWriter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rw
}

func (p *Pipeline) touch() {
	atomic.StoreInt64(&p.last, time.Now().UnixNano())
}

// check returns the sticky error, or ErrClosed after discarding any buffered
// input if the pipeline was closed.
func (p *Pipeline) check() error {
	if p.err != nil {
		return p.err
	}
	if p.State()&Closed != 0 {
		p.framer.Reset()
		p.in.Reset()
		return ErrClosed
	}
	return nil
}

func (p *Pipeline) fail(err error) error {
	p.err = err
	p.opts.log.Printf("xmppframe: %v", err)
	var e *Error
	if p.opts.sink != nil && errors.As(err, &e) {
		p.opts.sink(err)
	}
	return err
}

func (p *Pipeline) deliver(gen uint64, units []scan.Unit, ferr error) error {
	for _, u := range units {
		if p.gen != gen || p.State()&Closed != 0 {
			return nil
		}
		if err := p.unit(u); err != nil {
			return p.fail(err)
		}
	}
	if p.gen != gen {
		return nil
	}
	if ferr != nil {
		return p.fail(inputError(ferr))
	}
	if keepalive := p.framer.Keepalive(); keepalive || len(units) > 0 {
		p.touch()
	}
	return nil
}

func (p *Pipeline) unit(u scan.Unit) error {
	if p.State()&InputStreamClosed != 0 {
		return &Error{Kind: FramingError, Err: ErrInputClosed}
	}

	switch u.Kind {
	case scan.ProcInst:
		if u.Name != "xml" {
			return &Error{Kind: FramingError, Err: fmt.Errorf("%w: processing instruction %s", scan.ErrRestricted, u.Name)}
		}
		if err := decl.Check(u.Raw); err != nil {
			return &Error{Kind: FramingError, Err: err}
		}
		return nil
	case scan.StreamClose:
		p.closeInput()
		return nil
	}

	p.mu.Lock()
	scope := p.scope
	p.mu.Unlock()
	el, err := p.norm.Normalize(u, scope)
	if err != nil {
		return &Error{Kind: FramingError, Err: err}
	}

	switch {
	case u.Kind == scan.StreamOpen || stream.IsHeader(el):
		var info stream.Info
		if err = info.FromElement(el, p.opts.accept...); err != nil {
			return &Error{Kind: FramingError, Err: err}
		}
		p.mu.Lock()
		p.info = info
		p.scope = info.NS
		p.state &^= StreamRestartRequired
		p.mu.Unlock()
		p.opts.log.Printf("xmppframe: stream header to=%q from=%q id=%q version=%v", info.To, info.From, info.ID, info.Version)
	case stream.IsClose(el):
		p.closeInput()
		return nil
	case p.State()&StreamRestartRequired != 0:
		return &Error{Kind: FramingError, Err: ErrRestartRequired}
	}

	if p.h == nil {
		return nil
	}
	return p.h.HandleElement(el)
}

func (p *Pipeline) closeInput() {
	p.mu.Lock()
	p.state |= InputStreamClosed
	p.mu.Unlock()
	p.opts.log.Printf("xmppframe: end of input stream")
}

// encode returns the text of the tokens in r.
func encode(r xml.TokenReader) (string, error) {
	var b strings.Builder
	e := xml.NewEncoder(&b)
	if _, err := xmlstream.Copy(e, r); err != nil {
		return "", err
	}
	err := e.Flush()
	return b.String(), err
}
