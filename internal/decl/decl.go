// Copyright 2019 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package decl contains functionality related to XML declarations.
package decl // import "mellium.im/xmppframe/internal/decl"

import (
	"encoding/xml"
	"errors"
	"strings"
)

const (
	// XMLHeader is an XML header like the one in encoding/xml but without a
	// newline at the end.
	XMLHeader = `<?xml version="1.0" encoding="UTF-8"?>`
)

// Errors returned by Check.
var (
	ErrMalformed = errors.New("decl: malformed XML declaration")
	ErrVersion   = errors.New("decl: unsupported XML version")
	ErrEncoding  = errors.New("decl: unsupported encoding")
)

type skipper struct {
	r       xml.TokenReader
	started bool
}

// Token implements xml.TokenReader for Reader.
func (r *skipper) Token() (xml.Token, error) {
	tok, err := r.r.Token()
	if tok != nil && !r.started {
		r.started = true
		if proc, ok := tok.(xml.ProcInst); ok && proc.Target == "xml" {
			if err != nil {
				return nil, err
			}
			return r.r.Token()
		}
	}
	return tok, err
}

// Skip wraps a token reader and skips any XML declaration.
func Skip(r xml.TokenReader) xml.TokenReader {
	return &skipper{r: r}
}

// Check parses the raw text of an XML declaration such as
// <?xml version='1.0' encoding='UTF-8'?> and reports whether the stream may
// be read.
// Only XML 1.0 encoded as UTF-8 is accepted; a missing encoding is UTF-8.
func Check(raw string) error {
	if !strings.HasPrefix(raw, "<?xml") || !strings.HasSuffix(raw, "?>") {
		return ErrMalformed
	}
	attrs, ok := pseudoAttrs(raw[len("<?xml") : len(raw)-len("?>")])
	if !ok {
		return ErrMalformed
	}
	if v := attrs["version"]; v != "1.0" {
		return ErrVersion
	}
	if enc, ok := attrs["encoding"]; ok && !strings.EqualFold(enc, "utf-8") {
		return ErrEncoding
	}
	return nil
}

// pseudoAttrs parses the name='value' pairs in the body of a processing
// instruction.
func pseudoAttrs(s string) (map[string]string, bool) {
	attrs := make(map[string]string)
	for {
		s = strings.TrimLeft(s, " \t\r\n")
		if s == "" {
			return attrs, true
		}
		eq := strings.IndexByte(s, '=')
		if eq < 1 {
			return nil, false
		}
		name := strings.TrimRight(s[:eq], " \t\r\n")
		s = strings.TrimLeft(s[eq+1:], " \t\r\n")
		if s == "" || s[0] != '"' && s[0] != '\'' {
			return nil, false
		}
		end := strings.IndexByte(s[1:], s[0])
		if end == -1 {
			return nil, false
		}
		attrs[name] = s[1 : end+1]
		s = s[end+2:]
	}
}
