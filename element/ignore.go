// Copyright 2022 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package element

import (
	"sort"
	"sync/atomic"
)

// IgnoreSet is a set of namespace URIs that are elided from normalized
// elements.
// The contents may be replaced at any time with Store; the new contents are
// seen by later calls to Contains and List, but never partially.
// An IgnoreSet is safe for concurrent use.
// The zero value is an empty set.
type IgnoreSet struct {
	v atomic.Value
}

// NewIgnoreSet returns a set containing uris.
func NewIgnoreSet(uris ...string) *IgnoreSet {
	s := &IgnoreSet{}
	s.Store(uris...)
	return s
}

// Store atomically replaces the contents of the set with uris.
func (s *IgnoreSet) Store(uris ...string) {
	m := make(map[string]struct{}, len(uris))
	for _, uri := range uris {
		m[uri] = struct{}{}
	}
	s.v.Store(m)
}

func (s *IgnoreSet) load() map[string]struct{} {
	if s == nil {
		return nil
	}
	m, _ := s.v.Load().(map[string]struct{})
	return m
}

// Contains reports whether uri is in the set.
// A nil set contains nothing.
func (s *IgnoreSet) Contains(uri string) bool {
	_, ok := s.load()[uri]
	return ok
}

// List returns the contents of the set in sorted order.
func (s *IgnoreSet) List() []string {
	m := s.load()
	l := make([]string, 0, len(m))
	for uri := range m {
		l = append(l, uri)
	}
	sort.Strings(l)
	return l
}

// snapshot returns a fixed view of the set for the length of one call to
// Normalize.
func (s *IgnoreSet) snapshot() map[string]struct{} {
	return s.load()
}
