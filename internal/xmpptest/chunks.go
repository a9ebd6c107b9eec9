// Copyright 2022 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xmpptest

// Chunks splits b into consecutive chunks of at most n bytes.
func Chunks(b []byte, n int) [][]byte {
	if n <= 0 {
		n = 1
	}
	var out [][]byte
	for len(b) > n {
		out = append(out, b[:n:n])
		b = b[n:]
	}
	if len(b) > 0 {
		out = append(out, b)
	}
	return out
}

// Splits calls f once for every way of cutting b in two, including the cuts
// before the first and after the last byte.
// Each call receives fresh copies so that f may retain them.
func Splits(b []byte, f func(first, second []byte)) {
	for i := 0; i <= len(b); i++ {
		first := append([]byte(nil), b[:i]...)
		second := append([]byte(nil), b[i:]...)
		f(first, second)
	}
}
