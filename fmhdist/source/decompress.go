// Copyright © 2026 The fmhdist Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package source

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

var (
	magicGzip  = []byte{0x1f, 0x8b}
	magicZstd  = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicLz4   = []byte{0x04, 0x22, 0x4d, 0x18}
	magicBzip2 = []byte{'B', 'Z', 'h'}
)

type readCloser struct {
	io.Reader
	closers []func() error
}

func (r *readCloser) Close() error {
	var err error
	for _, c := range r.closers {
		if e := c(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

// Decompress detects the compression format of a stream by its magic
// number and returns a decompressed stream. Plain streams are returned
// buffered. Closing the returned stream closes rc.
func Decompress(rc io.ReadCloser) (io.ReadCloser, error) {
	br := bufio.NewReaderSize(rc, 65536)
	head, err := br.Peek(4)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		rc.Close()
		return nil, errors.Wrap(err, "detect compression format")
	}

	switch {
	case bytes.HasPrefix(head, magicGzip):
		gz, err := pgzip.NewReader(br)
		if err != nil {
			rc.Close()
			return nil, errors.Wrap(err, "gzip")
		}
		return &readCloser{Reader: gz, closers: []func() error{gz.Close, rc.Close}}, nil

	case bytes.HasPrefix(head, magicZstd):
		dec, err := zstd.NewReader(br)
		if err != nil {
			rc.Close()
			return nil, errors.Wrap(err, "zstd")
		}
		return &readCloser{Reader: dec, closers: []func() error{
			func() error { dec.Close(); return nil }, rc.Close}}, nil

	case bytes.HasPrefix(head, magicLz4):
		return &readCloser{Reader: lz4.NewReader(br), closers: []func() error{rc.Close}}, nil

	case bytes.HasPrefix(head, magicBzip2):
		return &readCloser{Reader: bzip2.NewReader(br), closers: []func() error{rc.Close}}, nil
	}

	return &readCloser{Reader: br, closers: []func() error{rc.Close}}, nil
}
