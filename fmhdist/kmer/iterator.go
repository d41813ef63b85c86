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

package kmer

import (
	"bufio"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// ErrInvalidK means k < 1.
var ErrInvalidK = errors.New("kmer: invalid k-mer size")

// StreamError wraps an I/O failure of the underlying byte stream.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("kmer: read stream: %s", e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// extra room of the rolling buffers, so the content is shifted rarely.
const slack = 1 << 12

var toUpper [256]byte
var complement [256]byte
var isSpace [256]bool

func init() {
	for i := range toUpper {
		toUpper[i] = byte(i)
		complement[i] = 'N'
	}
	for c := 'a'; c <= 'z'; c++ {
		toUpper[c] = byte(c - 'a' + 'A')
	}
	complement['A'] = 'T'
	complement['C'] = 'G'
	complement['G'] = 'C'
	complement['T'] = 'A'
	for _, c := range []byte{'\n', '\r', '\t', ' '} {
		isSpace[c] = true
	}
}

// position of a k-mer.
type state struct {
	record          int
	inFile          int // valid k-mers before it in the file
	inRecord        int // valid k-mers before it in the record
	skippedInFile   int // k-mers skipped because of ambiguous bases
	skippedInRecord int
}

// Iterator extracts all k-mers of a FASTA (or headerless sequence) byte
// stream, along with their reverse complements and coordinates.
//
// Header lines start with '>', whitespace and line breaks are ignored,
// and bases are uppercased. K-mers never span two records.
// When skipN is true, windows containing 'N' are not produced.
//
// Slices returned by Next, Kmer and ReverseComplement are only valid
// until the next call of Next.
type Iterator struct {
	r      *bufio.Reader
	closer io.Closer

	k     int
	skipN bool

	fwd []byte // fwd[end-k:end] is the current k-mer
	end int
	rev []byte // rev[start:start+k] is its reverse complement
	start int

	pre   []byte // the first k-1 bases of a fresh window
	fresh bool

	sym   byte // the base completing the next k-mer
	ready bool

	back    byte // one pushed back base
	hasBack bool

	cur     state
	pending state

	eof bool
	err error
}

// NewIterator creates an Iterator from a byte stream.
// If r is an io.Closer, it is closed by Close.
func NewIterator(r io.Reader, k int, skipN bool) (*Iterator, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}

	it := &Iterator{
		k:     k,
		skipN: skipN,
		fwd:   make([]byte, k+slack),
		rev:   make([]byte, k+slack),
		pre:   make([]byte, k),
	}
	if br, ok := r.(*bufio.Reader); ok {
		it.r = br
	} else {
		it.r = bufio.NewReaderSize(r, 65536)
	}
	if c, ok := r.(io.Closer); ok {
		it.closer = c
	}
	it.pending.record = -1

	it.preload()
	return it, nil
}

// K returns the k-mer size.
func (it *Iterator) K() int { return it.k }

// HasNext tells if there are more k-mers.
func (it *Iterator) HasNext() bool { return it.ready }

// Next returns the next k-mer, nil when exhausted.
func (it *Iterator) Next() []byte {
	if !it.ready {
		return nil
	}

	if it.fresh {
		it.reload()
		it.fresh = false
	}
	it.push(it.sym)

	it.cur = it.pending
	it.pending.inFile++
	it.pending.inRecord++

	it.advance()

	return it.fwd[it.end-it.k : it.end]
}

// Kmer returns the current k-mer.
func (it *Iterator) Kmer() []byte {
	return it.fwd[it.end-it.k : it.end]
}

// ReverseComplement returns the reverse complement of the current k-mer.
func (it *Iterator) ReverseComplement() []byte {
	return it.rev[it.start : it.start+it.k]
}

// Record returns the 0-based index of the record of the current k-mer.
func (it *Iterator) Record() int { return it.cur.record }

// Coordinates returns the coordinates of the current k-mer,
// with a copy of it.
func (it *Iterator) Coordinates() *Coordinates {
	c := it.cur
	return &Coordinates{
		Record:                c.record,
		InFile:                c.inFile,
		InRecord:              c.inRecord,
		InFileWithAmbiguous:   c.inFile + c.skippedInFile,
		InRecordWithAmbiguous: c.inRecord + c.skippedInRecord,
		Kmer:                  append([]byte{}, it.Kmer()...),
	}
}

// Err returns the stream error, if any, which ended the iteration.
func (it *Iterator) Err() error { return it.err }

// Close closes the underlying stream.
func (it *Iterator) Close() error {
	it.ready = false
	if it.closer != nil {
		return it.closer.Close()
	}
	return nil
}

// advance looks one base ahead.
func (it *Iterator) advance() {
	c, headers, ok := it.readSymbol()
	if !ok {
		it.ready = false
		return
	}
	if headers > 0 {
		it.startRecords(headers)
		it.back, it.hasBack = c, true
		it.preload()
		return
	}
	if it.skipN && c == 'N' {
		it.pending.skippedInFile += it.k
		it.pending.skippedInRecord += it.k
		it.preload()
		return
	}
	it.sym = c
}

// preload collects k-1 valid bases and the one completing a k-mer.
func (it *Iterator) preload() {
	it.ready = false
	km1 := it.k - 1
	var n int
	for {
		c, headers, ok := it.readSymbol()
		if !ok {
			return
		}
		if headers > 0 {
			it.startRecords(headers)
			n = 0
		} else if it.pending.record < 0 { // headerless sequence
			it.pending.record = 0
		}

		if it.skipN && c == 'N' {
			n++
			it.pending.skippedInFile += n
			it.pending.skippedInRecord += n
			n = 0
			continue
		}

		if n == km1 {
			it.sym = c
			it.fresh = true
			it.ready = true
			return
		}
		it.pre[n] = c
		n++
	}
}

func (it *Iterator) startRecords(n int) {
	it.pending.record += n
	it.pending.inRecord = 0
	it.pending.skippedInRecord = 0
}

// reload fills the buffers with the k-1 preloaded bases.
func (it *Iterator) reload() {
	km1 := it.k - 1
	copy(it.fwd, it.pre[:km1])
	it.end = km1

	n := len(it.rev)
	for i := 0; i < km1; i++ {
		it.rev[n-1-i] = complement[it.pre[i]]
	}
	it.start = n - km1
}

func (it *Iterator) push(c byte) {
	km1 := it.k - 1

	if it.end == len(it.fwd) {
		copy(it.fwd, it.fwd[it.end-km1:it.end])
		it.end = km1
	}
	it.fwd[it.end] = c
	it.end++

	if it.start == 0 {
		n := len(it.rev) - km1
		copy(it.rev[n:], it.rev[:km1])
		it.start = n
	}
	it.start--
	it.rev[it.start] = complement[c]
}

// readSymbol returns the next uppercased base and the number of
// header lines crossed before it.
func (it *Iterator) readSymbol() (byte, int, bool) {
	if it.hasBack {
		it.hasBack = false
		return it.back, 0, true
	}
	if it.eof {
		return 0, 0, false
	}

	var headers int
	for {
		c, err := it.r.ReadByte()
		if err != nil {
			it.fail(err)
			return 0, headers, false
		}
		if isSpace[c] {
			continue
		}
		if c == '>' {
			headers++
			if err = it.skipLine(); err != nil {
				it.fail(err)
				return 0, headers, false
			}
			continue
		}
		return toUpper[c], headers, true
	}
}

func (it *Iterator) skipLine() error {
	for {
		_, err := it.r.ReadSlice('\n')
		if err != bufio.ErrBufferFull {
			return err
		}
	}
}

func (it *Iterator) fail(err error) {
	it.eof = true
	if err != io.EOF {
		it.err = &StreamError{Err: err}
	}
}
