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

// Package coords summarizes k-mers of a sketch along the sequences,
// using coordinates saved during sketching.
package coords

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/husonlab/fmhdist/fmhdist/kmer"
	"github.com/pkg/errors"
	"github.com/rdleal/intervalst/interval"
	"github.com/shenwei356/xopen"
)

// ErrInvalidWindowSize means a window size < 1.
var ErrInvalidWindowSize = errors.New("coords: invalid window size")

// Window is a region of w positions starting at a retained k-mer.
type Window struct {
	Start  int // position including ambiguous windows
	Kmers  int // number of retained k-mers in the window
	Unique int // number of k-mers occurring once in the window
}

func (w Window) String() string {
	return fmt.Sprintf("%d,%d,%d", w.Start, w.Kmers, w.Unique)
}

// Read reads coordinates lines.
func Read(r io.Reader) ([]*kmer.Coordinates, error) {
	list := make([]*kmer.Coordinates, 0, 1024)
	scanner := bufio.NewScanner(r)
	var n int
	for scanner.Scan() {
		n++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c, err := kmer.ParseCoordinates(line)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", n)
		}
		list = append(list, c)
	}
	return list, scanner.Err()
}

// ReadFile reads a coordinates file.
func ReadFile(file string) ([]*kmer.Coordinates, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, errors.Wrapf(err, "read coordinates file: %s", file)
	}
	defer fh.Close()
	list, err := Read(fh)
	return list, errors.Wrapf(err, "read coordinates file: %s", file)
}

// Windows creates a window of size w for every k-mer, covering the
// k-mers at positions [start, start+w) of the file, counted including
// ambiguous windows.
func Windows(coords []*kmer.Coordinates, w int) ([]Window, error) {
	if w < 1 {
		return nil, errors.Wrapf(ErrInvalidWindowSize, "%d", w)
	}

	// positions are doubled, so a k-mer is a proper interval
	cmpFn := func(x, y int) int { return x - y }
	tree := interval.NewSearchTree[int, int](cmpFn)
	for i, c := range coords {
		p := c.InFileWithAmbiguous << 1
		if err := tree.Insert(p, p+1, i); err != nil {
			return nil, errors.Wrapf(err, "k-mer %d", i)
		}
	}

	windows := make([]Window, len(coords))
	counts := make(map[string]int, 64)
	for i, c := range coords {
		start := c.InFileWithAmbiguous
		hits, _ := tree.AllIntersections(start<<1, (start+w)<<1-1)

		clear(counts)
		for _, j := range hits {
			counts[string(coords[j].Kmer)]++
		}
		var unique int
		for _, n := range counts {
			if n == 1 {
				unique++
			}
		}
		windows[i] = Window{Start: start, Kmers: len(hits), Unique: unique}
	}
	return windows, nil
}

// Write writes windows, one per line.
func Write(w io.Writer, windows []Window) error {
	bw := bufio.NewWriter(w)
	for _, win := range windows {
		if _, err := fmt.Fprintln(bw, win); err != nil {
			return err
		}
	}
	return bw.Flush()
}
