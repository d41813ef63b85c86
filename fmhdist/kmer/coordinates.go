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
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidCoordinates means a malformed coordinates line.
var ErrInvalidCoordinates = errors.New("kmer: invalid coordinates line")

// Coordinates locates a k-mer in a FASTA file.
// Indexes are 0-based. "WithAmbiguous" ones also count the windows
// skipped because of ambiguous bases, i.e., they are positions in
// the sequences.
type Coordinates struct {
	Record                int
	InFile                int
	InRecord              int
	InFileWithAmbiguous   int
	InRecordWithAmbiguous int
	Kmer                  []byte
}

// String returns the comma-separated text form:
// record,inFile,inRecord,inFileWithAmbiguous,inRecordWithAmbiguous,kmer.
func (c *Coordinates) String() string {
	return fmt.Sprintf("%d,%d,%d,%d,%d,%s",
		c.Record, c.InFile, c.InRecord,
		c.InFileWithAmbiguous, c.InRecordWithAmbiguous, c.Kmer)
}

// ParseCoordinates parses a line created by Coordinates.String.
func ParseCoordinates(line string) (*Coordinates, error) {
	items := strings.Split(strings.TrimRight(line, "\r\n"), ",")
	if len(items) != 6 {
		return nil, errors.Wrapf(ErrInvalidCoordinates, "%d fields", len(items))
	}
	var vals [5]int
	var err error
	for i := 0; i < 5; i++ {
		vals[i], err = strconv.Atoi(items[i])
		if err != nil || vals[i] < 0 {
			return nil, errors.Wrapf(ErrInvalidCoordinates, "field %d: %q", i+1, items[i])
		}
	}
	return &Coordinates{
		Record:                vals[0],
		InFile:                vals[1],
		InRecord:              vals[2],
		InFileWithAmbiguous:   vals[3],
		InRecordWithAmbiguous: vals[4],
		Kmer:                  []byte(items[5]),
	}, nil
}

// Equal tells if two coordinates are identical.
func (c *Coordinates) Equal(o *Coordinates) bool {
	return c.Record == o.Record &&
		c.InFile == o.InFile &&
		c.InRecord == o.InRecord &&
		c.InFileWithAmbiguous == o.InFileWithAmbiguous &&
		c.InRecordWithAmbiguous == o.InRecordWithAmbiguous &&
		bytes.Equal(c.Kmer, o.Kmer)
}
