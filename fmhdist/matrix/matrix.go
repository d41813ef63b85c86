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

// Package matrix writes distance matrices in several text formats.
package matrix

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Formats.
const (
	Nexus  = "nexus"
	Phylip = "phylip"
	TSV    = "tsv"
)

// Formats lists supported formats.
var Formats = []string{Nexus, Phylip, TSV}

// ErrUnknownFormat means an unsupported output format.
var ErrUnknownFormat = errors.New("matrix: unknown format")

// ErrDimension means the matrix does not match the names.
var ErrDimension = errors.New("matrix: dimension mismatch")

// Write writes a square matrix with row/column names in the given format.
// Values are written with prec decimal places, -1 for the smallest
// number necessary.
func Write(w io.Writer, format string, names []string, m mat.Matrix, prec int) error {
	n := len(names)
	if m != nil {
		r, c := m.Dims()
		if r != n || c != n {
			return errors.Wrapf(ErrDimension, "%d names, %dx%d matrix", n, r, c)
		}
	} else if n > 0 {
		return errors.Wrapf(ErrDimension, "%d names, no matrix", n)
	}

	bw := bufio.NewWriter(w)
	switch format {
	case Nexus:
		writeNexus(bw, names, m, prec)
	case Phylip:
		writePhylip(bw, names, m, prec)
	case TSV:
		writeTSV(bw, names, m, prec)
	default:
		return errors.Wrapf(ErrUnknownFormat, "%q", format)
	}
	return bw.Flush()
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func writeTSV(w *bufio.Writer, names []string, m mat.Matrix, prec int) {
	for _, name := range names {
		w.WriteByte('\t')
		w.WriteString(name)
	}
	w.WriteByte('\n')
	for i, name := range names {
		w.WriteString(name)
		for j := range names {
			w.WriteByte('\t')
			w.WriteString(formatFloat(m.At(i, j), prec))
		}
		w.WriteByte('\n')
	}
}

// relaxed PHYLIP: names are separated from values by a tab.
func writePhylip(w *bufio.Writer, names []string, m mat.Matrix, prec int) {
	fmt.Fprintf(w, "%d\n", len(names))
	for i, name := range names {
		w.WriteString(strings.ReplaceAll(name, " ", "_"))
		for j := range names {
			w.WriteByte('\t')
			w.WriteString(formatFloat(m.At(i, j), prec))
		}
		w.WriteByte('\n')
	}
}

func quoteNexus(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func writeNexus(w *bufio.Writer, names []string, m mat.Matrix, prec int) {
	n := len(names)
	w.WriteString("#nexus\n\n")

	w.WriteString("BEGIN TAXA;\n")
	fmt.Fprintf(w, "\tDIMENSIONS ntax=%d;\n", n)
	w.WriteString("\tTAXLABELS\n")
	for i, name := range names {
		fmt.Fprintf(w, "\t\t[%d] %s\n", i+1, quoteNexus(name))
	}
	w.WriteString("\t;\nEND; [TAXA]\n\n")

	w.WriteString("BEGIN DISTANCES;\n")
	fmt.Fprintf(w, "\tDIMENSIONS ntax=%d;\n", n)
	w.WriteString("\tFORMAT labels=left diagonal triangle=Both;\n")
	w.WriteString("\tMATRIX\n")
	for i, name := range names {
		fmt.Fprintf(w, "\t\t[%d] %s", i+1, quoteNexus(name))
		for j := 0; j < n; j++ {
			w.WriteByte(' ')
			w.WriteString(formatFloat(m.At(i, j), prec))
		}
		w.WriteByte('\n')
	}
	w.WriteString("\t;\nEND; [DISTANCES]\n")
}
