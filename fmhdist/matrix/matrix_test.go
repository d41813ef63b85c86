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

package matrix

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var names = []string{"E. coli", "P. infestans'", "x"}
var m = mat.NewDense(3, 3, []float64{
	0, 0.5, 1,
	0.5, 0, 0.25,
	1, 0.25, 0,
})

func TestTSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, TSV, names, m, 3))
	expected := "\tE. coli\tP. infestans'\tx\n" +
		"E. coli\t0.000\t0.500\t1.000\n" +
		"P. infestans'\t0.500\t0.000\t0.250\n" +
		"x\t1.000\t0.250\t0.000\n"
	assert.Equal(t, expected, buf.String())
}

func TestPhylip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Phylip, names, m, -1))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "3", lines[0])
	assert.Equal(t, "E._coli\t0\t0.5\t1", lines[1])
}

func TestNexus(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Nexus, names, m, 6))
	text := buf.String()
	assert.True(t, strings.HasPrefix(text, "#nexus\n"))
	assert.Contains(t, text, "DIMENSIONS ntax=3;")
	assert.Contains(t, text, "[2] 'P. infestans'''")
	assert.Contains(t, text, "[3] 'x' 1.000000 0.250000 0.000000\n")
	assert.Equal(t, 2, strings.Count(text, "END;"))
}

func TestErrors(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, "csv", names, m, 3)
	assert.True(t, errors.Is(err, ErrUnknownFormat))
	err = Write(&buf, TSV, names[:2], m, 3)
	assert.True(t, errors.Is(err, ErrDimension))
	assert.NoError(t, Write(&buf, Nexus, nil, nil, 3))
}
