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

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/husonlab/fmhdist/fmhdist/distance"
	"github.com/husonlab/fmhdist/fmhdist/matrix"
	"github.com/husonlab/fmhdist/fmhdist/sketch"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

const (
	extContainment = ".containment"
	extMash        = ".mash"
)

// siblingFile returns a file next to the given one with an extra
// extension, keeping the ".gz" suffix at the end.
func siblingFile(file string, ext string) string {
	if strings.HasSuffix(file, ".gz") {
		return file[:len(file)-3] + ext + ".gz"
	}
	return file + ext
}

// addMatrixFlags adds flags of commands writing distance matrices.
func addMatrixFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("out-file", "o", "",
		formatFlagUsage(`Out file of Jaccard distances, containment and Mash distances are written to `+
			`<out-file>.containment and <out-file>.mash. Supports the ".gz" suffix.`))

	cmd.Flags().StringP("format", "f", matrix.Nexus,
		formatFlagUsage(fmt.Sprintf(`Format of distance matrices. Available: %s.`, strings.Join(matrix.Formats, ", "))))

	cmd.Flags().IntP("precision", "p", -1,
		formatFlagUsage(`Number of decimal places of distances, -1 for the smallest number necessary.`))
}

type matrixOptions struct {
	outFile   string
	format    string
	precision int
}

func getMatrixOptions(cmd *cobra.Command) *matrixOptions {
	mopt := &matrixOptions{
		outFile:   getFlagString(cmd, "out-file"),
		format:    getFlagString(cmd, "format"),
		precision: getFlagInt(cmd, "precision"),
	}
	if mopt.outFile == "" {
		checkError(fmt.Errorf("flag -o/--out-file is needed"))
	}
	if isStdin(mopt.outFile) {
		checkError(fmt.Errorf("-o/--out-file should be a file, as three files are written"))
	}
	var ok bool
	for _, f := range matrix.Formats {
		if f == mopt.format {
			ok = true
			break
		}
	}
	if !ok {
		checkError(fmt.Errorf("unsupported format: %s, available: %s", mopt.format, strings.Join(matrix.Formats, ", ")))
	}
	return mopt
}

// writeMatrices writes Jaccard, containment and Mash distances.
func writeMatrices(m *distance.Matrices, mopt *matrixOptions, opt *Options) error {
	for _, out := range []struct {
		file string
		m    *mat.Dense
	}{
		{mopt.outFile, m.Jaccard},
		{siblingFile(mopt.outFile, extContainment), m.Containment},
		{siblingFile(mopt.outFile, extMash), m.Mash},
	} {
		var data mat.Matrix
		if out.m != nil { // no sketches
			data = out.m
		}
		err := writeWith(out.file, opt, func(w io.Writer) error {
			return matrix.Write(w, mopt.format, m.Names, data, mopt.precision)
		})
		if err != nil {
			return err
		}
		if opt.Verbose || opt.Log2File {
			log.Infof("  %s", out.file)
		}
	}
	return nil
}

// selectReferences returns references within maxDist Jaccard distance
// of any query, in their original order.
func selectReferences(ctx context.Context, queries, refs []*sketch.Sketch, maxDist float64, threads int) ([]*sketch.Sketch, error) {
	all := make([]*sketch.Sketch, 0, len(queries)+len(refs))
	all = append(all, queries...)
	all = append(all, refs...)
	if err := sketch.CheckCompatibility(all...); err != nil {
		return nil, err
	}
	if len(queries) == 0 || len(refs) == 0 {
		return nil, nil
	}
	s, k := queries[0].S, queries[0].K

	hits := make([]bool, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	for i, ref := range refs {
		if gctx.Err() != nil {
			break
		}
		i, ref := i, ref
		g.Go(func() error {
			for _, q := range queries {
				d := distance.JaccardToDistance(distance.Jaccard(q.Values, ref.Values, s), k)
				if d <= maxDist {
					hits[i] = true
					break
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	selected := make([]*sketch.Sketch, 0, 64)
	for i, ok := range hits {
		if ok {
			selected = append(selected, refs[i])
		}
	}
	return selected, nil
}
