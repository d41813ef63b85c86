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
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// sizeStats summarizes sizes of sketches.
type sizeStats struct {
	N      int
	Mean   float64
	Stdev  float64
	Min    float64
	Median float64
	Max    float64
}

func computeSizeStats(sizes []float64) sizeStats {
	s := sizeStats{N: len(sizes)}
	if s.N == 0 {
		return s
	}

	sorted := append([]float64{}, sizes...)
	sort.Float64s(sorted)

	s.Min = floats.Min(sorted)
	s.Max = floats.Max(sorted)
	s.Median = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	if s.N == 1 {
		s.Mean = sorted[0]
		return s
	}
	s.Mean, s.Stdev = stat.MeanStdDev(sorted, nil)
	return s
}

// plotSizeHistogram saves a histogram of sketch sizes,
// the format is decided by the file extension (png, svg, pdf, ...).
func plotSizeHistogram(sizes []float64, bins int, title string, file string) error {
	if len(sizes) == 0 {
		return errors.New("no sketches to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "number of hash values"
	p.Y.Label.Text = "number of sketches"

	h, err := plotter.NewHist(plotter.Values(sizes), bins)
	if err != nil {
		return errors.Wrap(err, "plot histogram")
	}
	p.Add(h)

	return errors.Wrapf(p.Save(6*vg.Inch, 4*vg.Inch, file), "save plot: %s", file)
}
