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

package distance

import (
	"context"
	"math"

	"github.com/husonlab/fmhdist/fmhdist/sketch"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// MaxMashDistance caps Mash distances of sketches sharing nothing.
const MaxMashDistance = 1.0

// Matrices holds pairwise distances of a list of sketches.
type Matrices struct {
	Names []string

	// symmetric
	Jaccard *mat.Dense
	Mash    *mat.Dense

	// element (i, j) is the containment distance of i in j.
	Containment *mat.Dense
}

// Pairwise computes all pairwise distances of compatible sketches,
// rows are computed in parallel.
func Pairwise(ctx context.Context, sketches []*sketch.Sketch, threads int) (*Matrices, error) {
	if err := sketch.CheckCompatibility(sketches...); err != nil {
		return nil, err
	}
	n := len(sketches)
	m := &Matrices{Names: make([]string, n)}
	for i, sk := range sketches {
		m.Names[i] = sk.Name
	}
	if n == 0 {
		return m, nil
	}

	m.Jaccard = mat.NewDense(n, n, nil)
	m.Mash = mat.NewDense(n, n, nil)
	m.Containment = mat.NewDense(n, n, nil)

	s, k := sketches[0].S, sketches[0].K

	if threads < 1 {
		threads = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		// task i only touches row i and column i below the diagonal
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a := sketches[i].Values
			for j := i; j < n; j++ {
				b := sketches[j].Values

				jac := Jaccard(a, b, s)
				d := JaccardToDistance(jac, k)
				m.Jaccard.Set(i, j, d)
				m.Jaccard.Set(j, i, d)

				d = math.Min(MashDistance(jac, k), MaxMashDistance)
				m.Mash.Set(i, j, d)
				m.Mash.Set(j, i, d)

				m.Containment.Set(i, j, ContainmentToDistance(Containment(a, b, s), k))
				m.Containment.Set(j, i, ContainmentToDistance(Containment(b, a, s), k))
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
	return m, nil
}
