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

// Package distance estimates Jaccard and containment indexes of
// FracMinHash sketches, and converts them into evolutionary distances.
package distance

import (
	"math"

	"github.com/husonlab/fmhdist/fmhdist/util"
)

// IntersectionSize counts common values of two sorted sketches.
func IntersectionSize(a, b []int64) int {
	return util.Intersection(a, b)
}

// Jaccard estimates the Jaccard index of two sketches with the
// scaling factor s, corrected for the bias of small sketches,
// and capped at 1. It returns 0 if both are empty.
func Jaccard(a, b []int64, s int) float64 {
	i := IntersectionSize(a, b)
	u := len(a) + len(b) - i
	if u == 0 {
		return 0
	}
	j := float64(i) / float64(u) / (1 - math.Pow(1-1/float64(s), float64(u)))
	return math.Min(1, j)
}

// Containment estimates the fraction of a contained in b,
// with the same bias correction as Jaccard.
// It returns 0 if a is empty.
func Containment(a, b []int64, s int) float64 {
	if len(a) == 0 {
		return 0
	}
	i := IntersectionSize(a, b)
	c := float64(i) / float64(len(a)) / (1 - math.Pow(1-1/float64(s), float64(len(a))))
	return math.Min(1, c)
}

// JaccardToDistance converts a Jaccard index to a distance in [0, 1].
func JaccardToDistance(j float64, k int) float64 {
	return 1 - math.Pow(2*j/(1+j), 1/float64(k))
}

// MashDistance converts a Jaccard index to the Mash distance.
// It is +Inf when j is 0.
func MashDistance(j float64, k int) float64 {
	return math.Log((1+j)/(2*j)) / float64(k)
}

// ContainmentToDistance converts a containment index to a distance in [0, 1].
func ContainmentToDistance(c float64, k int) float64 {
	return 1 - math.Pow(c, 1/float64(k))
}
