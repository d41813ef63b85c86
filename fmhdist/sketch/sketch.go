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

package sketch

import (
	"bytes"
	"math"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/husonlab/fmhdist/fmhdist/kmer"
	"github.com/husonlab/fmhdist/fmhdist/util"
	"github.com/pkg/errors"
)

// ErrInvalidScale means s < 1.
var ErrInvalidScale = errors.New("sketch: invalid scaling factor")

// ErrIncompatible means sketches are created with different parameters.
var ErrIncompatible = errors.New("sketch: incompatible sketches")

// Sketch is a FracMinHash sketch: sorted unique hash values of all
// canonical k-mers of a genome, below a threshold decided by the
// scaling factor S.
type Sketch struct {
	Name string
	S    int
	K    int
	Seed int

	// Hash is the hash function name, it is not serialized.
	Hash string

	Values []int64

	// optional, hash values to canonical k-mers
	Kmers map[int64][]byte
	// optional, coordinates of retained k-mers, in order of appearance
	Coordinates []*kmer.Coordinates
}

// Options contains the options of sketching.
type Options struct {
	// canonical k-mers are used for nucleotide sequences
	IsNucleotide bool

	Scale int
	Seed  int
	Hash  string

	// only keep k-mers occurring at least twice, with a Bloom filter
	FilterUnique bool
	// expected number of k-mers for the Bloom filter
	FilterCapacity uint
	FilterFPR      float64

	SaveKmers       bool
	SaveCoordinates bool
}

// DefaultFilterCapacity is used when the genome size is unknown.
const DefaultFilterCapacity uint = 1 << 26

// DefaultOptions is the default options.
var DefaultOptions = Options{
	IsNucleotide: true,
	Scale:        2000,
	Seed:         42,
	Hash:         DefaultHash,
	FilterFPR:    0.0001,
}

// CheckOptions checks the options.
func CheckOptions(opt *Options) error {
	if opt.Scale < 1 {
		return errors.Wrapf(ErrInvalidScale, "%d", opt.Scale)
	}
	if _, err := NewHasher(opt.Hash, opt.Seed); err != nil {
		return err
	}
	if opt.FilterUnique && (opt.FilterFPR <= 0 || opt.FilterFPR >= 1) {
		return errors.Errorf("sketch: invalid false positive rate of Bloom filter: %f", opt.FilterFPR)
	}
	return nil
}

// Kmers iterates k-mers. It is implemented by *kmer.Iterator.
type Kmers interface {
	K() int
	HasNext() bool
	Next() []byte
	ReverseComplement() []byte
	Coordinates() *kmer.Coordinates
	Err() error
}

// Threshold returns the exclusive upper bound of retained hash values,
// i.e., MinInt64 + 2*MaxInt64/s. s must be > 1, all values are retained
// when s == 1.
func Threshold(s int) int64 {
	return int64(maxHash(s) ^ (1 << 63))
}

// maxHash is the bound of hash values in the unsigned order.
func maxHash(s int) uint64 {
	if s <= 1 {
		return math.MaxUint64
	}
	return uint64(float64(^uint64(0)) / float64(s))
}

// Compute computes the sketch of all k-mers of an iterator.
// Hash values are interpreted as signed 64-bit integers, and a value h
// is retained if h < Threshold(s).
// No sketch is returned if the iterator fails.
func Compute(name string, it Kmers, opt *Options) (*Sketch, error) {
	if opt == nil {
		opt = &DefaultOptions
	}
	if err := CheckOptions(opt); err != nil {
		return nil, err
	}
	hash, _ := NewHasher(opt.Hash, opt.Seed)
	hashName := opt.Hash
	if hashName == "" {
		hashName = DefaultHash
	}

	var filter *bloom.BloomFilter
	if opt.FilterUnique {
		n := opt.FilterCapacity
		if n == 0 {
			n = DefaultFilterCapacity
		}
		filter = bloom.NewWithEstimates(n, opt.FilterFPR)
	}

	all := opt.Scale == 1
	maxH := maxHash(opt.Scale)

	sk := &Sketch{
		Name: name,
		S:    opt.Scale,
		K:    it.K(),
		Seed: opt.Seed,
		Hash: hashName,
	}
	if opt.SaveKmers {
		sk.Kmers = make(map[int64][]byte, 1024)
	}

	values := make([]int64, 0, 1024)
	var mer, rc, canonical []byte
	var h uint64
	var v int64
	for it.HasNext() {
		mer = it.Next()
		canonical = mer
		if opt.IsNucleotide {
			rc = it.ReverseComplement()
			if bytes.Compare(mer, rc) > 0 {
				canonical = rc
			}
		}

		if filter != nil && !filter.TestAndAdd(canonical) {
			continue
		}

		h = hash(canonical)
		if !all && h^(1<<63) >= maxH {
			continue
		}
		v = int64(h)
		values = append(values, v)

		if opt.SaveKmers {
			if _, ok := sk.Kmers[v]; !ok {
				sk.Kmers[v] = append([]byte{}, canonical...)
			}
		}
		if opt.SaveCoordinates {
			sk.Coordinates = append(sk.Coordinates, it.Coordinates())
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}

	util.UniqInt64s(&values)
	sk.Values = values
	return sk, nil
}

// Compatible tells if two sketches are comparable.
func (sk *Sketch) Compatible(o *Sketch) bool {
	return sk.S == o.S && sk.K == o.K && sk.Seed == o.Seed &&
		(sk.Hash == "" || o.Hash == "" || sk.Hash == o.Hash)
}

// CheckCompatibility checks if all sketches are comparable to the first one.
func CheckCompatibility(sketches ...*Sketch) error {
	if len(sketches) < 2 {
		return nil
	}
	first := sketches[0]
	for _, sk := range sketches[1:] {
		if !first.Compatible(sk) {
			return errors.Wrapf(ErrIncompatible,
				"%s (s=%d, k=%d, seed=%d, hash=%s) vs %s (s=%d, k=%d, seed=%d, hash=%s)",
				first.Name, first.S, first.K, first.Seed, first.Hash,
				sk.Name, sk.S, sk.K, sk.Seed, sk.Hash)
		}
	}
	return nil
}
