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
	"encoding/binary"
	"io"
	"math"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/husonlab/fmhdist/fmhdist/kmer"
	"github.com/husonlab/fmhdist/fmhdist/util"
	"github.com/pkg/errors"
	"github.com/shenwei356/kmers"
	"github.com/spaolacci/murmur3"
)

func randSeq(r *rand.Rand, n int) []byte {
	s := make([]byte, n)
	for i := range s {
		s[i] = "ACGT"[r.Intn(4)]
	}
	return s
}

func revComp(s []byte) []byte {
	c := map[byte]byte{'A': 'T', 'C': 'G', 'G': 'C', 'T': 'A'}
	rc := make([]byte, len(s))
	for i, b := range s {
		rc[len(s)-1-i] = c[b]
	}
	return rc
}

func compute(t *testing.T, text string, k int, opt *Options) *Sketch {
	it, err := kmer.NewIterator(strings.NewReader(text), k, true)
	if err != nil {
		t.Fatal(err)
	}
	sk, err := Compute("test", it, opt)
	if err != nil {
		t.Fatal(err)
	}
	return sk
}

func contains(values []int64, v int64) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func TestCanonicalKmer(t *testing.T) {
	opt := DefaultOptions
	opt.Scale = 1
	sk := compute(t, ">seq\nTTGGATGAAACGCACCCGCTAT\n", 21, &opt)

	if len(sk.Values) != 2 {
		t.Errorf("expected 2 values, results %d", len(sk.Values))
	}
	// TTGGATGAAACGCACCCGCTA -> TAGCGGGTGCGTTTCATCCAA
	// TGGATGAAACGCACCCGCTAT -> ATAGCGGGTGCGTTTCATCCA
	for _, mer := range []string{"TAGCGGGTGCGTTTCATCCAA", "ATAGCGGGTGCGTTTCATCCA"} {
		v := int64(murmur3.Sum64WithSeed([]byte(mer), uint32(opt.Seed)))
		if !contains(sk.Values, v) {
			t.Errorf("hash of canonical k-mer %s not found", mer)
		}
	}
	for _, mer := range []string{"TTGGATGAAACGCACCCGCTA", "TGGATGAAACGCACCCGCTAT"} {
		v := int64(murmur3.Sum64WithSeed([]byte(mer), uint32(opt.Seed)))
		if contains(sk.Values, v) {
			t.Errorf("hash of non-canonical k-mer %s should not be present", mer)
		}
	}
	if sk.S != 1 || sk.K != 21 || sk.Seed != 42 || sk.Hash != "murmur3" {
		t.Errorf("unexpected parameters: %d, %d, %d, %s", sk.S, sk.K, sk.Seed, sk.Hash)
	}
}

func TestThreshold(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	s := randSeq(r, 20000)
	k := 21

	for _, scale := range []int{2, 10, 100} {
		opt := DefaultOptions
		opt.Scale = scale
		sk := compute(t, ">a\n"+string(s), k, &opt)

		threshold := Threshold(scale)
		var expected []int64
		for i := 0; i+k <= len(s); i++ {
			code, _ := kmers.Encode(s[i : i+k])
			mer := kmers.MustDecode(kmers.Canonical(code, k), k)
			v := int64(murmur3.Sum64WithSeed(mer, 42))
			if v < threshold {
				expected = append(expected, v)
			}
		}
		util.UniqInt64s(&expected)

		if len(expected) != len(sk.Values) {
			t.Errorf("s=%d: expected %d values, results %d", scale, len(expected), len(sk.Values))
			continue
		}
		for i, v := range sk.Values {
			if v != expected[i] || v >= threshold {
				t.Errorf("s=%d: unexpected value %d", scale, v)
				break
			}
		}
		if !util.IsStrictlyAscending(sk.Values) {
			t.Errorf("s=%d: values not sorted", scale)
		}
	}
}

func TestStrandSymmetry(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	s := randSeq(r, 10000)
	opt := DefaultOptions
	opt.Scale = 10
	a := compute(t, ">a\n"+string(s), 15, &opt)
	b := compute(t, ">b\n"+string(revComp(s)), 15, &opt)
	if len(a.Values) == 0 || len(a.Values) != len(b.Values) {
		t.Errorf("sizes differ: %d vs %d", len(a.Values), len(b.Values))
		return
	}
	for i := range a.Values {
		if a.Values[i] != b.Values[i] {
			t.Errorf("values differ at %d", i)
			return
		}
	}
}

func TestHashFunctions(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	s := randSeq(r, 3000)
	for _, name := range HashNames() {
		h, err := NewHasher(name, 42)
		if err != nil {
			t.Error(err)
			continue
		}
		if h(s[:21]) != h(s[:21]) {
			t.Errorf("%s: not deterministic", name)
		}
		h2, _ := NewHasher(name, 43)
		if h(s[:21]) == h2(s[:21]) {
			t.Errorf("%s: seed ignored", name)
		}

		opt := DefaultOptions
		opt.Scale = 1
		opt.Hash = name
		sk := compute(t, string(s), 21, &opt)
		if sk.Hash != name || len(sk.Values) == 0 {
			t.Errorf("%s: unexpected sketch", name)
		}
	}

	if _, err := NewHasher("md5", 1); !errors.Is(err, ErrUnknownHash) {
		t.Errorf("expected ErrUnknownHash, results %v", err)
	}
}

func TestFilterUnique(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	s := string(randSeq(r, 5000))
	opt := DefaultOptions
	opt.Scale = 1

	all := compute(t, ">a\n"+s, 21, &opt)

	opt.FilterUnique = true
	opt.FilterCapacity = 20000
	twice := compute(t, ">a\n"+s+"\n>b\n"+s, 21, &opt)
	if len(twice.Values) != len(all.Values) {
		t.Errorf("expected %d values, results %d", len(all.Values), len(twice.Values))
	}

	once := compute(t, ">a\n"+s, 21, &opt)
	if len(once.Values) >= len(all.Values)/10 {
		t.Errorf("too many values kept for unique k-mers: %d", len(once.Values))
	}
}

func TestSaveKmersAndCoordinates(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	s := randSeq(r, 5000)
	opt := DefaultOptions
	opt.Scale = 5
	opt.SaveKmers = true
	opt.SaveCoordinates = true
	sk := compute(t, ">a\n"+string(s), 21, &opt)

	h, _ := NewHasher(opt.Hash, opt.Seed)
	if len(sk.Kmers) != len(sk.Values) {
		t.Errorf("expected %d k-mers, results %d", len(sk.Values), len(sk.Kmers))
	}
	for v, mer := range sk.Kmers {
		if int64(h(mer)) != v {
			t.Errorf("hash of %s mismatch", mer)
		}
	}
	if len(sk.Coordinates) < len(sk.Values) {
		t.Errorf("expected at least %d coordinates, results %d", len(sk.Values), len(sk.Coordinates))
	}
	for _, c := range sk.Coordinates {
		if !bytes.Equal(c.Kmer, s[c.InRecordWithAmbiguous:c.InRecordWithAmbiguous+21]) {
			t.Errorf("k-mer %s not found at %d", c.Kmer, c.InRecordWithAmbiguous)
			return
		}
	}

	var buf bytes.Buffer
	if err := sk.WriteKmers(&buf); err != nil {
		t.Error(err)
	}
	if n := strings.Count(buf.String(), "\n"); n != len(sk.Values) {
		t.Errorf("expected %d lines, results %d", len(sk.Values), n)
	}
	buf.Reset()
	if err := sk.WriteCoordinates(&buf); err != nil {
		t.Error(err)
	}
	if n := strings.Count(buf.String(), "\n"); n != len(sk.Coordinates) {
		t.Errorf("expected %d lines, results %d", len(sk.Coordinates), n)
	}
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) { return 0, io.ErrClosedPipe }

func TestComputeError(t *testing.T) {
	it, _ := kmer.NewIterator(io.MultiReader(strings.NewReader(">a\nACGTACGTACGTACGTACGTACGTAC"), failingReader{}), 21, true)
	sk, err := Compute("a", it, nil)
	if sk != nil || err == nil {
		t.Errorf("expected an error and no sketch")
	}
	var e *kmer.StreamError
	if !errors.As(err, &e) {
		t.Errorf("expected StreamError, results %v", err)
	}

	it, _ = kmer.NewIterator(strings.NewReader("ACGT"), 2, true)
	if _, err = Compute("a", it, &Options{Scale: 0}); !errors.Is(err, ErrInvalidScale) {
		t.Errorf("expected ErrInvalidScale, results %v", err)
	}
}

func TestCompatibility(t *testing.T) {
	a := &Sketch{Name: "a", S: 2000, K: 21, Seed: 42, Hash: "murmur3"}
	b := &Sketch{Name: "b", S: 2000, K: 21, Seed: 42}
	c := &Sketch{Name: "c", S: 1000, K: 21, Seed: 42}
	if err := CheckCompatibility(a, b); err != nil {
		t.Error(err)
	}
	if err := CheckCompatibility(a, b, c); !errors.Is(err, ErrIncompatible) {
		t.Errorf("expected ErrIncompatible, results %v", err)
	}
	d := &Sketch{Name: "d", S: 2000, K: 21, Seed: 42, Hash: "wyhash"}
	if a.Compatible(d) {
		t.Errorf("different hash functions should not be compatible")
	}
}

func TestSerialization(t *testing.T) {
	sk := &Sketch{S: 2000, K: 21, Seed: 42, Values: []int64{-9223372036854775808, -5, 0, 7, 9223372036854775807}}

	data := sk.Bytes()
	if len(data) != 20+8*len(sk.Values) {
		t.Errorf("unexpected size: %d", len(data))
	}
	if !bytes.Equal(data[:4], []byte{0x4f, 0x41, 0x53, 0x48}) {
		t.Errorf("unexpected magic bytes: %x", data[:4])
	}

	check := func(sk2 *Sketch, err error) {
		if err != nil {
			t.Error(err)
			return
		}
		if sk2.S != sk.S || sk2.K != sk.K || sk2.Seed != sk.Seed || len(sk2.Values) != len(sk.Values) {
			t.Errorf("unexpected sketch: %+v", sk2)
			return
		}
		for i, v := range sk.Values {
			if sk2.Values[i] != v {
				t.Errorf("expected %d, results %d", v, sk2.Values[i])
			}
		}
	}

	check(Parse(data))
	check(Read(bytes.NewReader(data)))
	check(ParseHex(append(sk.Hex(), '\n')))

	dir := t.TempDir()
	for _, file := range []string{"a.sketch", "a.sketch.gz"} {
		file = filepath.Join(dir, file)
		if err := sk.WriteToFile(file); err != nil {
			t.Error(err)
			continue
		}
		check(NewFromFile(file))
	}
	for _, file := range []string{"b.sketch", "b.sketch.gz"} {
		file = filepath.Join(dir, file)
		if err := sk.WriteBinaryFile(file); err != nil {
			t.Error(err)
			continue
		}
		check(NewFromFile(file))
	}

	empty := &Sketch{S: 1, K: 3, Seed: 0}
	check2, err := Parse(empty.Bytes())
	if err != nil || len(check2.Values) != 0 {
		t.Errorf("empty sketch: %v", err)
	}
}

func TestBadData(t *testing.T) {
	sk := &Sketch{S: 2000, K: 21, Seed: 42, Values: []int64{1, 2, 3}}
	data := sk.Bytes()

	bad := append([]byte{}, data...)
	bad[0] ^= 0xff
	if _, err := Parse(bad); err != ErrInvalidFormat {
		t.Errorf("expected ErrInvalidFormat, results %v", err)
	}
	if _, err := Read(bytes.NewReader(bad)); err != ErrInvalidFormat {
		t.Errorf("expected ErrInvalidFormat, results %v", err)
	}

	for _, n := range []int{5, 19, 20, 27, len(data) - 1} {
		if _, err := Parse(data[:n]); !errors.Is(err, ErrBrokenData) {
			t.Errorf("%d bytes: expected ErrBrokenData, results %v", n, err)
		}
		if _, err := Read(bytes.NewReader(data[:n])); !errors.Is(err, ErrBrokenData) {
			t.Errorf("%d bytes: expected ErrBrokenData, results %v", n, err)
		}
	}

	unsorted := &Sketch{S: 2000, K: 21, Seed: 42, Values: []int64{3, 2}}
	if _, err := Parse(unsorted.Bytes()); !errors.Is(err, ErrBrokenData) {
		t.Errorf("expected ErrBrokenData, results %v", err)
	}
	if _, err := ParseHex([]byte("xyz")); !errors.Is(err, ErrBrokenData) {
		t.Errorf("expected ErrBrokenData, results %v", err)
	}
}

func TestReadLarge(t *testing.T) {
	sk := &Sketch{S: 1, K: 21, Seed: 42, Values: make([]int64, 3*readChunk+5)}
	for i := range sk.Values {
		sk.Values[i] = int64(i*3 - readChunk)
	}
	sk2, err := Read(bytes.NewReader(sk.Bytes()))
	if err != nil {
		t.Error(err)
		return
	}
	if len(sk2.Values) != len(sk.Values) {
		t.Errorf("expected %d values, results %d", len(sk.Values), len(sk2.Values))
		return
	}
	for i, v := range sk.Values {
		if sk2.Values[i] != v {
			t.Errorf("value %d: expected %d, results %d", i, v, sk2.Values[i])
			return
		}
	}

	// a huge count with few values
	data := (&Sketch{S: 1, K: 21, Seed: 42, Values: []int64{1, 2, 3}}).Bytes()
	binary.LittleEndian.PutUint32(data[16:20], math.MaxInt32)
	sk2, err = Read(bytes.NewReader(data))
	if sk2 != nil || !errors.Is(err, ErrBrokenData) {
		t.Errorf("expected ErrBrokenData, results %v", err)
	}
}
