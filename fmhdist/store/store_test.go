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

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/husonlab/fmhdist/fmhdist/genome"
	"github.com/husonlab/fmhdist/fmhdist/sketch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	opt := sketch.DefaultOptions

	s, err := Create(dir, 21, &opt)
	require.NoError(t, err)

	n := 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g := &genome.Genome{Name: fmt.Sprintf("g%d", i), Location: fmt.Sprintf("s3://b/g%d.fna", i), Size: i * 100}
			sk := &sketch.Sketch{S: 2000, K: 21, Seed: 42, Hash: "murmur3", Values: []int64{int64(-i), int64(i + 1)}}
			assert.NoError(t, s.Add(g, sk))
		}(i)
	}
	wg.Wait()
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Add(&genome.Genome{Name: "x"}, &sketch.Sketch{S: 2000, K: 21, Seed: 42}), ErrClosed)

	s2, err := Open(dir)
	require.NoError(t, err)
	info := s2.Info()
	assert.Equal(t, Info{MainVersion: MainVersion, MinorVersion: MinorVersion, K: 21, Scale: 2000, Seed: 42, Hash: "murmur3", Genomes: n}, info)

	genomes := s2.Genomes()
	sketches, err := s2.Sketches(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, sketches, n)
	for i, sk := range sketches {
		var j int
		_, err = fmt.Sscanf(genomes[i].Name, "g%d", &j)
		require.NoError(t, err)
		assert.Equal(t, genomes[i].Name, sk.Name)
		assert.Equal(t, j*100, genomes[i].Size)
		assert.Equal(t, []int64{int64(-j), int64(j + 1)}, sk.Values)
		assert.Equal(t, "murmur3", sk.Hash)
	}
	require.NoError(t, s2.Close())
}

func TestIncompatible(t *testing.T) {
	opt := sketch.DefaultOptions
	s, err := Create(filepath.Join(t.TempDir(), "db"), 21, &opt)
	require.NoError(t, err)
	defer s.Close()

	err = s.Add(&genome.Genome{Name: "a"}, &sketch.Sketch{S: 1000, K: 21, Seed: 42})
	assert.ErrorIs(t, err, sketch.ErrIncompatible)
	err = s.Add(&genome.Genome{Name: "a\tb"}, &sketch.Sketch{S: 2000, K: 21, Seed: 42})
	assert.Error(t, err)
}

func TestCreateNotEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x"), []byte("x"), 0644))
	opt := sketch.DefaultOptions
	_, err := Create(dir, 21, &opt)
	assert.ErrorIs(t, err, ErrNotEmpty)
}

func TestVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteInfo(filepath.Join(dir, FileInfo), &Info{MainVersion: MainVersion + 1}))
	_, err := Open(dir)
	assert.ErrorIs(t, err, ErrVersionMismatch)

	_, err = Open(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
