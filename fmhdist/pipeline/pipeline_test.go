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

package pipeline

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/husonlab/fmhdist/fmhdist/genome"
	"github.com/husonlab/fmhdist/fmhdist/kmer"
	"github.com/husonlab/fmhdist/fmhdist/sketch"
	"github.com/husonlab/fmhdist/fmhdist/source"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randFasta(r *rand.Rand, records, length int) string {
	var b strings.Builder
	for i := 0; i < records; i++ {
		fmt.Fprintf(&b, ">r%d\n", i)
		for j := 0; j < length; j++ {
			b.WriteByte("ACGT"[r.Intn(4)])
			if j%60 == 59 {
				b.WriteByte('\n')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

type memStore struct {
	data map[string]string

	mu    sync.Mutex
	fails map[string]int // number of failing opens left
	opens map[string]int
}

func newMemStore(n int) (*memStore, []*genome.Genome) {
	r := rand.New(rand.NewSource(1))
	m := &memStore{data: map[string]string{}, fails: map[string]int{}, opens: map[string]int{}}
	genomes := make([]*genome.Genome, n)
	for i := range genomes {
		loc := fmt.Sprintf("mem://g%d.fna", i)
		m.data[loc] = randFasta(r, 1+i%3, 3000)
		genomes[i] = &genome.Genome{Name: fmt.Sprintf("g%d", i), Location: loc}
	}
	return m, genomes
}

func (m *memStore) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens[location]++
	if m.fails[location] > 0 {
		m.fails[location]--
		return nil, &source.Error{Location: location, Err: errors.New("connection reset")}
	}
	text, ok := m.data[location]
	if !ok {
		return nil, &source.Error{Location: location, Err: errors.New("not found")}
	}
	return io.NopCloser(strings.NewReader(text)), nil
}

func expectedSketch(t *testing.T, text string, name string, opt *Options) *sketch.Sketch {
	it, err := kmer.NewIterator(strings.NewReader(text), opt.K, opt.SkipN)
	require.NoError(t, err)
	sopt := opt.Sketch
	sk, err := sketch.Compute(name, it, &sopt)
	require.NoError(t, err)
	return sk
}

func testOptions(store source.Opener) *Options {
	opt := DefaultOptions
	opt.K = 15
	opt.Sketch.Scale = 10
	opt.Opener = store
	return &opt
}

func TestRun(t *testing.T) {
	for _, prefetch := range []bool{false, true} {
		for _, threads := range []int{1, 4} {
			t.Run(fmt.Sprintf("threads=%d,prefetch=%v", threads, prefetch), func(t *testing.T) {
				store, genomes := newMemStore(10)
				opt := testOptions(store)
				opt.Threads = threads
				opt.Prefetch = prefetch
				opt.MaxOpenFeeds = 3
				var done int32
				opt.OnDone = func(time.Duration) { atomic.AddInt32(&done, 1) }

				results, err := Run(context.Background(), genomes, opt)
				require.NoError(t, err)
				require.Len(t, results, len(genomes))
				assert.Equal(t, int32(len(genomes)), atomic.LoadInt32(&done))

				for i, gs := range results {
					assert.Equal(t, genomes[i], gs.Genome)
					e := expectedSketch(t, store.data[gs.Genome.Location], gs.Genome.Name, opt)
					assert.Equal(t, e.Values, gs.Sketch.Values)
					assert.Equal(t, gs.Genome.Name, gs.Sketch.Name)
				}
			})
		}
	}
}

func TestRetry(t *testing.T) {
	store, genomes := newMemStore(4)
	store.fails[genomes[1].Location] = 2 // succeeds on the third attempt
	store.fails[genomes[2].Location] = 100

	opt := testOptions(store)
	opt.Threads = 2
	results, err := Run(context.Background(), genomes, opt)
	require.NoError(t, err)
	require.Len(t, results, 3)

	names := []string{}
	for _, gs := range results {
		names = append(names, gs.Genome.Name)
	}
	assert.Equal(t, []string{"g0", "g1", "g3"}, names)
	assert.Equal(t, 3, store.opens[genomes[1].Location])
	assert.Equal(t, 5, store.opens[genomes[2].Location])
}

type flakyReader struct {
	r     io.Reader
	after int
}

func (f *flakyReader) Read(p []byte) (int, error) {
	if f.after <= 0 {
		return 0, io.ErrUnexpectedEOF
	}
	if len(p) > f.after {
		p = p[:f.after]
	}
	n, err := f.r.Read(p)
	f.after -= n
	return n, err
}

func TestRetryStreamError(t *testing.T) {
	store, genomes := newMemStore(1)
	var opens int32
	opener := source.OpenerFunc(func(ctx context.Context, location string) (io.ReadCloser, error) {
		rc, _ := store.Open(ctx, location)
		if atomic.AddInt32(&opens, 1) == 1 {
			return io.NopCloser(&flakyReader{r: rc, after: 1000}), nil
		}
		return rc, nil
	})

	opt := testOptions(opener)
	results, err := Run(context.Background(), genomes, opt)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&opens))

	e := expectedSketch(t, store.data[genomes[0].Location], "g0", opt)
	assert.Equal(t, e.Values, results[0].Sketch.Values)
}

func TestFatal(t *testing.T) {
	store, genomes := newMemStore(20)
	failure := errors.New("out of disk")
	opener := source.OpenerFunc(func(ctx context.Context, location string) (io.ReadCloser, error) {
		if location == genomes[3].Location {
			return nil, failure
		}
		return store.Open(ctx, location)
	})

	opt := testOptions(opener)
	opt.Threads = 3
	results, err := Run(context.Background(), genomes, opt)
	var fe *FatalError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, genomes[3], fe.Genome)
	assert.ErrorIs(t, err, failure)

	// finished genomes are kept
	require.Less(t, len(results), len(genomes))
	for _, gs := range results {
		assert.NotEqual(t, genomes[3], gs.Genome)
		e := expectedSketch(t, store.data[gs.Genome.Location], gs.Genome.Name, opt)
		assert.Equal(t, e.Values, gs.Sketch.Values, gs.Genome.Name)
	}
}

func TestPanic(t *testing.T) {
	store, genomes := newMemStore(3)
	opener := source.OpenerFunc(func(ctx context.Context, location string) (io.ReadCloser, error) {
		if location == genomes[1].Location {
			panic("boom")
		}
		return store.Open(ctx, location)
	})

	results, err := Run(context.Background(), genomes, testOptions(opener))
	var fe *FatalError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, genomes[1], fe.Genome)
	assert.Contains(t, err.Error(), "boom")

	require.Len(t, results, 1)
	assert.Equal(t, genomes[0], results[0].Genome)
	assert.Equal(t, 0, store.opens[genomes[2].Location])
}

// gatedReader returns a few bytes on the first call, and blocks
// the second call until gate is closed.
type gatedReader struct {
	r       io.Reader
	calls   int
	reading chan struct{}
	gate    chan struct{}
	eof     atomic.Bool
}

func (g *gatedReader) Read(p []byte) (int, error) {
	g.calls++
	switch g.calls {
	case 1:
		close(g.reading)
		if len(p) > 100 {
			p = p[:100]
		}
	case 2:
		<-g.gate
	}
	n, err := g.r.Read(p)
	if err == io.EOF {
		g.eof.Store(true)
	}
	return n, err
}

func TestFatalWhileReading(t *testing.T) {
	store, genomes := newMemStore(6)
	gr := &gatedReader{
		r:       strings.NewReader(store.data[genomes[0].Location]),
		reading: make(chan struct{}),
		gate:    make(chan struct{}),
	}
	failure := errors.New("bad record")
	opener := source.OpenerFunc(func(ctx context.Context, location string) (io.ReadCloser, error) {
		switch location {
		case genomes[0].Location:
			return io.NopCloser(gr), nil
		case genomes[1].Location:
			// fail while g0 is waiting for more data
			<-gr.reading
			time.AfterFunc(50*time.Millisecond, func() { close(gr.gate) })
			return nil, failure
		}
		return store.Open(ctx, location)
	})

	opt := testOptions(opener)
	opt.Threads = 2
	results, err := Run(context.Background(), genomes, opt)

	var fe *FatalError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, genomes[1], fe.Genome)
	assert.ErrorIs(t, err, failure)

	assert.True(t, gr.eof.Load())
	require.Len(t, results, 1)
	assert.Equal(t, genomes[0], results[0].Genome)
	e := expectedSketch(t, store.data[genomes[0].Location], "g0", opt)
	assert.Equal(t, e.Values, results[0].Sketch.Values)

	for _, gn := range genomes[2:] {
		assert.Equal(t, 0, store.opens[gn.Location], gn.Name)
	}
}

func TestKeepAmbiguous(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	b := []byte(randFasta(r, 1, 3000))
	for i := 10; i < len(b); i += 31 {
		if b[i] != '\n' {
			b[i] = 'N'
		}
	}
	store, genomes := newMemStore(1)
	store.data[genomes[0].Location] = string(b)

	opt := testOptions(store)
	skipped, err := Run(context.Background(), genomes, opt)
	require.NoError(t, err)
	require.Len(t, skipped, 1)

	opt.SkipN = false
	kept, err := Run(context.Background(), genomes, opt)
	require.NoError(t, err)
	require.Len(t, kept, 1)

	e := expectedSketch(t, string(b), "g0", opt)
	assert.Equal(t, e.Values, kept[0].Sketch.Values)
	assert.Greater(t, len(kept[0].Sketch.Values), len(skipped[0].Sketch.Values))
	for _, v := range skipped[0].Sketch.Values {
		assert.Contains(t, kept[0].Sketch.Values, v)
	}
}

func TestCanceled(t *testing.T) {
	store, genomes := newMemStore(3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := Run(ctx, genomes, testOptions(store))
	assert.Nil(t, results)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInvalidOptions(t *testing.T) {
	store, genomes := newMemStore(1)
	opt := testOptions(store)
	opt.K = 0
	_, err := Run(context.Background(), genomes, opt)
	assert.ErrorIs(t, err, kmer.ErrInvalidK)

	opt = testOptions(store)
	opt.Sketch.Scale = 0
	_, err = Run(context.Background(), genomes, opt)
	assert.ErrorIs(t, err, sketch.ErrInvalidScale)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&source.Error{Location: "x", Err: io.EOF}))
	assert.True(t, IsTransient(fmt.Errorf("wrapped: %w", &kmer.StreamError{Err: io.EOF})))
	assert.False(t, IsTransient(errors.New("other")))
	assert.False(t, IsTransient(nil))
}
