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
	"bufio"
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/husonlab/fmhdist/fmhdist/source"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

// ErrPrefetcherClosed is returned by feeds of a closed Prefetcher.
var ErrPrefetcherClosed = errors.New("pipeline: prefetcher closed")

// number of lines buffered per feed
const feedLines = 1024

const idleInterval = time.Millisecond

// Prefetcher reads lines of many streams ahead of their consumers,
// in a single goroutine, round-robin over registered feeds.
// At most maxOpen streams are open at the same time,
// feeds waiting for a slot are opened in no particular order.
type Prefetcher struct {
	opener source.Opener

	waiting sync.Map // *Feed, registered but not opened
	feeds   sync.Map // *Feed, opened

	sem  *semaphore.Weighted
	wake chan struct{}

	closed  atomic.Bool
	running atomic.Bool
	done    chan struct{}
}

// NewPrefetcher creates a Prefetcher. Call Run to start it.
func NewPrefetcher(opener source.Opener, maxOpen int) *Prefetcher {
	if maxOpen < 1 {
		maxOpen = 1
	}
	return &Prefetcher{
		opener: opener,
		sem:    semaphore.NewWeighted(int64(maxOpen)),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Feed is the consumer side of a prefetched stream.
// It is an io.ReadCloser, and must be closed after use.
type Feed struct {
	Location string

	p     *Prefetcher
	lines chan []byte
	err   error // set before lines is closed

	rc io.ReadCloser
	br *bufio.Reader

	released atomic.Bool
	finished atomic.Bool
	rest     []byte
}

// Open registers a location and returns its Feed,
// so a Prefetcher could be used as a source.Opener.
// Errors of opening the stream are returned by reading the Feed.
func (p *Prefetcher) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if p.closed.Load() {
		return nil, ErrPrefetcherClosed
	}
	return p.Register(location), nil
}

// Register adds a location to prefetch.
func (p *Prefetcher) Register(location string) *Feed {
	f := &Feed{
		Location: location,
		p:        p,
		lines:    make(chan []byte, feedLines),
	}
	p.waiting.Store(f, struct{}{})
	if p.closed.Load() {
		if _, ok := p.waiting.LoadAndDelete(f); ok {
			f.finish(ErrPrefetcherClosed)
		}
		return f
	}
	p.signal()
	return f
}

func (p *Prefetcher) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run reads streams until Close is called or ctx is done.
func (p *Prefetcher) Run(ctx context.Context) {
	p.running.Store(true)
	defer close(p.done)

	for {
		if p.closed.Load() || ctx.Err() != nil {
			p.closed.Store(true)
			p.shutdown()
			return
		}

		var busy bool

		p.waiting.Range(func(key, _ any) bool {
			f := key.(*Feed)
			if f.released.Load() {
				if _, ok := p.waiting.LoadAndDelete(f); ok {
					f.finish(nil)
				}
				return true
			}
			if !p.sem.TryAcquire(1) {
				return false
			}
			if _, ok := p.waiting.LoadAndDelete(f); !ok {
				p.sem.Release(1)
				return true
			}
			busy = true

			rc, err := p.opener.Open(ctx, f.Location)
			if err != nil {
				p.sem.Release(1)
				f.finish(err)
				return true
			}
			f.rc = rc
			f.br = bufio.NewReaderSize(rc, 65536)
			p.feeds.Store(f, struct{}{})
			return true
		})

		p.feeds.Range(func(key, _ any) bool {
			f := key.(*Feed)
			if f.released.Load() {
				p.retire(f, nil)
				busy = true
				return true
			}
			if p.fill(f) {
				busy = true
			}
			return true
		})

		if !busy {
			select {
			case <-p.wake:
			case <-ctx.Done():
			case <-time.After(idleInterval):
			}
		}
	}
}

// fill reads lines into the free buffer of a feed.
// Sends never block as the Prefetcher is the only sender.
func (p *Prefetcher) fill(f *Feed) bool {
	var progressed bool
	for len(f.lines) < cap(f.lines) {
		line, err := f.br.ReadBytes('\n')
		if len(line) > 0 {
			f.lines <- line
			progressed = true
		}
		if err != nil {
			if err == io.EOF {
				err = nil
			} else {
				err = &source.Error{Location: f.Location, Err: err}
			}
			p.retire(f, err)
			return true
		}
	}
	return progressed
}

func (p *Prefetcher) retire(f *Feed, err error) {
	p.feeds.Delete(f)
	f.rc.Close()
	p.sem.Release(1)
	f.finish(err)
}

func (p *Prefetcher) shutdown() {
	p.waiting.Range(func(key, _ any) bool {
		f := key.(*Feed)
		if _, ok := p.waiting.LoadAndDelete(f); ok {
			f.finish(ErrPrefetcherClosed)
		}
		return true
	})
	p.feeds.Range(func(key, _ any) bool {
		p.retire(key.(*Feed), ErrPrefetcherClosed)
		return true
	})
}

// Close stops the Prefetcher, and waits for Run to return.
// Unfinished feeds fail with ErrPrefetcherClosed.
func (p *Prefetcher) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.signal()
	if p.running.Load() {
		<-p.done
	}
	return nil
}

func (f *Feed) finish(err error) {
	f.err = err
	f.finished.Store(true)
	close(f.lines)
}

// Ready tells if Line would not block.
func (f *Feed) Ready() bool {
	return len(f.lines) > 0 || f.finished.Load()
}

// Line returns the next line including the line break.
// It returns io.EOF at the end of the stream.
func (f *Feed) Line() ([]byte, error) {
	line, ok := <-f.lines
	if !ok {
		if f.err != nil {
			return nil, f.err
		}
		return nil, io.EOF
	}
	f.p.signal()
	return line, nil
}

// Read implements io.Reader.
func (f *Feed) Read(b []byte) (int, error) {
	if len(f.rest) == 0 {
		line, err := f.Line()
		if err != nil {
			return 0, err
		}
		f.rest = line
	}
	n := copy(b, f.rest)
	f.rest = f.rest[n:]
	return n, nil
}

// Close releases the feed.
func (f *Feed) Close() error {
	if !f.released.Swap(true) {
		f.p.signal()
	}
	return nil
}
