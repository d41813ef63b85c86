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

// Package pipeline sketches many genomes concurrently.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/husonlab/fmhdist/fmhdist/genome"
	"github.com/husonlab/fmhdist/fmhdist/kmer"
	"github.com/husonlab/fmhdist/fmhdist/sketch"
	"github.com/husonlab/fmhdist/fmhdist/source"
	"github.com/pkg/errors"
	"github.com/shenwei356/go-logging"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// GenomeSketch pairs a genome with its sketch.
type GenomeSketch struct {
	Genome *genome.Genome
	Sketch *sketch.Sketch
}

// FetchError means a genome could not be read after all attempts.
// The genome is skipped, and the run goes on.
type FetchError struct {
	Genome   *genome.Genome
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to read %s after %d attempt(s): %s", e.Genome, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// FatalError stops the whole run.
type FatalError struct {
	Genome *genome.Genome
	Err    error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("failed to sketch %s: %s", e.Genome, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Options contains the options of a run.
type Options struct {
	Threads int
	K       int
	Sketch  sketch.Options
	// skip k-mers containing bases other than A, C, G, T
	SkipN   bool

	// attempts of reading a genome before giving up
	MaxAttempts int
	// maximum number of genome streams opened per second, 0 for no limit
	FetchRate float64

	// read genomes with a Prefetcher
	Prefetch     bool
	MaxOpenFeeds int

	// defaults to source.NewResolver()
	Opener source.Opener

	Log *logging.Logger
	// called after each genome is processed, successfully or not
	OnDone func(time.Duration)
}

// DefaultOptions is the default options.
var DefaultOptions = Options{
	Threads:      1,
	K:            21,
	Sketch:       sketch.DefaultOptions,
	SkipN:        true,
	MaxAttempts:  5,
	MaxOpenFeeds: 16,
}

type runner struct {
	opt     *Options
	open    func(ctx context.Context, location string) (io.ReadCloser, error)
	limiter *rate.Limiter
	log     *logging.Logger
}

// Run sketches genomes with opt.Threads workers.
//
// A genome failing with transient errors (opening or reading its
// stream) is retried up to opt.MaxAttempts times, then skipped with a
// warning. Any other error, or a panic, is a *FatalError: the first one
// stops dispatching new genomes, genomes being sketched are finished,
// and their sketches are returned along with the error.
// Canceling ctx interrupts reading and returns no results.
// Sketches are returned in the order of genomes.
func Run(ctx context.Context, genomes []*genome.Genome, opt *Options) ([]*GenomeSketch, error) {
	if opt == nil {
		opt = &DefaultOptions
	}
	if opt.K < 1 {
		return nil, errors.Wrapf(kmer.ErrInvalidK, "%d", opt.K)
	}
	if err := sketch.CheckOptions(&opt.Sketch); err != nil {
		return nil, err
	}

	threads := opt.Threads
	if threads < 1 {
		threads = 1
	}
	attempts := opt.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	r := &runner{opt: opt, log: opt.Log}
	if r.log == nil {
		r.log = logging.MustGetLogger("fmhdist")
	}
	opener := opt.Opener
	if opener == nil {
		opener = source.NewResolver()
	}
	r.open = opener.Open
	if opt.FetchRate > 0 {
		burst := int(opt.FetchRate)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(opt.FetchRate), burst)
	}

	if opt.Prefetch {
		p := NewPrefetcher(opener, opt.MaxOpenFeeds)
		pctx, cancel := context.WithCancel(ctx)
		go p.Run(pctx)
		defer p.Close()
		defer cancel()
		r.open = p.Open
	}

	results := make([]*GenomeSketch, len(genomes))
	var mu sync.Mutex

	// the first fatal error, set once
	var fatal atomic.Pointer[FatalError]
	setFatal := func(err error) {
		var fe *FatalError
		if errors.As(err, &fe) {
			fatal.CompareAndSwap(nil, fe)
		}
	}

	var g errgroup.Group
	g.SetLimit(threads)
	for i, gn := range genomes {
		if fatal.Load() != nil || ctx.Err() != nil {
			break
		}
		i, gn := i, gn
		g.Go(func() (err error) {
			defer func() {
				if v := recover(); v != nil {
					err = &FatalError{Genome: gn, Err: errors.Errorf("panic: %v", v)}
				}
				setFatal(err)
			}()
			// a slot freed by a failed worker
			if fatal.Load() != nil {
				return nil
			}
			if err = ctx.Err(); err != nil {
				return err
			}

			start := time.Now()
			sk, err := r.process(ctx, gn, attempts)
			if opt.OnDone != nil {
				defer opt.OnDone(time.Since(start))
			}
			if err != nil {
				var fe *FetchError
				if errors.As(err, &fe) {
					r.log.Warningf("%s, skipped", fe)
					return nil
				}
				return err
			}

			mu.Lock()
			results[i] = &GenomeSketch{Genome: gn, Sketch: sk}
			mu.Unlock()
			return nil
		})
	}

	werr := g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	list := make([]*GenomeSketch, 0, len(results))
	for _, gs := range results {
		if gs != nil {
			list = append(list, gs)
		}
	}
	if fe := fatal.Load(); fe != nil {
		return list, fe
	}
	if werr != nil {
		return nil, werr
	}
	return list, nil
}

// process sketches a genome with retries.
func (r *runner) process(ctx context.Context, g *genome.Genome, attempts int) (*sketch.Sketch, error) {
	var err error
	var sk *sketch.Sketch
	for a := 1; a <= attempts; a++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		sk, err = r.sketch(ctx, g)
		if err == nil {
			return sk, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !IsTransient(err) {
			return nil, &FatalError{Genome: g, Err: err}
		}
		if a < attempts {
			r.log.Warningf("attempt %d/%d of reading %s failed: %s", a, attempts, g, err)
		}
	}
	return nil, &FetchError{Genome: g, Attempts: attempts, Err: err}
}

// sketch makes one attempt.
func (r *runner) sketch(ctx context.Context, g *genome.Genome) (*sketch.Sketch, error) {
	rc, err := r.open(ctx, g.Location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	it, err := kmer.NewIterator(&ctxReader{ctx: ctx, r: rc}, r.opt.K, r.opt.SkipN)
	if err != nil {
		return nil, err
	}

	opt := r.opt.Sketch
	if opt.FilterUnique && opt.FilterCapacity == 0 && g.Size > 0 {
		opt.FilterCapacity = uint(g.Size)
	}
	return sketch.Compute(g.Name, it, &opt)
}

// IsTransient tells if an error is worth a retry.
func IsTransient(err error) bool {
	var se *source.Error
	var ke *kmer.StreamError
	return errors.As(err, &se) || errors.As(err, &ke)
}

// ctxReader stops reading once the context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
