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
	"os"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// progress is a progress bar of processed items, fed with the time
// spent on each item.
type progress struct {
	pbs *mpb.Progress
	bar *mpb.Bar

	chDuration   chan time.Duration
	doneDuration chan int
}

func newProgress(name string, total int, threads int) *progress {
	p := &progress{}
	p.pbs = mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
	p.bar = p.pbs.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name), C: decor.DindentRight}),
			decor.Name("", decor.WCSyncSpaceR),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
			decor.EwmaETA(decor.ET_STYLE_GO, 10),
			decor.OnComplete(decor.Name(""), ". done"),
		),
	)

	p.chDuration = make(chan time.Duration, threads)
	p.doneDuration = make(chan int)
	go func() {
		for t := range p.chDuration {
			p.bar.EwmaIncrement(t)
		}
		p.doneDuration <- 1
	}()
	return p
}

// Done counts one item. It is safe for concurrent use.
func (p *progress) Done(t time.Duration) {
	p.chDuration <- t
}

// Wait stops the bar, Done must not be called after it.
func (p *progress) Wait() {
	close(p.chDuration)
	<-p.doneDuration
	if !p.bar.Completed() {
		p.bar.Abort(false)
	}
	p.pbs.Wait()
}
