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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/husonlab/fmhdist/fmhdist/distance"
	"github.com/husonlab/fmhdist/fmhdist/sketch"
	"github.com/spf13/cobra"
)

var distCmd = &cobra.Command{
	Use:   "dist",
	Short: "Compute pairwise distances of sketches",
	Long: `Compute pairwise distances of sketches

Input:
  Sketch files created by "fmhdist sketch", given by positional arguments,
  or a list file (-X/--infile-list) with lines of path[,name], e.g., the
  sketches.txt in the output directory of "fmhdist sketch".
  All sketches must be created with the same k, scaling factor, and seed.

Output:
  <out-file>               Jaccard distances, 1 - (2j/(1+j))^(1/k)
  <out-file>.containment   containment distances, 1 - c^(1/k),
                           row i and column j is the distance of i in j.
  <out-file>.mash          Mash distances, -ln(2j/(1+j))/k, at most 1.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		var fhLog *os.File
		if opt.Log2File {
			fhLog = addLog(opt.LogFile, opt.Verbose)
		}

		timeStart := time.Now()
		defer func() {
			if opt.Verbose || opt.Log2File {
				log.Info()
				log.Infof("elapsed time: %s", time.Since(timeStart))
				log.Info()
			}
			if opt.Log2File {
				fhLog.Close()
			}
		}()

		mopt := getMatrixOptions(cmd)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// ---------------------------------------------------------------

		list, err := inputGenomes(cmd, args, "", nil, opt.NumCPUs)
		checkError(err)
		if len(list) == 0 {
			checkError(fmt.Errorf("sketch files needed"))
		}

		if opt.Verbose || opt.Log2File {
			log.Infof("reading %d sketch files ...", len(list))
		}
		sketches, err := loadSketches(ctx, list, opt.NumCPUs)
		checkError(err)
		checkError(sketch.CheckCompatibility(sketches...))

		if opt.Verbose || opt.Log2File {
			log.Infof("computing pairwise distances ...")
		}
		m, err := distance.Pairwise(ctx, sketches, opt.NumCPUs)
		checkError(err)

		if opt.Verbose || opt.Log2File {
			log.Infof("saving distance matrices:")
		}
		checkError(writeMatrices(m, mopt, opt))
	},
}

func init() {
	RootCmd.AddCommand(distCmd)

	addMatrixFlags(distCmd)

	distCmd.SetUsageTemplate(usageTemplate("{<sketch files> | -X <sketch list>} -o <out file>"))
}
