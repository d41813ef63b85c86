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
	"github.com/husonlab/fmhdist/fmhdist/store"
	"github.com/spf13/cobra"
)

var refDistCmd = &cobra.Command{
	Use:   "ref-dist",
	Short: "Compute distances of query sketches and close references in a database",
	Long: `Compute distances of query sketches and close references in a database

Steps:
  1. Query sketches are read like "fmhdist dist", and must be compatible
     with the reference database created by "fmhdist db".
  2. References within a Jaccard distance of --max-dist to any query
     are selected.
  3. Pairwise distances of queries and selected references are written
     like "fmhdist dist", queries first.

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

		dbDir := getFlagString(cmd, "db")
		if dbDir == "" {
			checkError(fmt.Errorf("flag -d/--db needed"))
		}
		maxDist := getFlagNonNegativeFloat64(cmd, "max-dist")
		mopt := getMatrixOptions(cmd)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// ---------------------------------------------------------------
		// references

		if opt.Verbose || opt.Log2File {
			log.Infof("loading reference database: %s", dbDir)
		}
		db, err := store.Open(dbDir)
		checkError(err)
		info := db.Info()
		refs, err := db.Sketches(ctx, opt.NumCPUs)
		checkError(err)
		checkError(db.Close())
		if opt.Verbose || opt.Log2File {
			log.Infof("  %d references, k: %d, scaling factor: %d, seed: %d, hash: %s",
				len(refs), info.K, info.Scale, info.Seed, info.Hash)
		}

		// ---------------------------------------------------------------
		// queries

		list, err := inputGenomes(cmd, args, "", nil, opt.NumCPUs)
		checkError(err)
		if len(list) == 0 {
			checkError(fmt.Errorf("query sketch files needed"))
		}
		queries, err := loadSketches(ctx, list, opt.NumCPUs)
		checkError(err)
		if opt.Verbose || opt.Log2File {
			log.Infof("%d queries loaded", len(queries))
		}

		// ---------------------------------------------------------------

		if opt.Verbose || opt.Log2File {
			log.Infof("finding references within a Jaccard distance of %f ...", maxDist)
		}
		selected, err := selectReferences(ctx, queries, refs, maxDist, opt.NumCPUs)
		checkError(err)
		if opt.Verbose || opt.Log2File {
			log.Infof("  %d references selected", len(selected))
		}

		sketches := make([]*sketch.Sketch, 0, len(queries)+len(selected))
		sketches = append(sketches, queries...)
		sketches = append(sketches, selected...)

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
	RootCmd.AddCommand(refDistCmd)

	refDistCmd.Flags().StringP("db", "d", "",
		formatFlagUsage(`Reference database directory created by "fmhdist db".`))

	refDistCmd.Flags().Float64P("max-dist", "m", 0.4,
		formatFlagUsage(`Maximum Jaccard distance between a query and a selected reference.`))

	addMatrixFlags(refDistCmd)

	refDistCmd.SetUsageTemplate(usageTemplate("-d <db dir> {<sketch files> | -X <sketch list>} -o <out file>"))
}
