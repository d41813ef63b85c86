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

	"github.com/husonlab/fmhdist/fmhdist/store"
	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Build a reference database of sketches",
	Long: `Build a reference database of sketches

Input genomes are given like "fmhdist sketch", a genome list file
(-X/--infile-list) with lines of location[,name[,size]] is recommended.

Files in the database directory:
  info.toml     sketching parameters and the number of genomes
  genomes.tsv   name, location and size of genomes
  sketches/     sketch files, in the order of genomes.tsv

Use "fmhdist ref-dist" to compare query sketches against the database.

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

		outDir := getFlagString(cmd, "out-dir")
		if outDir == "" {
			checkError(fmt.Errorf("flag -O/--out-dir is needed"))
		}
		force := getFlagBool(cmd, "force")

		popt := getPipelineOptions(cmd, opt)

		if opt.Verbose || opt.Log2File {
			log.Info("checking input files ...")
		}
		genomes := getInputGenomes(cmd, args, opt)
		if opt.Verbose || opt.Log2File {
			log.Infof("  %d genome(s) given", len(genomes))
		}

		makeOutDir(outDir, force, "database directory", opt.Verbose)
		db, err := store.Create(outDir, popt.K, &popt.Sketch)
		checkError(err)

		if opt.Verbose || opt.Log2File {
			log.Info()
			log.Infof("-------------------- [main parameters] --------------------")
			log.Infof("k-mer size: %d", popt.K)
			log.Infof("scaling factor: %d", popt.Sketch.Scale)
			log.Infof("hash function: %s, seed: %d", popt.Sketch.Hash, popt.Sketch.Seed)
			log.Infof("filtering unique k-mers: %v", popt.Sketch.FilterUnique)
			log.Infof("database directory: %s", outDir)
			log.Infof("-------------------- [main parameters] --------------------")
			log.Info()
			log.Info("computing sketches ...")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		results, errRun := sketchGenomes(ctx, genomes, popt, opt)

		for _, r := range results {
			checkError(db.Add(r.Genome, r.Sketch))
		}
		checkError(db.Close())
		checkError(errRun)

		if opt.Verbose || opt.Log2File {
			log.Infof("reference database with %d genomes saved: %s", db.Info().Genomes, outDir)
		}
	},
}

func init() {
	RootCmd.AddCommand(dbCmd)

	addSketchingFlags(dbCmd)

	dbCmd.Flags().StringP("out-dir", "O", "",
		formatFlagUsage(`Output database directory.`))

	dbCmd.Flags().BoolP("force", "", false,
		formatFlagUsage(`Overwrite existed output directory.`))

	dbCmd.SetUsageTemplate(usageTemplate("[-k <k>] [-s <scale>] {[-I <seqs dir>] | <seq files> | -X <genome list>} -O <db dir>"))
}
