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
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var sketchCmd = &cobra.Command{
	Use:   "sketch",
	Short: "Compute FracMinHash sketches of genomes",
	Long: `Compute FracMinHash sketches of genomes

Input:
  1. Sequence files in FASTA format, plain or compressed (gzip, xz, zstd,
     bzip2, lz4), given by positional arguments or -I/--in-dir.
  2. A genome list file given by -X/--infile-list, one genome per line:
       location[,name[,size]]
     Locations can be local files, http(s)/ftp URLs, s3://bucket/key, or
     minio://bucket/key. S3 credentials are read from the AWS default chain,
     and the MinIO server is set with environment variables:
       FMHDIST_MINIO_ENDPOINT, FMHDIST_MINIO_ACCESS_KEY,
       FMHDIST_MINIO_SECRET_KEY, FMHDIST_MINIO_SECURE.
  3. Sequences containing N/n are split, k-mers with N are skipped.

Output (-O/--out-dir):
  1. <name>.sketch        sketch in hexadecimal text.
  2. <name>.coordinates   coordinates of retained k-mers (-c/--coordinates):
       record,inFile,inRecord,inFileWithAmbiguous,inRecordWithAmbiguous,kmer
  3. <name>.kmers.tsv     hash values and canonical k-mers (--save-kmers).
  4. sketches.txt         list of sketch files for "fmhdist dist -X".

Genomes failing to be read after --retries attempts are skipped with a
warning. Other errors stop the program.

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

		// ---------------------------------------------------------------
		// flags

		outDir := getFlagString(cmd, "out-dir")
		if outDir == "" {
			checkError(fmt.Errorf("flag -O/--out-dir is needed"))
		}
		force := getFlagBool(cmd, "force")

		popt := getPipelineOptions(cmd, opt)
		popt.Sketch.SaveCoordinates = getFlagBool(cmd, "coordinates")
		popt.Sketch.SaveKmers = getFlagBool(cmd, "save-kmers")
		binary := getFlagBool(cmd, "binary")

		// ---------------------------------------------------------------
		// input

		if opt.Verbose || opt.Log2File {
			log.Info("checking input files ...")
		}
		genomes := getInputGenomes(cmd, args, opt)
		if opt.Verbose || opt.Log2File {
			log.Infof("  %d genome(s) given", len(genomes))
		}

		makeOutDir(outDir, force, "output directory", opt.Verbose)

		if opt.Verbose || opt.Log2File {
			log.Info()
			log.Infof("-------------------- [main parameters] --------------------")
			log.Infof("k-mer size: %d", popt.K)
			log.Infof("scaling factor: %d", popt.Sketch.Scale)
			log.Infof("hash function: %s, seed: %d", popt.Sketch.Hash, popt.Sketch.Seed)
			log.Infof("filtering unique k-mers: %v", popt.Sketch.FilterUnique)
			log.Infof("maximum attempts of reading a genome: %d", popt.MaxAttempts)
			log.Infof("prefetching: %v", popt.Prefetch)
			log.Infof("output directory: %s", outDir)
			log.Infof("-------------------- [main parameters] --------------------")
			log.Info()
			log.Info("computing sketches ...")
		}

		// ---------------------------------------------------------------

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		results, errRun := sketchGenomes(ctx, genomes, popt, opt)

		files, err := writeSketches(ctx, outDir, results, &popt.Sketch, binary, opt)
		checkError(err)

		checkError(writeSketchList(filepath.Join(outDir, FileSketchList), files, results, opt))
		checkError(errRun)

		if opt.Verbose || opt.Log2File {
			log.Infof("%d sketches saved to %s", len(results), outDir)
		}
	},
}

func init() {
	RootCmd.AddCommand(sketchCmd)

	addSketchingFlags(sketchCmd)

	// -----------------------------  output  -----------------------------

	sketchCmd.Flags().StringP("out-dir", "O", "",
		formatFlagUsage(`Output directory.`))

	sketchCmd.Flags().BoolP("force", "", false,
		formatFlagUsage(`Overwrite existed output directory.`))

	sketchCmd.Flags().BoolP("binary", "b", false,
		formatFlagUsage(`Save sketches in binary format instead of hex text.`))

	sketchCmd.Flags().BoolP("coordinates", "c", false,
		formatFlagUsage(`Save coordinates of retained k-mers.`))

	sketchCmd.Flags().BoolP("save-kmers", "", false,
		formatFlagUsage(`Save retained k-mers with their hash values.`))

	sketchCmd.SetUsageTemplate(usageTemplate("[-k <k>] [-s <scale>] {[-I <seqs dir>] | <seq files> | -X <genome list>} -O <out dir>"))
}
