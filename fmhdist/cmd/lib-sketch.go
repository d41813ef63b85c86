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
	"io"
	"path/filepath"
	"strings"

	"github.com/husonlab/fmhdist/fmhdist/genome"
	"github.com/husonlab/fmhdist/fmhdist/pipeline"
	"github.com/husonlab/fmhdist/fmhdist/sketch"
	"github.com/husonlab/fmhdist/fmhdist/store"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// FileSketchList is the list of sketch files in an output directory,
// which can be used as the input of "fmhdist dist -X".
const FileSketchList = "sketches.txt"

const (
	extCoordinates = ".coordinates"
	extKmers       = ".kmers.tsv"
)

// addSketchingFlags adds flags shared by commands creating sketches.
func addSketchingFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("kmer", "k", pipeline.DefaultOptions.K,
		formatFlagUsage(`K-mer size.`))

	cmd.Flags().IntP("scale", "s", sketch.DefaultOptions.Scale,
		formatFlagUsage(`Scaling factor, about 1/s of k-mers are kept.`))

	cmd.Flags().IntP("seed", "", sketch.DefaultOptions.Seed,
		formatFlagUsage(`Seed of the hash function.`))

	cmd.Flags().StringP("hash", "", sketch.DefaultHash,
		formatFlagUsage(fmt.Sprintf(`Hash function. Available: %s.`, strings.Join(sketch.HashNames(), ", "))))

	cmd.Flags().BoolP("amino-acid", "a", false,
		formatFlagUsage(`Input sequences are protein sequences, canonical k-mers are not used.`))

	cmd.Flags().BoolP("keep-ambiguous", "", false,
		formatFlagUsage(`Keep k-mers containing ambiguous bases (N), which are skipped by default.`))

	cmd.Flags().BoolP("filter-unique", "u", false,
		formatFlagUsage(`Only keep k-mers occurring at least twice, detected with a Bloom filter.`))

	cmd.Flags().Float64P("filter-fpr", "", sketch.DefaultOptions.FilterFPR,
		formatFlagUsage(`False positive rate of the Bloom filter used by -u/--filter-unique.`))

	// -----------------------------  fetching   -----------------------------

	cmd.Flags().IntP("retries", "", pipeline.DefaultOptions.MaxAttempts,
		formatFlagUsage(`Maximum attempts of reading a genome, which is skipped after that.`))

	cmd.Flags().Float64P("fetch-rate", "", 0,
		formatFlagUsage(`Maximum number of genomes opened per second, 0 for no limit.`))

	cmd.Flags().BoolP("prefetch", "", false,
		formatFlagUsage(`Read genomes ahead of sketching, useful for remote files.`))

	cmd.Flags().IntP("max-open", "", pipeline.DefaultOptions.MaxOpenFeeds,
		formatFlagUsage(`Maximum number of genomes read ahead with --prefetch.`))

	// -----------------------------  input   -----------------------------

	cmd.Flags().StringP("in-dir", "I", "",
		formatFlagUsage(`Directory containing FASTA files. Directory symlinks are followed.`))

	cmd.Flags().StringP("file-regexp", "r", `\.(f[aq](st[aq])?|fna)(\.gz|\.xz|\.zst|\.bz2|\.lz4)?$`,
		formatFlagUsage(`Regular expression for matching sequence files in -I/--in-dir, case ignored.`))
}

// getPipelineOptions reads flags added by addSketchingFlags.
func getPipelineOptions(cmd *cobra.Command, opt *Options) *pipeline.Options {
	popt := &pipeline.Options{
		Threads: opt.NumCPUs,
		K:       getFlagPositiveInt(cmd, "kmer"),
		Sketch: sketch.Options{
			IsNucleotide: !getFlagBool(cmd, "amino-acid"),
			Scale:        getFlagPositiveInt(cmd, "scale"),
			Seed:         getFlagInt(cmd, "seed"),
			Hash:         getFlagString(cmd, "hash"),
			FilterUnique: getFlagBool(cmd, "filter-unique"),
			FilterFPR:    getFlagFloat64(cmd, "filter-fpr"),
		},
		SkipN:        !getFlagBool(cmd, "keep-ambiguous"),
		MaxAttempts:  getFlagPositiveInt(cmd, "retries"),
		FetchRate:    getFlagNonNegativeFloat64(cmd, "fetch-rate"),
		Prefetch:     getFlagBool(cmd, "prefetch"),
		MaxOpenFeeds: getFlagPositiveInt(cmd, "max-open"),
		Log:          log,
	}
	checkError(sketch.CheckOptions(&popt.Sketch))
	return popt
}

// getInputGenomes reads input genomes of commands creating sketches.
func getInputGenomes(cmd *cobra.Command, args []string, opt *Options) []*genome.Genome {
	inDir := getFlagString(cmd, "in-dir")
	reFile, err := compileFileRegexp(getFlagString(cmd, "file-regexp"))
	checkError(err)

	genomes, err := inputGenomes(cmd, args, inDir, reFile, opt.NumCPUs)
	checkError(err)
	if len(genomes) == 0 {
		checkError(fmt.Errorf("FASTA files needed, given by positional arguments, -X/--infile-list, or -I/--in-dir"))
	}
	checkError(checkUniqueNames(genomes))
	return genomes
}

// sketchGenomes runs the sketching pipeline with a progress bar.
// After a fatal error, sketches of finished genomes are still returned
// along with the error, so they can be saved before exiting.
func sketchGenomes(ctx context.Context, genomes []*genome.Genome, popt *pipeline.Options, opt *Options) ([]*pipeline.GenomeSketch, error) {
	if popt.Sketch.FilterUnique {
		if opt.Verbose || opt.Log2File {
			log.Info("counting bases of local genomes for sizing Bloom filters ...")
		}
		fillGenomeSizes(ctx, genomes, opt.NumCPUs)
	}

	var pb *progress
	if opt.Verbose {
		pb = newProgress("processed genomes: ", len(genomes), opt.NumCPUs)
		popt.OnDone = pb.Done
	}

	results, err := pipeline.Run(ctx, genomes, popt)
	if pb != nil {
		pb.Wait()
	}
	if err != nil {
		if len(results) > 0 {
			log.Warningf("sketching stopped, %d finished sketches will be saved", len(results))
		}
		return results, err
	}

	if len(results) < len(genomes) {
		log.Warningf("%d of %d genomes skipped", len(genomes)-len(results), len(genomes))
	}
	return results, nil
}

// writeSketches writes sketches, in hex text or binary, and optional
// k-mers and coordinates to a directory, and returns the paths of sketch files.
func writeSketches(ctx context.Context, outDir string, results []*pipeline.GenomeSketch, sopt *sketch.Options, binary bool, opt *Options) ([]string, error) {
	files := make([]string, len(results))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opt.NumCPUs)
	for i, r := range results {
		if gctx.Err() != nil {
			break
		}
		i, r := i, r
		g.Go(func() error {
			prefix := filepath.Join(outDir, r.Genome.Name)

			files[i] = prefix + store.SketchFileExt
			write := r.Sketch.WriteToFile
			if binary {
				write = r.Sketch.WriteBinaryFile
			}
			if err := write(files[i]); err != nil {
				return err
			}

			if sopt.SaveCoordinates {
				if err := writeWith(prefix+extCoordinates, opt, r.Sketch.WriteCoordinates); err != nil {
					return err
				}
			}
			if sopt.SaveKmers {
				if err := writeWith(prefix+extKmers, opt, r.Sketch.WriteKmers); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, ctx.Err()
}

// writeSketchList writes a list of sketch files: path,name per line.
func writeSketchList(file string, files []string, results []*pipeline.GenomeSketch, opt *Options) error {
	return writeWith(file, opt, func(w io.Writer) error {
		for i, f := range files {
			if _, err := fmt.Fprintf(w, "%s,%s\n", f, results[i].Genome.Name); err != nil {
				return err
			}
		}
		return nil
	})
}

// writeWith writes a file with a function.
func writeWith(file string, opt *Options, write func(w io.Writer) error) error {
	outfh, gw, w, err := outStream(file, strings.HasSuffix(file, ".gz"), opt.CompressionLevel)
	if err != nil {
		return err
	}
	if err = write(outfh); err != nil {
		w.Close()
		return errors.Wrapf(err, "write %s", file)
	}
	if err = outfh.Flush(); err != nil {
		return errors.Wrapf(err, "write %s", file)
	}
	if gw != nil {
		if err = gw.Close(); err != nil {
			return errors.Wrapf(err, "write %s", file)
		}
	}
	return w.Close()
}
