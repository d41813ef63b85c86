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
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Statistics of sketch sizes",
	Long: `Statistics of sketch sizes

Input sketch files are given like "fmhdist dist".

Output (tab-delimited):
  1. default: name, k, s, seed, and number of hash values of each sketch.
  2. -S/--summary: number of sketches, and mean, standard deviation,
     minimum, median and maximum of sketch sizes.

A histogram of sketch sizes can be saved with --plot, the image format is
decided by the file extension, e.g., .png, .svg, or .pdf.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		outFile := getFlagString(cmd, "out-file")
		summary := getFlagBool(cmd, "summary")
		plotFile := getFlagString(cmd, "plot")
		bins := getFlagPositiveInt(cmd, "bins")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		list, err := inputGenomes(cmd, args, "", nil, opt.NumCPUs)
		checkError(err)
		if len(list) == 0 {
			checkError(fmt.Errorf("sketch files needed"))
		}
		sketches, err := loadSketches(ctx, list, opt.NumCPUs)
		checkError(err)

		sizes := make([]float64, len(sketches))
		for i, sk := range sketches {
			sizes[i] = float64(len(sk.Values))
		}

		outfh, gw, w, err := outStream(outFile, strings.HasSuffix(outFile, ".gz"), opt.CompressionLevel)
		checkError(err)
		defer func() {
			outfh.Flush()
			if gw != nil {
				gw.Close()
			}
			w.Close()
		}()

		if summary {
			s := computeSizeStats(sizes)
			fmt.Fprintf(outfh, "sketches\tmean\tstdev\tmin\tmedian\tmax\n")
			fmt.Fprintf(outfh, "%d\t%.2f\t%.2f\t%.0f\t%.1f\t%.0f\n", s.N, s.Mean, s.Stdev, s.Min, s.Median, s.Max)
		} else {
			fmt.Fprintf(outfh, "name\tk\ts\tseed\tsize\n")
			for _, sk := range sketches {
				fmt.Fprintf(outfh, "%s\t%d\t%d\t%d\t%d\n", sk.Name, sk.K, sk.S, sk.Seed, len(sk.Values))
			}
		}

		if plotFile != "" {
			checkError(plotSizeHistogram(sizes, bins, getFlagString(cmd, "plot-title"), plotFile))
			if opt.Verbose {
				log.Infof("histogram saved to %s", plotFile)
			}
		}
	},
}

func init() {
	RootCmd.AddCommand(statsCmd)

	statsCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file, supports the ".gz" suffix ("-" for stdout).`))

	statsCmd.Flags().BoolP("summary", "S", false,
		formatFlagUsage(`Only output the summary of all sketches.`))

	statsCmd.Flags().StringP("plot", "", "",
		formatFlagUsage(`Save a histogram of sketch sizes to this file.`))

	statsCmd.Flags().IntP("bins", "", 20,
		formatFlagUsage(`Number of bins of the histogram.`))

	statsCmd.Flags().StringP("plot-title", "", "Sketch sizes",
		formatFlagUsage(`Title of the histogram.`))

	statsCmd.SetUsageTemplate(usageTemplate("{<sketch files> | -X <sketch list>}"))
}
