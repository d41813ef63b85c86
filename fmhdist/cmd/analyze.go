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
	"fmt"
	"strings"

	"github.com/husonlab/fmhdist/fmhdist/coords"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Count retained k-mers in windows along genomes",
	Long: `Count retained k-mers in windows along genomes

Input:
  A coordinates file created by "fmhdist sketch -c" ("-" for stdin).

Output (CSV, no header):
  start,kmers,uniqueKmers

  A window of -w/--window positions starts at each retained k-mer.
  Positions are counted in the whole file including k-mers with N.
  uniqueKmers is the number of k-mers occurring once in the window.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		if len(args) > 1 {
			checkError(fmt.Errorf("only one coordinates file is allowed"))
		}
		file := "-"
		if len(args) == 1 {
			file = args[0]
		}

		w := getFlagPositiveInt(cmd, "window")
		outFile := getFlagString(cmd, "out-file")

		list, err := coords.ReadFile(file)
		checkError(err)

		windows, err := coords.Windows(list, w)
		checkError(err)

		outfh, gw, fh, err := outStream(outFile, strings.HasSuffix(outFile, ".gz"), opt.CompressionLevel)
		checkError(err)
		defer func() {
			outfh.Flush()
			if gw != nil {
				gw.Close()
			}
			fh.Close()
		}()

		checkError(coords.Write(outfh, windows))

		if opt.Verbose {
			log.Infof("%d k-mers in %d windows of %d positions", len(list), len(windows), w)
		}
	},
}

func init() {
	RootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().IntP("window", "w", 2000,
		formatFlagUsage(`Window size.`))

	analyzeCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file, supports the ".gz" suffix ("-" for stdout).`))

	analyzeCmd.SetUsageTemplate(usageTemplate("[-w <window>] <coordinates file>"))
}
