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
	"path/filepath"
	"regexp"
	"strings"

	"github.com/husonlab/fmhdist/fmhdist/genome"
	"github.com/husonlab/fmhdist/fmhdist/sketch"
	"github.com/husonlab/fmhdist/fmhdist/store"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// inputGenomes collects input items from positional arguments, a list
// file given by -X/--infile-list (location[,name[,size]] per line), and
// optionally files in a directory matching a regular expression.
func inputGenomes(cmd *cobra.Command, args []string, inDir string, reFile *regexp.Regexp, threads int) ([]*genome.Genome, error) {
	genomes := make([]*genome.Genome, 0, len(args))

	if inDir != "" {
		files, err := getFileListFromDir(inDir, reFile, threads)
		if err != nil {
			return nil, errors.Wrapf(err, "walking dir: %s", inDir)
		}
		for _, file := range files {
			genomes = append(genomes, &genome.Genome{Name: genome.NameOf(file), Location: file})
		}
	}

	for _, arg := range args {
		if !strings.Contains(arg, "://") {
			if _, err := os.Stat(arg); err != nil {
				return nil, errors.Wrapf(err, "check file")
			}
		}
		genomes = append(genomes, &genome.Genome{Name: genome.NameOf(arg), Location: arg})
	}

	if infileList := getFlagString(cmd, "infile-list"); infileList != "" {
		list, err := genome.ReadList(infileList)
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			log.Warningf("no items found in file list: %s", infileList)
		}
		genomes = append(genomes, list...)
	}

	return genomes, nil
}

// checkUniqueNames makes sure names can be used as file names and labels.
func checkUniqueNames(genomes []*genome.Genome) error {
	names := make(map[string]*genome.Genome, len(genomes))
	for _, g := range genomes {
		if g.Name == "" {
			return fmt.Errorf("empty name: %s", g.Location)
		}
		if strings.ContainsAny(g.Name, "/\\\t\r\n") {
			return fmt.Errorf("invalid characters in name: %q", g.Name)
		}
		if g2, ok := names[g.Name]; ok {
			return fmt.Errorf("duplicated name %q: %s and %s, please set names in a list file (-X)",
				g.Name, g2.Location, g.Location)
		}
		names[g.Name] = g
	}
	return nil
}

// sketchName is the label of a sketch file without a given name.
func sketchName(g *genome.Genome) string {
	if g.Name != genome.NameOf(g.Location) {
		return g.Name
	}
	name, e1, _ := filepathTrimExtension(filepath.Base(g.Location), nil)
	if e1 == store.SketchFileExt {
		return name
	}
	return g.Name
}

// loadSketches reads sketch files in parallel, keeping the order.
func loadSketches(ctx context.Context, list []*genome.Genome, threads int) ([]*sketch.Sketch, error) {
	sketches := make([]*sketch.Sketch, len(list))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	for i, item := range list {
		if gctx.Err() != nil {
			break
		}
		i, item := i, item
		g.Go(func() error {
			sk, err := sketch.NewFromFile(item.Location)
			if err != nil {
				return errors.Wrapf(err, "read sketch file: %s", item.Location)
			}
			sk.Name = sketchName(item)
			sketches[i] = sk
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sketches, ctx.Err()
}

// compileFileRegexp compiles the pattern of input files, case ignored.
func compileFileRegexp(reFileStr string) (*regexp.Regexp, error) {
	if !reIgnoreCase.MatchString(reFileStr) {
		reFileStr = reIgnoreCaseStr + reFileStr
	}
	re, err := regexp.Compile(reFileStr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse regular expression for matching file: %s", reFileStr)
	}
	return re, nil
}

// fillGenomeSizes counts bases of local genomes with unknown sizes.
// Failures are left to the sketching step.
func fillGenomeSizes(ctx context.Context, genomes []*genome.Genome, threads int) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	for _, gn := range genomes {
		if gctx.Err() != nil {
			break
		}
		if gn.Size > 0 || strings.Contains(gn.Location, "://") || isStdin(gn.Location) {
			continue
		}
		gn := gn
		g.Go(func() error {
			size, err := genome.SizeOf(gn.Location)
			if err != nil {
				log.Warningf("failed to count bases of %s: %s", gn, err)
				return nil
			}
			gn.Size = size
			return nil
		})
	}
	g.Wait()
}
