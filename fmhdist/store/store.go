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

// Package store manages a directory of reference genome sketches.
//
// Layout:
//
//	info.toml           sketching parameters and the number of genomes
//	genomes.tsv         name, location and size of genomes, in order
//	sketches/<i>.sketch sketch of the i-th genome, in hexadecimal text
package store

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/husonlab/fmhdist/fmhdist/genome"
	"github.com/husonlab/fmhdist/fmhdist/sketch"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/shenwei356/util/pathutil"
	"github.com/shenwei356/xopen"
	"golang.org/x/sync/errgroup"
)

// MainVersion is used to check compatibility of stores.
const MainVersion uint8 = 1

// MinorVersion is the minor version.
const MinorVersion uint8 = 0

// File names.
const (
	FileInfo      = "info.toml"
	FileGenomes   = "genomes.tsv"
	DirSketches   = "sketches"
	SketchFileExt = ".sketch"
)

// ErrVersionMismatch means the store is created by an incompatible version.
var ErrVersionMismatch = errors.New("store: version mismatch")

// ErrNotEmpty means the directory to create a store in is not empty.
var ErrNotEmpty = errors.New("store: directory not empty")

// ErrClosed means the store is closed.
var ErrClosed = errors.New("store: closed")

// Info holds the basic information of a store.
type Info struct {
	MainVersion  uint8 `toml:"main-version" comment:"Store format"`
	MinorVersion uint8 `toml:"minor-version"`

	K     int    `toml:"k" comment:"Sketching parameters"`
	Scale int    `toml:"s"`
	Seed  int    `toml:"seed"`
	Hash  string `toml:"hash"`

	Genomes int `toml:"genomes" comment:"Number of genomes"`
}

// ReadInfo reads an info file.
func ReadInfo(file string) (*Info, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrapf(err, "read info file: %s", file)
	}
	info := &Info{}
	if err = toml.Unmarshal(data, info); err != nil {
		return nil, errors.Wrapf(err, "parse info file: %s", file)
	}
	return info, nil
}

// WriteInfo writes an info file.
func WriteInfo(file string, info *Info) error {
	data, err := toml.Marshal(info)
	if err != nil {
		return errors.Wrap(err, "marshal info")
	}
	return errors.Wrapf(os.WriteFile(file, data, 0644), "write info file: %s", file)
}

// Store is a directory of sketches sharing the same parameters.
type Store struct {
	dir  string
	info Info

	writable bool
	closed   bool

	mu      sync.Mutex
	genomes []*genome.Genome
}

// Create creates a store in a new or empty directory.
// Sketches added later must match the parameters.
func Create(dir string, k int, opt *sketch.Options) (*Store, error) {
	existed, err := pathutil.DirExists(dir)
	if err != nil {
		return nil, errors.Wrap(err, dir)
	}
	if existed {
		empty, err := pathutil.IsEmpty(dir)
		if err != nil {
			return nil, errors.Wrap(err, dir)
		}
		if !empty {
			return nil, errors.Wrap(ErrNotEmpty, dir)
		}
	}
	if err = os.MkdirAll(filepath.Join(dir, DirSketches), 0777); err != nil {
		return nil, err
	}

	hash := opt.Hash
	if hash == "" {
		hash = sketch.DefaultHash
	}
	s := &Store{
		dir: dir,
		info: Info{
			MainVersion:  MainVersion,
			MinorVersion: MinorVersion,
			K:            k,
			Scale:        opt.Scale,
			Seed:         opt.Seed,
			Hash:         hash,
		},
		writable: true,
	}
	return s, WriteInfo(filepath.Join(dir, FileInfo), &s.info)
}

// Open opens an existing store for reading.
func Open(dir string) (*Store, error) {
	info, err := ReadInfo(filepath.Join(dir, FileInfo))
	if err != nil {
		return nil, err
	}
	if info.MainVersion != MainVersion {
		return nil, errors.Wrapf(ErrVersionMismatch, "%d (store) != %d (tool), please re-create the store",
			info.MainVersion, MainVersion)
	}

	genomes, err := readGenomes(filepath.Join(dir, FileGenomes))
	if err != nil {
		return nil, err
	}
	if len(genomes) != info.Genomes {
		return nil, errors.Errorf("store: %d genomes expected, %d found in %s", info.Genomes, len(genomes), FileGenomes)
	}

	return &Store{dir: dir, info: *info, genomes: genomes}, nil
}

// Dir returns the directory of the store.
func (s *Store) Dir() string { return s.dir }

// Info returns the information of the store.
func (s *Store) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := s.info
	info.Genomes = len(s.genomes)
	return info
}

// Genomes returns the genomes in the store.
func (s *Store) Genomes() []*genome.Genome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*genome.Genome{}, s.genomes...)
}

func (s *Store) sketchFile(i int) string {
	return filepath.Join(s.dir, DirSketches, strconv.Itoa(i)+SketchFileExt)
}

// template of sketches in the store, for compatibility checking
func (s *Store) template() *sketch.Sketch {
	return &sketch.Sketch{Name: s.dir, S: s.info.Scale, K: s.info.K, Seed: s.info.Seed, Hash: s.info.Hash}
}

// Add saves the sketch of a genome. It is safe for concurrent use.
func (s *Store) Add(g *genome.Genome, sk *sketch.Sketch) error {
	if strings.ContainsAny(g.Name, "\t\r\n") || strings.ContainsAny(g.Location, "\t\r\n") {
		return errors.Errorf("store: tabs or line breaks are not allowed in genome names or locations: %q", g.Name)
	}
	if err := sketch.CheckCompatibility(s.template(), sk); err != nil {
		return err
	}

	s.mu.Lock()
	if !s.writable || s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	i := len(s.genomes)
	s.genomes = append(s.genomes, g)
	s.mu.Unlock()

	return sk.WriteToFile(s.sketchFile(i))
}

// Sketches reads all sketches with given number of threads.
// Names of sketches are genome names.
func (s *Store) Sketches(ctx context.Context, threads int) ([]*sketch.Sketch, error) {
	genomes := s.Genomes()
	sketches := make([]*sketch.Sketch, len(genomes))

	if threads < 1 {
		threads = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	for i := range genomes {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			sk, err := sketch.NewFromFile(s.sketchFile(i))
			if err != nil {
				return err
			}
			sk.Name = genomes[i].Name
			sk.Hash = s.info.Hash
			sketches[i] = sk
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return sketches, nil
}

// Close writes the genome list and the info file of a created store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if !s.writable {
		return nil
	}

	if err := writeGenomes(filepath.Join(s.dir, FileGenomes), s.genomes); err != nil {
		return err
	}
	s.info.Genomes = len(s.genomes)
	return WriteInfo(filepath.Join(s.dir, FileInfo), &s.info)
}

func writeGenomes(file string, genomes []*genome.Genome) (err error) {
	outfh, err := xopen.Wopen(file)
	if err != nil {
		return errors.Wrapf(err, "write genome list: %s", file)
	}
	defer func() {
		if err2 := outfh.Close(); err == nil {
			err = err2
		}
	}()

	fmt.Fprintf(outfh, "name\tlocation\tsize\n")
	for _, g := range genomes {
		fmt.Fprintf(outfh, "%s\t%s\t%d\n", g.Name, g.Location, g.Size)
	}
	return nil
}

func readGenomes(file string) ([]*genome.Genome, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, errors.Wrapf(err, "read genome list: %s", file)
	}
	defer fh.Close()

	genomes := make([]*genome.Genome, 0, 1024)
	scanner := bufio.NewScanner(fh)
	var n int
	for scanner.Scan() {
		n++
		if n == 1 {
			continue // header
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		items := strings.Split(line, "\t")
		if len(items) != 3 {
			return nil, errors.Errorf("invalid line %d in %s: %s", n, file, line)
		}
		size, err := strconv.Atoi(items[2])
		if err != nil {
			return nil, errors.Errorf("invalid genome size in line %d of %s: %s", n, file, items[2])
		}
		genomes = append(genomes, &genome.Genome{Name: items[0], Location: items[1], Size: size})
	}
	if err = scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "read genome list: %s", file)
	}
	return genomes, nil
}
