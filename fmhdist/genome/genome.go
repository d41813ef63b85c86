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

// Package genome describes genomes to sketch and reads genome lists.
package genome

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/xopen"
)

// Genome is a sequence file to sketch.
type Genome struct {
	Name     string
	Location string // local path, URL, s3:// or minio:// object
	Size     int    // genome size in bases, 0 for unknown
}

func (g *Genome) String() string {
	return fmt.Sprintf("%s (%s)", g.Name, g.Location)
}

// ErrInvalidLine means a malformed line in a genome list.
var ErrInvalidLine = errors.New("genome: invalid list line")

// ParseLine parses a line of genome list: location[,name[,size]].
// Whitespace around fields is ignored.
func ParseLine(line string) (*Genome, error) {
	items := strings.Split(line, ",")
	if len(items) > 3 {
		return nil, errors.Wrapf(ErrInvalidLine, "too many fields: %s", line)
	}
	for i := range items {
		items[i] = strings.TrimSpace(items[i])
	}
	location := items[0]
	if location == "" {
		return nil, errors.Wrapf(ErrInvalidLine, "empty location: %s", line)
	}
	if strings.HasPrefix(location, "~") {
		var err error
		location, err = homedir.Expand(location)
		if err != nil {
			return nil, errors.Wrap(err, location)
		}
	}

	g := &Genome{Location: location}
	if len(items) > 1 && items[1] != "" {
		g.Name = items[1]
	} else {
		g.Name = NameOf(location)
	}
	if len(items) > 2 && items[2] != "" {
		size, err := strconv.Atoi(items[2])
		if err != nil || size < 0 {
			return nil, errors.Wrapf(ErrInvalidLine, "invalid genome size: %s", items[2])
		}
		g.Size = size
	}
	return g, nil
}

// ReadList reads a genome list, one genome per line.
// Blank lines and lines starting with "#" are skipped.
func ReadList(file string) ([]*Genome, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, errors.Wrapf(err, "read genome list: %s", file)
	}
	defer fh.Close()
	return ParseList(fh)
}

// ParseList parses a genome list from a reader.
func ParseList(r io.Reader) ([]*Genome, error) {
	genomes := make([]*Genome, 0, 128)
	scanner := bufio.NewScanner(r)
	var n int
	for scanner.Scan() {
		n++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		g, err := ParseLine(line)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", n)
		}
		genomes = append(genomes, g)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return genomes, nil
}

var exts = []string{".gz", ".xz", ".zst", ".bz2", ".lz4"}
var seqExts = []string{".fasta", ".fna", ".fa", ".fas", ".ffn", ".seq", ".txt"}

// NameOf returns the base name of a location without extensions
// of sequence files and compression formats.
func NameOf(location string) string {
	name := location
	if i := strings.IndexAny(name, "?#"); i >= 0 && strings.Contains(name, "://") {
		name = name[:i]
	}
	name = filepath.Base(strings.TrimRight(name, "/"))

	lower := strings.ToLower(name)
	for _, e := range exts {
		if strings.HasSuffix(lower, e) {
			name, lower = name[:len(name)-len(e)], lower[:len(lower)-len(e)]
			break
		}
	}
	for _, e := range seqExts {
		if strings.HasSuffix(lower, e) {
			name = name[:len(name)-len(e)]
			break
		}
	}
	return name
}

// SizeOf counts bases of a local sequence file.
func SizeOf(file string) (int, error) {
	seq.ValidateSeq = false

	fastxReader, err := fastx.NewReader(nil, file, "")
	if err != nil {
		return 0, errors.Wrapf(err, "read sequence file: %s", file)
	}
	defer fastxReader.Close()

	var size int
	var record *fastx.Record
	for {
		record, err = fastxReader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return 0, errors.Wrapf(err, "read sequence file: %s", file)
		}
		size += len(record.Seq.Seq)
	}
	return size, nil
}
