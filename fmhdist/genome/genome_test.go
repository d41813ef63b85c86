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

package genome

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameOf(t *testing.T) {
	tests := map[string]string{
		"a/b/GCA_000001.1_genomic.fna.gz":                  "GCA_000001.1_genomic",
		"x.fasta":                                          "x",
		"x.FA.GZ":                                          "x",
		"x.fq":                                             "x.fq",
		"https://ftp.example.org/genomes/y.fna.gz?token=1": "y",
		"s3://bucket/dir/z.fa.zst":                         "z",
		"plain":                                            "plain",
	}
	for location, name := range tests {
		assert.Equal(t, name, NameOf(location), location)
	}
}

func TestParseList(t *testing.T) {
	text := `# genomes
a.fna.gz
 b.fa , genome B
s3://bucket/c.fna,C,5000000

minio://bucket/d.fna,,42
`
	genomes, err := ParseList(strings.NewReader(text))
	require.NoError(t, err)
	require.Len(t, genomes, 4)

	assert.Equal(t, &Genome{Name: "a", Location: "a.fna.gz"}, genomes[0])
	assert.Equal(t, &Genome{Name: "genome B", Location: "b.fa"}, genomes[1])
	assert.Equal(t, &Genome{Name: "C", Location: "s3://bucket/c.fna", Size: 5000000}, genomes[2])
	assert.Equal(t, &Genome{Name: "d", Location: "minio://bucket/d.fna", Size: 42}, genomes[3])
}

func TestParseListErrors(t *testing.T) {
	for _, text := range []string{"a,b,c,d", ",name", "a,b,-1", "a,b,x"} {
		_, err := ParseList(strings.NewReader(text))
		assert.True(t, errors.Is(err, ErrInvalidLine), text)
	}
}

func TestReadListAndSize(t *testing.T) {
	dir := t.TempDir()
	fasta := filepath.Join(dir, "g.fna")
	require.NoError(t, os.WriteFile(fasta, []byte(">a\nACGTN\nACG\n>b\nAAAA\n"), 0644))
	list := filepath.Join(dir, "list.txt")
	require.NoError(t, os.WriteFile(list, []byte(fasta+",g\n"), 0644))

	genomes, err := ReadList(list)
	require.NoError(t, err)
	require.Len(t, genomes, 1)
	assert.Equal(t, "g", genomes[0].Name)

	size, err := SizeOf(genomes[0].Location)
	require.NoError(t, err)
	assert.Equal(t, 12, size)

	_, err = ReadList(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}
