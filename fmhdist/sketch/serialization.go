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

package sketch

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"io"

	"github.com/husonlab/fmhdist/fmhdist/util"
	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"
)

// Magic is the first field of a binary sketch.
const Magic int32 = 1213415759

// ErrInvalidFormat means the magic number does not match.
var ErrInvalidFormat = errors.New("sketch: invalid binary format")

// ErrBrokenData means the data is truncated or malformed.
var ErrBrokenData = errors.New("sketch: broken data")

var le = binary.LittleEndian

// header: magic, s, k, seed, count
const headerSize = 20

// Bytes serializes the sketch, all fields are little-endian:
//
//	magic (int32), s (int32), k (int32), seed (int32), count (int32),
//	count hash values (int64).
func (sk *Sketch) Bytes() []byte {
	buf := make([]byte, headerSize+8*len(sk.Values))
	le.PutUint32(buf[0:4], uint32(Magic))
	le.PutUint32(buf[4:8], uint32(int32(sk.S)))
	le.PutUint32(buf[8:12], uint32(int32(sk.K)))
	le.PutUint32(buf[12:16], uint32(int32(sk.Seed)))
	le.PutUint32(buf[16:20], uint32(int32(len(sk.Values))))
	b := buf[headerSize:]
	for i, v := range sk.Values {
		le.PutUint64(b[i<<3:], uint64(v))
	}
	return buf
}

// WriteTo writes the binary form of the sketch.
func (sk *Sketch) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(sk.Bytes())
	return int64(n), err
}

// Parse parses a sketch from its binary form.
func Parse(data []byte) (*Sketch, error) {
	if len(data) >= 4 && int32(le.Uint32(data[0:4])) != Magic {
		return nil, ErrInvalidFormat
	}
	if len(data) < headerSize {
		return nil, errors.Wrapf(ErrBrokenData, "%d bytes", len(data))
	}

	sk := &Sketch{
		S:    int(int32(le.Uint32(data[4:8]))),
		K:    int(int32(le.Uint32(data[8:12]))),
		Seed: int(int32(le.Uint32(data[12:16]))),
	}
	n := int(int32(le.Uint32(data[16:20])))
	if n < 0 || len(data)-headerSize != n<<3 {
		return nil, errors.Wrapf(ErrBrokenData, "%d values expected, %d bytes found", n, len(data)-headerSize)
	}

	sk.Values = make([]int64, n)
	b := data[headerSize:]
	for i := range sk.Values {
		sk.Values[i] = int64(le.Uint64(b[i<<3:]))
	}
	if !util.IsStrictlyAscending(sk.Values) {
		return nil, errors.Wrap(ErrBrokenData, "hash values not sorted")
	}
	return sk, nil
}

// values decoded per read in Read
const readChunk = 1 << 13

// Read reads a binary sketch. Values are read in chunks, so a broken
// count in the header does not allocate more than the data read.
func Read(r io.Reader) (*Sketch, error) {
	var h [headerSize]byte
	n, err := io.ReadFull(r, h[:])
	if err != nil {
		if n >= 4 && int32(le.Uint32(h[0:4])) != Magic {
			return nil, ErrInvalidFormat
		}
		return nil, errors.Wrap(ErrBrokenData, err.Error())
	}
	if int32(le.Uint32(h[0:4])) != Magic {
		return nil, ErrInvalidFormat
	}
	count := int(int32(le.Uint32(h[16:20])))
	if count < 0 {
		return nil, errors.Wrapf(ErrBrokenData, "negative number of values: %d", count)
	}

	sk := &Sketch{
		S:      int(int32(le.Uint32(h[4:8]))),
		K:      int(int32(le.Uint32(h[8:12]))),
		Seed:   int(int32(le.Uint32(h[12:16]))),
		Values: make([]int64, 0, min(count, readChunk)),
	}
	buf := make([]byte, min(count, readChunk)<<3)
	var m int
	for left := count; left > 0; left -= m {
		m = min(left, readChunk)
		b := buf[:m<<3]
		if _, err = io.ReadFull(r, b); err != nil {
			return nil, errors.Wrapf(ErrBrokenData, "%d values expected, %d read: %s", count, len(sk.Values), err)
		}
		for k := 0; k < m; k++ {
			sk.Values = append(sk.Values, int64(le.Uint64(b[k<<3:])))
		}
	}
	if !util.IsStrictlyAscending(sk.Values) {
		return nil, errors.Wrap(ErrBrokenData, "hash values not sorted")
	}
	return sk, nil
}

// Hex returns the hexadecimal encoding of the binary form.
func (sk *Sketch) Hex() []byte {
	b := sk.Bytes()
	h := make([]byte, hex.EncodedLen(len(b)))
	hex.Encode(h, b)
	return h
}

// ParseHex parses a sketch from its hexadecimal text.
// Surrounding whitespace is ignored.
func ParseHex(text []byte) (*Sketch, error) {
	text = bytes.TrimSpace(text)
	data := make([]byte, hex.DecodedLen(len(text)))
	if _, err := hex.Decode(data, text); err != nil {
		return nil, errors.Wrap(ErrBrokenData, err.Error())
	}
	return Parse(data)
}

// magic bytes of binary sketches, not valid hexadecimal text
var magicBytes = []byte{0x4f, 0x41, 0x53, 0x48}

// NewFromFile reads a sketch file in hexadecimal text or in binary,
// decided by the content. The name of the sketch is not saved in the file.
func NewFromFile(file string) (*Sketch, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, errors.Wrapf(err, "open sketch file: %s", file)
	}
	defer fh.Close()

	var sk *Sketch
	if head, _ := fh.Peek(len(magicBytes)); bytes.Equal(head, magicBytes) {
		sk, err = Read(fh)
	} else {
		var text []byte
		text, err = io.ReadAll(fh)
		if err != nil {
			return nil, errors.Wrapf(err, "read sketch file: %s", file)
		}
		sk, err = ParseHex(text)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parse sketch file: %s", file)
	}
	return sk, nil
}

// WriteToFile writes the sketch in hexadecimal text,
// gzip-compressed if the file name ends with ".gz".
func (sk *Sketch) WriteToFile(file string) error {
	return sk.writeFile(file, false)
}

// WriteBinaryFile writes the sketch in the binary form,
// gzip-compressed if the file name ends with ".gz".
func (sk *Sketch) WriteBinaryFile(file string) error {
	return sk.writeFile(file, true)
}

func (sk *Sketch) writeFile(file string, bin bool) (err error) {
	outfh, err := xopen.Wopen(file)
	if err != nil {
		return errors.Wrapf(err, "write sketch file: %s", file)
	}
	defer func() {
		if err2 := outfh.Close(); err == nil && err2 != nil {
			err = errors.Wrapf(err2, "close sketch file: %s", file)
		}
	}()

	w := bufio.NewWriter(outfh)
	if bin {
		if _, err = sk.WriteTo(w); err != nil {
			return err
		}
		return w.Flush()
	}
	if _, err = w.Write(sk.Hex()); err != nil {
		return err
	}
	if err = w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}
