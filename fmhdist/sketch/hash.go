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
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"github.com/spaolacci/murmur3"
	"github.com/zeebo/wyhash"
)

// ErrUnknownHash means the hash function name is not supported.
var ErrUnknownHash = errors.New("sketch: unknown hash function")

// DefaultHash is the default hash function.
const DefaultHash = "murmur3"

// Hasher hashes a k-mer to 64 bits.
type Hasher func(data []byte) uint64

var hashers = map[string]func(seed int) Hasher{
	"murmur3": func(seed int) Hasher {
		s := uint32(seed)
		return func(data []byte) uint64 {
			return murmur3.Sum64WithSeed(data, s)
		}
	},
	"wyhash": func(seed int) Hasher {
		s := uint64(seed)
		return func(data []byte) uint64 {
			return wyhash.Hash(data, s)
		}
	},
	"xxhash": func(seed int) Hasher {
		s := uint64(seed)
		d := xxhash.NewWithSeed(s)
		return func(data []byte) uint64 {
			d.ResetWithSeed(s)
			d.Write(data)
			return d.Sum64()
		}
	},
}

// NewHasher returns a seeded hash function by name.
// The returned function is not safe for concurrent use.
func NewHasher(name string, seed int) (Hasher, error) {
	if name == "" {
		name = DefaultHash
	}
	f, ok := hashers[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownHash, "%q", name)
	}
	return f(seed), nil
}

// HashNames returns names of supported hash functions.
func HashNames() []string {
	names := make([]string, 0, len(hashers))
	for name := range hashers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
