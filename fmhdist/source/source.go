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

// Package source opens genome sequence streams from local files,
// http(s) URLs and object stores (s3:// and minio://).
package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"
)

// Error is a failure of acquiring a genome stream.
// It is usually transient, and worth a retry.
type Error struct {
	Location string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("source: open %s: %s", e.Location, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Opener opens a location for reading.
type Opener interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// OpenerFunc adapts a function to an Opener.
type OpenerFunc func(ctx context.Context, location string) (io.ReadCloser, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	return f(ctx, location)
}

// S3API is the part of the S3 client used to fetch objects.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// MinioAPI is the part of the MinIO client used to fetch objects.
type MinioAPI interface {
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
}

// Environment variables configuring the MinIO client.
const (
	EnvMinioEndpoint  = "FMHDIST_MINIO_ENDPOINT"
	EnvMinioAccessKey = "FMHDIST_MINIO_ACCESS_KEY"
	EnvMinioSecretKey = "FMHDIST_MINIO_SECRET_KEY"
	EnvMinioSecure    = "FMHDIST_MINIO_SECURE"
)

// Resolver opens locations by their schemes:
//
//	s3://bucket/key     AWS S3, with the default AWS configuration
//	minio://bucket/key  MinIO or other S3-compatible stores, see EnvMinio*
//	others              local files, "-" for stdin, http(s) URLs
//
// Compressed streams (gzip, xz, zstd, bzip2 and lz4 for objects) are
// decompressed. Clients are created on the first use unless given.
type Resolver struct {
	S3    S3API
	Minio MinioAPI

	mu sync.Mutex
}

// NewResolver returns a Resolver creating clients on demand.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Open opens a location. Failures are returned as *Error.
func (r *Resolver) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	rc, err := r.open(ctx, location)
	if err != nil {
		return nil, &Error{Location: location, Err: err}
	}
	return rc, nil
}

func (r *Resolver) open(ctx context.Context, location string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch {
	case strings.HasPrefix(location, "s3://"):
		bucket, key, err := SplitObjectURL(location)
		if err != nil {
			return nil, err
		}
		client, err := r.s3Client(ctx)
		if err != nil {
			return nil, err
		}
		out, err := client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, err
		}
		return Decompress(out.Body)

	case strings.HasPrefix(location, "minio://"):
		bucket, key, err := SplitObjectURL(location)
		if err != nil {
			return nil, err
		}
		client, err := r.minioClient()
		if err != nil {
			return nil, err
		}
		obj, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return nil, err
		}
		return Decompress(obj)

	default:
		return xopen.Ropen(location)
	}
}

func (r *Resolver) s3Client(ctx context.Context) (S3API, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.S3 == nil {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "load AWS config")
		}
		r.S3 = s3.NewFromConfig(cfg)
	}
	return r.S3, nil
}

func (r *Resolver) minioClient() (MinioAPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Minio == nil {
		endpoint := os.Getenv(EnvMinioEndpoint)
		if endpoint == "" {
			return nil, errors.Errorf("MinIO endpoint not set, please set the environment variable %s", EnvMinioEndpoint)
		}
		secure := true
		if v := os.Getenv(EnvMinioSecure); v != "" {
			var err error
			if secure, err = strconv.ParseBool(v); err != nil {
				return nil, errors.Wrapf(err, "invalid value of %s", EnvMinioSecure)
			}
		}
		client, err := minio.New(endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(os.Getenv(EnvMinioAccessKey), os.Getenv(EnvMinioSecretKey), ""),
			Secure: secure,
		})
		if err != nil {
			return nil, errors.Wrap(err, "create MinIO client")
		}
		r.Minio = client
	}
	return r.Minio, nil
}

// SplitObjectURL splits scheme://bucket/key into bucket and key.
func SplitObjectURL(location string) (bucket, key string, err error) {
	i := strings.Index(location, "://")
	if i < 0 {
		return "", "", errors.Errorf("invalid object URL: %s", location)
	}
	rest := location[i+3:]
	j := strings.IndexByte(rest, '/')
	if j <= 0 || j == len(rest)-1 {
		return "", "", errors.Errorf("invalid object URL: %s", location)
	}
	return rest[:j], rest[j+1:], nil
}
