/*
Copyright (c) 2025 Odd Kin <oddkin@oddkin.co>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package storage

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
)

// BackendType names a storage backend implementation
type BackendType string

const (
	BackendLocal  BackendType = "local"
	BackendS3     BackendType = "s3"
	BackendGCS    BackendType = "gcs"
	BackendMemory BackendType = "memory"
)

// Options selects and parameterizes a backend
type Options struct {
	Type      BackendType
	LocalPath string
	S3        S3Config
	GCS       GCSConfig
}

// NewBackend creates the backend selected by opts. The backend is chosen once
// at process start.
func NewBackend(ctx context.Context, opts Options, log logr.Logger) (Backend, error) {
	switch opts.Type {
	case BackendLocal, "":
		return NewLocalBackend(opts.LocalPath)
	case BackendS3:
		if opts.S3.Bucket == "" {
			return nil, fmt.Errorf("bucket is required for S3 storage")
		}
		return NewS3Backend(ctx, opts.S3)
	case BackendGCS:
		if opts.GCS.Bucket == "" {
			return nil, fmt.Errorf("bucket is required for GCS storage")
		}
		return NewGCSBackend(ctx, opts.GCS)
	case BackendMemory:
		return NewMemoryBackend(log), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", opts.Type)
	}
}
