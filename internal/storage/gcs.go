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
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSBackend implements Backend for Google Cloud Storage
type GCSBackend struct {
	client *storage.Client
	bucket string
	prefix string
}

// GCSConfig holds configuration for Google Cloud Storage
type GCSConfig struct {
	Bucket string
	Prefix string // Optional object name prefix
}

// NewGCSBackend creates a new GCS backend using application default credentials
func NewGCSBackend(ctx context.Context, cfg GCSConfig) (*GCSBackend, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return NewGCSBackendWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewGCSBackendWithClient wraps an existing client, e.g. one pointed at an emulator
func NewGCSBackendWithClient(client *storage.Client, bucket, prefix string) *GCSBackend {
	return &GCSBackend{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// Store streams into a GCS writer. The object is only committed when the
// writer closes successfully; on copy failure the upload is aborted by
// cancelling the writer's context.
func (g *GCSBackend) Store(ctx context.Context, name, contentType string, r io.Reader) error {
	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := g.object(name).NewWriter(writeCtx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		cancel()
		_ = w.Close()
		return fmt.Errorf("gcs write failed for %s: %w", name, err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs close failed for %s: %w", name, err)
	}

	return nil
}

// Retrieve downloads the object into a temporary file
func (g *GCSBackend) Retrieve(ctx context.Context, name string) (*LocalCopy, error) {
	reader, err := g.object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("gcs get failed for %s: %w", name, err)
	}
	defer func() { _ = reader.Close() }()

	local, err := materialize(reader, "gcs-blob-*")
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", name, err)
	}
	return local, nil
}

// Delete removes an object from the bucket
func (g *GCSBackend) Delete(ctx context.Context, name string) error {
	err := g.object(name).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs delete failed for %s: %w", name, err)
	}

	return nil
}

// Exists probes object attributes without downloading the content
func (g *GCSBackend) Exists(ctx context.Context, name string) (bool, error) {
	_, err := g.object(name).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("gcs attrs failed for %s: %w", name, err)
	}

	return true, nil
}

// Close closes the GCS client
func (g *GCSBackend) Close() error {
	return g.client.Close()
}

func (g *GCSBackend) object(name string) *storage.ObjectHandle {
	return g.client.Bucket(g.bucket).Object(g.prefix + name)
}
