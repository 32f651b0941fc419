/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package storage

import (
	"context"
	"errors"
	"io"
	"os"
)

// ErrNotFound is returned by Retrieve when no blob is stored under the name
var ErrNotFound = errors.New("blob not found")

// Backend defines the interface for named blob storage backends
type Backend interface {
	// Store writes the stream under name, replacing any existing blob. Readers
	// never observe a partially written blob.
	Store(ctx context.Context, name, contentType string, r io.Reader) error

	// Retrieve makes the blob available as a local file. Returns ErrNotFound
	// when the blob does not exist.
	Retrieve(ctx context.Context, name string) (*LocalCopy, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// Exists reports whether a blob is stored under name without downloading it
	Exists(ctx context.Context, name string) (bool, error)
}

// LocalCopy is a blob materialized on the local filesystem
type LocalCopy struct {
	// Path is the location of the blob contents on disk
	Path string

	temporary bool
}

// Release frees the local copy. Temporary copies made by remote backends are
// removed; files owned by the local backend are left in place.
func (c *LocalCopy) Release() error {
	if c == nil || !c.temporary {
		return nil
	}
	if err := os.Remove(c.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// materialize copies r into a temporary file and returns it as a LocalCopy
func materialize(r io.Reader, pattern string) (*LocalCopy, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return nil, err
	}
	return &LocalCopy{Path: f.Name(), temporary: true}, nil
}
