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
	"os"
	"strings"
	"testing"

	"github.com/go-logr/logr"
)

func TestMemoryBackend_Store(t *testing.T) {
	backend := NewMemoryBackend(logr.Discard())
	ctx := context.Background()

	tests := []struct {
		name string
		key  string
		data []byte
	}{
		{
			name: "simple store",
			key:  "com.example_debug_1.aab",
			data: []byte("bundle data"),
		},
		{
			name: "empty data",
			key:  "empty",
			data: []byte{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := backend.Store(ctx, tt.key, "application/octet-stream", strings.NewReader(string(tt.data))); err != nil {
				t.Errorf("Store() error = %v", err)
				return
			}

			storedData, exists := backend.GetData(tt.key)
			if !exists {
				t.Error("data was not stored")
			}

			if string(storedData) != string(tt.data) {
				t.Errorf("stored data = %v, want %v", string(storedData), string(tt.data))
			}
		})
	}
}

func TestMemoryBackend_Retrieve(t *testing.T) {
	backend := NewMemoryBackend(logr.Discard())
	ctx := context.Background()

	if err := backend.Store(ctx, "blob", "text/plain", strings.NewReader("contents")); err != nil {
		t.Fatalf("failed to store test data: %v", err)
	}

	local, err := backend.Retrieve(ctx, "blob")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}

	data, err := os.ReadFile(local.Path)
	if err != nil {
		t.Fatalf("failed to read local copy: %v", err)
	}
	if string(data) != "contents" {
		t.Errorf("local copy = %q, want %q", string(data), "contents")
	}

	if err := local.Release(); err != nil {
		t.Errorf("Release() error = %v", err)
	}
	if _, err := os.Stat(local.Path); !os.IsNotExist(err) {
		t.Error("temporary copy should be removed after Release")
	}

	if _, err := backend.Retrieve(ctx, "missing"); !errorsIsNotFound(err) {
		t.Errorf("Retrieve() missing blob error = %v, want ErrNotFound", err)
	}
}

func TestMemoryBackend_DeleteAndExists(t *testing.T) {
	backend := NewMemoryBackend(logr.Discard())
	ctx := context.Background()

	if err := backend.Store(ctx, "blob", "", strings.NewReader("x")); err != nil {
		t.Fatalf("failed to store test data: %v", err)
	}

	exists, err := backend.Exists(ctx, "blob")
	if err != nil || !exists {
		t.Fatalf("Exists() = %v, %v; want true, nil", exists, err)
	}

	if err := backend.Delete(ctx, "blob"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := backend.Delete(ctx, "blob"); err != nil {
		t.Errorf("Delete() of missing blob error = %v", err)
	}

	exists, _ = backend.Exists(ctx, "blob")
	if exists {
		t.Error("blob should not exist after Delete")
	}
	if backend.Size() != 0 {
		t.Errorf("Size() = %d, want 0", backend.Size())
	}
}
