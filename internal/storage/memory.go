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
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/go-logr/logr"
)

// MemoryBackend implements Backend for in-memory storage
// WARNING: This backend is non-persistent and data will be lost on server restart
type MemoryBackend struct {
	data  map[string]memoryObject
	mutex sync.RWMutex
}

type memoryObject struct {
	contentType string
	data        []byte
}

// NewMemoryBackend creates a new in-memory storage backend
func NewMemoryBackend(log logr.Logger) *MemoryBackend {
	log.Info("WARNING: Using in-memory storage backend. Uploaded bundles will NOT persist across restarts.")

	return &MemoryBackend{
		data: make(map[string]memoryObject),
	}
}

// Store reads the whole stream before publishing it under name
func (m *MemoryBackend) Store(_ context.Context, name, contentType string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.data[name] = memoryObject{contentType: contentType, data: data}
	return nil
}

// Retrieve copies the blob into a temporary file
func (m *MemoryBackend) Retrieve(_ context.Context, name string) (*LocalCopy, error) {
	m.mutex.RLock()
	obj, exists := m.data[name]
	m.mutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return materialize(bytes.NewReader(obj.data), "memory-blob-*")
}

// Delete removes an object from memory
func (m *MemoryBackend) Delete(_ context.Context, name string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.data, name)
	return nil
}

// Exists reports whether an object is held under name
func (m *MemoryBackend) Exists(_ context.Context, name string) (bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	_, exists := m.data[name]
	return exists, nil
}

// GetData returns the stored data for a key (for testing purposes)
// This method is not part of the Backend interface but useful for testing
func (m *MemoryBackend) GetData(name string) ([]byte, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	obj, exists := m.data[name]
	if !exists {
		return nil, false
	}

	// Return a copy to prevent external modifications
	dataCopy := make([]byte, len(obj.data))
	copy(dataCopy, obj.data)
	return dataCopy, true
}

// Size returns the number of stored objects (for testing/debugging)
func (m *MemoryBackend) Size() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return len(m.data)
}
