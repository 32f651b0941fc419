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
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalBackend implements Backend on a flat directory of files
type LocalBackend struct {
	basePath string
}

// NewLocalBackend creates a new local storage backend rooted at basePath
func NewLocalBackend(basePath string) (*LocalBackend, error) {
	// Ensure base path exists and is writable
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path %s: %w", basePath, err)
	}

	testFile := filepath.Join(basePath, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
		return nil, fmt.Errorf("base path %s is not writable: %w", basePath, err)
	}
	_ = os.Remove(testFile)

	return &LocalBackend{basePath: basePath}, nil
}

// Store writes the stream to a temporary file next to the target and renames it into place
func (l *LocalBackend) Store(_ context.Context, name, _ string, r io.Reader) error {
	if err := validateName(name); err != nil {
		return err
	}

	filePath := filepath.Join(l.basePath, name)

	tmp, err := os.CreateTemp(l.basePath, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s: %w", name, err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", filePath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", filePath, err)
	}

	if err := os.Rename(tmpPath, filePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to commit %s: %w", filePath, err)
	}

	return nil
}

// Retrieve returns the stored file itself; the copy is not temporary
func (l *LocalBackend) Retrieve(_ context.Context, name string) (*LocalCopy, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	filePath := filepath.Join(l.basePath, name)
	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", filePath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", filePath)
	}

	return &LocalCopy{Path: filePath}, nil
}

// Delete removes a file from storage
func (l *LocalBackend) Delete(_ context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	filePath := filepath.Join(l.basePath, name)
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file %s: %w", filePath, err)
	}

	return nil
}

// Exists reports whether the file is present
func (l *LocalBackend) Exists(_ context.Context, name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}

	_, err := os.Stat(filepath.Join(l.basePath, name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", name, err)
}

// validateName ensures the name is a single flat path element
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	if strings.Contains(name, "..") {
		return fmt.Errorf("name contains invalid path traversal: %s", name)
	}

	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("name cannot contain path separators: %s", name)
	}

	return nil
}
