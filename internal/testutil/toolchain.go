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

package testutil

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/oddkinco/local-split-server/internal/bundletool"
)

// FakeToolchain is an in-process bundletool.Toolchain. BuildApks copies the
// bundle to the output path; ExtractApks writes one file per entry in Splits.
type FakeToolchain struct {
	Splits     []string
	BuildErr   error
	ExtractErr error

	mutex       sync.Mutex
	builds      []bundletool.BuildApksRequest
	extracts    []bundletool.ExtractApksRequest
	buildHook   func()
	extractHook func()
}

var _ bundletool.Toolchain = (*FakeToolchain)(nil)

// NewFakeToolchain creates a fake toolchain that extracts the given split names
func NewFakeToolchain(splits ...string) *FakeToolchain {
	return &FakeToolchain{Splits: splits}
}

// OnBuild registers a function called at the start of every BuildApks
func (f *FakeToolchain) OnBuild(hook func()) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.buildHook = hook
}

// OnExtract registers a function called at the start of every ExtractApks
func (f *FakeToolchain) OnExtract(hook func()) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.extractHook = hook
}

func (f *FakeToolchain) BuildApks(_ context.Context, req bundletool.BuildApksRequest) error {
	f.mutex.Lock()
	f.builds = append(f.builds, req)
	hook := f.buildHook
	f.mutex.Unlock()

	if hook != nil {
		hook()
	}
	if f.BuildErr != nil {
		return f.BuildErr
	}

	in, err := os.Open(req.BundlePath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(req.OutputPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (f *FakeToolchain) ExtractApks(_ context.Context, req bundletool.ExtractApksRequest) ([]string, error) {
	f.mutex.Lock()
	f.extracts = append(f.extracts, req)
	hook := f.extractHook
	f.mutex.Unlock()

	if hook != nil {
		hook()
	}
	if f.ExtractErr != nil {
		return nil, f.ExtractErr
	}

	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(f.Splits))
	for _, name := range f.Splits {
		path := filepath.Join(req.OutputDir, name)
		if err := os.WriteFile(path, []byte("split:"+name), 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Builds returns the BuildApks requests seen so far
func (f *FakeToolchain) Builds() []bundletool.BuildApksRequest {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]bundletool.BuildApksRequest(nil), f.builds...)
}

// Extracts returns the ExtractApks requests seen so far
func (f *FakeToolchain) Extracts() []bundletool.ExtractApksRequest {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]bundletool.ExtractApksRequest(nil), f.extracts...)
}
