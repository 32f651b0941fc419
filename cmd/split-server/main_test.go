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

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddkinco/local-split-server/internal/artifact"
	"github.com/oddkinco/local-split-server/internal/testutil"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "split-server vdev\n", out)
}

func TestFingerprintCmd(t *testing.T) {
	material, err := testutil.NewSigningMaterial("upload")
	require.NoError(t, err)
	jks, err := material.JKS("upload", "storepw", "keypw")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "upload.jks")
	require.NoError(t, os.WriteFile(path, jks, 0o600))

	out, err := execute(t, "fingerprint", "--keystore", path, "--store-pass", "storepw", "--alias", "upload")
	require.NoError(t, err)
	assert.Equal(t, artifact.ComputeFingerprint([][]byte{material.Certificate.Raw}), strings.TrimSpace(out))

	_, err = execute(t, "fingerprint", "--keystore", path, "--store-pass", "wrong", "--alias", "upload")
	assert.Error(t, err)

	_, err = execute(t, "fingerprint", "--store-pass", "storepw")
	assert.Error(t, err)
}

func TestServeCmd_InvalidConfig(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "")
	_, err := execute(t, "serve", "--storage-backend", "ftp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid storage backend")
}
