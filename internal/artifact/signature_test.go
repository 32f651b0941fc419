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

package artifact

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddkinco/local-split-server/internal/testutil"
)

var fingerprintPattern = regexp.MustCompile(`^([0-9A-F]{2}:){19}[0-9A-F]{2}$`)

func TestComputeFingerprint(t *testing.T) {
	first := []byte("first certificate")
	last := []byte("last certificate")

	assert.Equal(t, "", ComputeFingerprint(nil))
	assert.Regexp(t, fingerprintPattern, ComputeFingerprint([][]byte{first}))
	assert.Equal(t, ComputeFingerprint([][]byte{last}), ComputeFingerprint([][]byte{first, last}))
	assert.NotEqual(t, ComputeFingerprint([][]byte{first}), ComputeFingerprint([][]byte{first, last}))

	// sha1("abc")
	assert.Equal(t,
		"A9:99:3E:36:47:06:81:6A:BA:3E:25:71:78:50:C2:6C:9C:D0:D8:9D",
		ComputeFingerprint([][]byte{[]byte("abc")}))
}

func TestFingerprintFromFile(t *testing.T) {
	material, err := testutil.NewSigningMaterial("release")
	require.NoError(t, err)
	expected := ComputeFingerprint([][]byte{material.Certificate.Raw})

	dir := t.TempDir()

	jks, err := material.JKS("release", "storepw", "keypw")
	require.NoError(t, err)
	jksPath := filepath.Join(dir, "release.jks")
	require.NoError(t, os.WriteFile(jksPath, jks, 0o600))

	p12, err := material.PKCS12("storepw")
	require.NoError(t, err)
	p12Path := filepath.Join(dir, "release.p12")
	require.NoError(t, os.WriteFile(p12Path, p12, 0o600))

	t.Run("jks", func(t *testing.T) {
		fingerprint, err := FingerprintFromFile(jksPath, "storepw", "release")
		require.NoError(t, err)
		assert.Equal(t, expected, fingerprint)
	})

	t.Run("pkcs12 ignores alias", func(t *testing.T) {
		fingerprint, err := FingerprintFromFile(p12Path, "storepw", "anything")
		require.NoError(t, err)
		assert.Equal(t, expected, fingerprint)
	})

	t.Run("unknown alias", func(t *testing.T) {
		_, err := FingerprintFromFile(jksPath, "storepw", "missing")
		assert.Error(t, err)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := FingerprintFromFile(jksPath, "wrong", "release")
		assert.Error(t, err)
		_, err = FingerprintFromFile(p12Path, "wrong", "release")
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := FingerprintFromFile(filepath.Join(dir, "nope.jks"), "storepw", "release")
		assert.Error(t, err)
	})
}

func TestParseSigningConfig(t *testing.T) {
	config, err := ParseSigningConfig([]byte(`{"storePassword":"s","keyPassword":"k","keyAlias":"a","storeFile":"x.jks"}`))
	require.NoError(t, err)
	assert.Equal(t, &SigningConfig{StorePassword: "s", KeyPassword: "k", KeyAlias: "a", StoreFile: "x.jks"}, config)

	_, err = ParseSigningConfig([]byte(`{}`))
	assert.True(t, IsKind(err, KeystorePassMissing))
}
