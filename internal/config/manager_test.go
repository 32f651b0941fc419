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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("split-server", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func writeConfigFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestManager_Precedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("SERVER_HOST", "env-host")
	t.Setenv("STORAGE_LOCAL_PATH", "/env/bundles")

	t.Run("environment over defaults", func(t *testing.T) {
		manager := NewManager(nil, logr.Discard())
		manager.SetWorkingDir(t.TempDir())

		config, err := manager.LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, 9000, config.Server.Port)
		assert.Equal(t, "env-host", config.Server.Host)
	})

	t.Run("flags over environment", func(t *testing.T) {
		manager := NewManager(newFlagSet(t, "--port", "9100"), logr.Discard())
		manager.SetWorkingDir(t.TempDir())

		config, err := manager.LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, 9100, config.Server.Port)
		assert.Equal(t, "env-host", config.Server.Host, "unset flags must not override the environment")
		assert.Equal(t, "/env/bundles", config.Storage.Local.Path)
	})

	t.Run("file over flags", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, "server:\n  port: 9200\n")

		manager := NewManager(newFlagSet(t, "--port", "9100", "--host", "flag-host"), logr.Discard())
		manager.SetWorkingDir(dir)

		config, err := manager.LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, 9200, config.Server.Port)
		assert.Equal(t, "flag-host", config.Server.Host)
	})
}

func TestManager_ExplicitConfigFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  backend: gcs
  gcs:
    bucket: release-bundles
artifacts:
  validateSignatureOnDownload: true
toolchain:
  command: java
  args: ["-jar", "/opt/bundletool.jar"]
  timeout: 90s
devices:
  registrationTTL: 2h
`), 0o600))

	manager := NewManager(newFlagSet(t, "--config", path), logr.Discard())
	manager.SetWorkingDir(t.TempDir())

	config, err := manager.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "gcs", config.Storage.Backend)
	assert.Equal(t, "release-bundles", config.Storage.GCS.Bucket)
	assert.True(t, config.Artifacts.ValidateSignatureOnDownload)
	assert.Equal(t, "java", config.Toolchain.Command)
	assert.Equal(t, []string{"-jar", "/opt/bundletool.jar"}, config.Toolchain.Args)
	assert.Equal(t, 90*time.Second, config.Toolchain.Timeout)
	assert.Equal(t, 2*time.Hour, config.Devices.RegistrationTTL)
	assert.Equal(t, 8080, config.Server.Port)
}

func TestManager_ConfigFileErrors(t *testing.T) {
	clearEnv(t)

	t.Run("missing explicit file", func(t *testing.T) {
		manager := NewManager(newFlagSet(t, "--config", filepath.Join(t.TempDir(), "absent.yaml")), logr.Discard())
		_, err := manager.LoadConfig()
		assert.Error(t, err)
	})

	t.Run("unknown keys", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, "server:\n  portt: 1\n")

		manager := NewManager(nil, logr.Discard())
		manager.SetWorkingDir(dir)
		_, err := manager.LoadConfig()
		assert.Error(t, err)
	})

	t.Run("empty file", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, "")

		manager := NewManager(nil, logr.Discard())
		manager.SetWorkingDir(dir)
		config, err := manager.LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, 8080, config.Server.Port)
	})

	t.Run("invalid result", func(t *testing.T) {
		manager := NewManager(newFlagSet(t, "--storage-backend", "ftp"), logr.Discard())
		manager.SetWorkingDir(t.TempDir())
		_, err := manager.LoadConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration validation failed")
	})
}

func TestApplyFlags(t *testing.T) {
	clearEnv(t)

	fs := newFlagSet(t,
		"--username", "dev",
		"--password", "pw",
		"--redirect-https",
		"--storage-backend", "gcs",
		"--bucket-id", "flag-bucket",
		"--override-existing-bundles",
		"--validate-signature-on-download",
		"--scratch-dir", "/scratch",
		"--bundletool", "java -jar bundletool.jar",
		"--verbosity", "2",
	)

	config := DefaultConfig()
	require.NoError(t, applyFlags(fs, config))

	assert.Equal(t, "dev", config.Server.Username)
	assert.Equal(t, "pw", config.Server.Password)
	assert.True(t, config.Server.RedirectHTTPS)
	assert.Equal(t, "gcs", config.Storage.Backend)
	assert.Equal(t, "flag-bucket", config.Storage.GCS.Bucket)
	assert.Empty(t, config.Storage.S3.Bucket)
	assert.True(t, config.Artifacts.OverrideExistingBundles)
	assert.True(t, config.Artifacts.ValidateSignatureOnDownload)
	assert.Equal(t, "/scratch", config.Artifacts.ScratchDir)
	assert.Equal(t, "java", config.Toolchain.Command)
	assert.Equal(t, []string{"-jar", "bundletool.jar"}, config.Toolchain.Args)
	assert.Equal(t, 2, config.Log.Verbosity)
}

func TestApplyFlags_BucketDefaultsToS3(t *testing.T) {
	fs := newFlagSet(t, "--storage-backend", "s3", "--bucket-id", "s3-bucket")

	config := DefaultConfig()
	require.NoError(t, applyFlags(fs, config))
	assert.Equal(t, "s3-bucket", config.Storage.S3.Bucket)
	assert.Empty(t, config.Storage.GCS.Bucket)
}

func TestManager_BucketFlagFollowsFileBackend(t *testing.T) {
	clearEnv(t)

	t.Run("file selects gcs", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, "storage:\n  backend: gcs\n")

		manager := NewManager(newFlagSet(t, "--bucket-id", "my-bucket"), logr.Discard())
		manager.SetWorkingDir(dir)

		config, err := manager.LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "gcs", config.Storage.Backend)
		assert.Equal(t, "my-bucket", config.Storage.GCS.Bucket)
	})

	t.Run("flag overrides environment bucket", func(t *testing.T) {
		t.Setenv("GCS_BUCKET", "env-bucket")
		dir := t.TempDir()
		writeConfigFile(t, dir, "storage:\n  backend: gcs\n")

		manager := NewManager(newFlagSet(t, "--bucket-id", "my-bucket"), logr.Discard())
		manager.SetWorkingDir(dir)

		config, err := manager.LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "my-bucket", config.Storage.GCS.Bucket)
	})

	t.Run("file bucket wins", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, "storage:\n  backend: gcs\n  gcs:\n    bucket: file-bucket\n")

		manager := NewManager(newFlagSet(t, "--bucket-id", "my-bucket"), logr.Discard())
		manager.SetWorkingDir(dir)

		config, err := manager.LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "file-bucket", config.Storage.GCS.Bucket)
	})
}
