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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"
)

// Flag names understood by the manager
const (
	FlagConfig                      = "config"
	FlagPort                        = "port"
	FlagHost                        = "host"
	FlagUsername                    = "username"
	FlagPassword                    = "password"
	FlagRedirectHTTPS               = "redirect-https"
	FlagStorageBackend              = "storage-backend"
	FlagStoragePath                 = "storage-path"
	FlagBucketID                    = "bucket-id"
	FlagS3Region                    = "s3-region"
	FlagS3Endpoint                  = "s3-endpoint"
	FlagOverrideExistingBundles     = "override-existing-bundles"
	FlagValidateSignatureOnDownload = "validate-signature-on-download"
	FlagScratchDir                  = "scratch-dir"
	FlagBundletool                  = "bundletool"
	FlagVerbosity                   = "verbosity"
	FlagDevelopment                 = "development"
)

// BindFlags registers the configuration flags on fs
func BindFlags(fs *pflag.FlagSet) {
	defaults := DefaultConfig()

	fs.String(FlagConfig, "", "path to a YAML config file (default: ./"+DefaultConfigFile+" when present)")
	fs.Int(FlagPort, defaults.Server.Port, "port to listen on")
	fs.String(FlagHost, defaults.Server.Host, "host to bind and advertise")
	fs.String(FlagUsername, "", "basic auth username")
	fs.String(FlagPassword, "", "basic auth password")
	fs.Bool(FlagRedirectHTTPS, false, "redirect plain HTTP requests to HTTPS")
	fs.String(FlagStorageBackend, defaults.Storage.Backend, "storage backend: local, s3, gcs or memory")
	fs.String(FlagStoragePath, defaults.Storage.Local.Path, "directory for the local storage backend")
	fs.String(FlagBucketID, "", "bucket for the s3 or gcs storage backend")
	fs.String(FlagS3Region, defaults.Storage.S3.Region, "region for the s3 storage backend")
	fs.String(FlagS3Endpoint, "", "custom endpoint for S3-compatible storage")
	fs.Bool(FlagOverrideExistingBundles, false, "allow uploads to replace existing bundles")
	fs.Bool(FlagValidateSignatureOnDownload, false, "require a matching signing fingerprint on download")
	fs.String(FlagScratchDir, "", "directory for temporary files")
	fs.String(FlagBundletool, defaults.Toolchain.Command, "bundletool command line, e.g. \"java -jar bundletool.jar\"")
	fs.Int(FlagVerbosity, 0, "log verbosity")
	fs.Bool(FlagDevelopment, false, "human readable log output")
}

// Manager manages configuration loading from multiple sources
type Manager struct {
	flags      *pflag.FlagSet
	workingDir string
	log        logr.Logger
}

// NewManager creates a new configuration manager. flags may be nil.
func NewManager(flags *pflag.FlagSet, log logr.Logger) *Manager {
	workingDir, _ := os.Getwd()
	return &Manager{
		flags:      flags,
		workingDir: workingDir,
		log:        log,
	}
}

// SetWorkingDir sets the directory searched for the default config file
func (m *Manager) SetWorkingDir(dir string) {
	m.workingDir = dir
}

// LoadConfig loads configuration from all available sources
// Priority order: config file -> flags -> environment variables -> defaults
func (m *Manager) LoadConfig() (*Config, error) {
	// Start with default configuration
	config := DefaultConfig()

	config.LoadFromEnvironment()

	if m.flags != nil {
		if err := applyFlags(m.flags, config); err != nil {
			return nil, err
		}
	}

	beforeFile := config.Storage

	path, explicit := m.configFile()
	if path != "" {
		if err := NewFileLoader(path).LoadConfig(config); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		} else {
			m.log.Info("Configuration loaded from file", "path", path)
		}
	}

	if m.flags != nil {
		resolveBucketFlag(m.flags, config, beforeFile)
	}

	// Validate the final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	m.log.Info("Configuration loaded successfully",
		"storage_backend", config.Storage.Backend,
		"port", config.Server.Port,
		"auth_enabled", config.Server.Username != "",
		"override_existing_bundles", config.Artifacts.OverrideExistingBundles,
		"validate_signature_on_download", config.Artifacts.ValidateSignatureOnDownload)

	return config, nil
}

// configFile returns the config file to load and whether it was requested explicitly
func (m *Manager) configFile() (string, bool) {
	if m.flags != nil {
		if path, err := m.flags.GetString(FlagConfig); err == nil && path != "" {
			return path, true
		}
	}

	candidate := filepath.Join(m.workingDir, DefaultConfigFile)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, false
	}
	return "", false
}

// applyFlags copies explicitly set flags onto config
func applyFlags(fs *pflag.FlagSet, config *Config) error {
	var err error
	set := func(name string, apply func() error) {
		if err != nil || fs.Lookup(name) == nil || !fs.Changed(name) {
			return
		}
		if applyErr := apply(); applyErr != nil {
			err = fmt.Errorf("invalid value for --%s: %w", name, applyErr)
		}
	}

	set(FlagPort, func() (e error) { config.Server.Port, e = fs.GetInt(FlagPort); return })
	set(FlagHost, func() (e error) { config.Server.Host, e = fs.GetString(FlagHost); return })
	set(FlagUsername, func() (e error) { config.Server.Username, e = fs.GetString(FlagUsername); return })
	set(FlagPassword, func() (e error) { config.Server.Password, e = fs.GetString(FlagPassword); return })
	set(FlagRedirectHTTPS, func() (e error) { config.Server.RedirectHTTPS, e = fs.GetBool(FlagRedirectHTTPS); return })
	set(FlagStorageBackend, func() (e error) { config.Storage.Backend, e = fs.GetString(FlagStorageBackend); return })
	set(FlagStoragePath, func() (e error) { config.Storage.Local.Path, e = fs.GetString(FlagStoragePath); return })
	set(FlagBucketID, func() error {
		bucket, e := fs.GetString(FlagBucketID)
		if config.Storage.Backend == "gcs" {
			config.Storage.GCS.Bucket = bucket
		} else {
			config.Storage.S3.Bucket = bucket
		}
		return e
	})
	set(FlagS3Region, func() (e error) { config.Storage.S3.Region, e = fs.GetString(FlagS3Region); return })
	set(FlagS3Endpoint, func() (e error) { config.Storage.S3.Endpoint, e = fs.GetString(FlagS3Endpoint); return })
	set(FlagOverrideExistingBundles, func() (e error) {
		config.Artifacts.OverrideExistingBundles, e = fs.GetBool(FlagOverrideExistingBundles)
		return
	})
	set(FlagValidateSignatureOnDownload, func() (e error) {
		config.Artifacts.ValidateSignatureOnDownload, e = fs.GetBool(FlagValidateSignatureOnDownload)
		return
	})
	set(FlagScratchDir, func() (e error) { config.Artifacts.ScratchDir, e = fs.GetString(FlagScratchDir); return })
	set(FlagBundletool, func() error {
		commandLine, e := fs.GetString(FlagBundletool)
		fields := strings.Fields(commandLine)
		if len(fields) > 0 {
			config.Toolchain.Command = fields[0]
			config.Toolchain.Args = fields[1:]
		}
		return e
	})
	set(FlagVerbosity, func() (e error) { config.Log.Verbosity, e = fs.GetInt(FlagVerbosity); return })
	set(FlagDevelopment, func() (e error) { config.Log.Development, e = fs.GetBool(FlagDevelopment); return })

	return err
}

// resolveBucketFlag re-targets --bucket-id once the backend is final. The file
// may switch the backend after flags were applied; a bucket the file sets
// itself still wins.
func resolveBucketFlag(fs *pflag.FlagSet, config *Config, beforeFile StorageConfig) {
	if fs.Lookup(FlagBucketID) == nil || !fs.Changed(FlagBucketID) {
		return
	}
	bucket, err := fs.GetString(FlagBucketID)
	if err != nil {
		return
	}

	target, previous := &config.Storage.S3.Bucket, beforeFile.S3.Bucket
	if config.Storage.Backend == "gcs" {
		target, previous = &config.Storage.GCS.Bucket, beforeFile.GCS.Bucket
	}
	if *target == previous {
		*target = bucket
	}
}
