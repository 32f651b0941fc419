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

// Package config provides configuration management for the split server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the configuration for the split server
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server" yaml:"server"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Artifacts configuration
	Artifacts ArtifactsConfig `json:"artifacts" yaml:"artifacts"`

	// Toolchain configuration
	Toolchain ToolchainConfig `json:"toolchain" yaml:"toolchain"`

	// Devices configuration
	Devices DevicesConfig `json:"devices" yaml:"devices"`

	// Metrics configuration
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Log configuration
	Log LogConfig `json:"log" yaml:"log"`
}

// ServerConfig holds HTTP listener and admission configuration
type ServerConfig struct {
	// Host to bind and advertise
	Host string `json:"host" yaml:"host"`

	// Port to listen on
	Port int `json:"port" yaml:"port"`

	// Basic auth credentials; authentication is enabled only when both are set
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`

	// RedirectHTTPS redirects plain HTTP requests to HTTPS
	RedirectHTTPS bool `json:"redirectHttps" yaml:"redirectHttps"`
}

// StorageConfig holds storage backend configuration
type StorageConfig struct {
	// Backend type: "local", "s3", "gcs" or "memory"
	Backend string `json:"backend" yaml:"backend"`

	// Local configuration (used when Backend is "local")
	Local LocalConfig `json:"local" yaml:"local"`

	// S3 configuration (used when Backend is "s3")
	S3 S3Config `json:"s3" yaml:"s3"`

	// GCS configuration (used when Backend is "gcs")
	GCS GCSConfig `json:"gcs" yaml:"gcs"`
}

// LocalConfig holds local filesystem storage configuration
type LocalConfig struct {
	// Path of the directory holding the blobs
	Path string `json:"path" yaml:"path"`
}

// S3Config holds S3-compatible storage configuration
type S3Config struct {
	// Bucket name for storing artifacts
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region for S3
	Region string `json:"region" yaml:"region"`

	// Endpoint URL for S3-compatible storage such as MinIO
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Prefix prepended to every object key
	Prefix string `json:"prefix" yaml:"prefix"`
}

// GCSConfig holds Google Cloud Storage configuration
type GCSConfig struct {
	// Bucket name for storing artifacts
	Bucket string `json:"bucket" yaml:"bucket"`

	// Prefix prepended to every object name
	Prefix string `json:"prefix" yaml:"prefix"`
}

// ArtifactsConfig holds artifact pipeline configuration
type ArtifactsConfig struct {
	// OverrideExistingBundles lets an upload replace a stored identity
	OverrideExistingBundles bool `json:"overrideExistingBundles" yaml:"overrideExistingBundles"`

	// ValidateSignatureOnDownload requires a matching fingerprint on every download
	ValidateSignatureOnDownload bool `json:"validateSignatureOnDownload" yaml:"validateSignatureOnDownload"`

	// ScratchDir holds working directories and derived archives; empty means the system temp dir
	ScratchDir string `json:"scratchDir" yaml:"scratchDir"`
}

// ToolchainConfig holds bundletool invocation configuration
type ToolchainConfig struct {
	// Command is the executable to run
	Command string `json:"command" yaml:"command"`

	// Args are prepended to every invocation, e.g. ["-jar", "bundletool.jar"]
	Args []string `json:"args" yaml:"args"`

	// Timeout bounds a single invocation; zero disables it
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// DevicesConfig holds device registration configuration
type DevicesConfig struct {
	// RegistrationTTL is how long a registered device spec is kept
	RegistrationTTL time.Duration `json:"registrationTTL" yaml:"registrationTTL"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	// Enable the metrics route
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	// Verbosity is the logr V-level that is still printed
	Verbosity int `json:"verbosity" yaml:"verbosity"`

	// Development enables human readable console output
	Development bool `json:"development" yaml:"development"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
		},
		Storage: StorageConfig{
			Backend: "local",
			Local: LocalConfig{
				Path: "bundles",
			},
			S3: S3Config{
				Region: "us-east-1",
			},
		},
		Toolchain: ToolchainConfig{
			Command: "bundletool",
			Timeout: 10 * time.Minute,
		},
		Devices: DevicesConfig{
			RegistrationTTL: 24 * time.Hour,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// LoadFromEnvironment loads configuration from environment variables
func (c *Config) LoadFromEnvironment() {
	c.loadServerFromEnv()
	c.loadStorageFromEnv()
	c.loadArtifactsFromEnv()
	c.loadToolchainFromEnv()
	c.loadDevicesFromEnv()
	c.loadMetricsFromEnv()
}

// loadServerFromEnv loads server configuration from environment variables
func (c *Config) loadServerFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if portStr := os.Getenv("SERVER_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			c.Server.Port = port
		}
	}
	if username := os.Getenv("SERVER_USERNAME"); username != "" {
		c.Server.Username = username
	}
	if password := os.Getenv("SERVER_PASSWORD"); password != "" {
		c.Server.Password = password
	}
	if redirectStr := os.Getenv("SERVER_REDIRECT_HTTPS"); redirectStr != "" {
		if redirect, err := strconv.ParseBool(redirectStr); err == nil {
			c.Server.RedirectHTTPS = redirect
		}
	}
}

// loadStorageFromEnv loads storage configuration from environment variables
func (c *Config) loadStorageFromEnv() {
	if backend := os.Getenv("STORAGE_BACKEND"); backend != "" {
		c.Storage.Backend = backend
	}
	if path := os.Getenv("STORAGE_LOCAL_PATH"); path != "" {
		c.Storage.Local.Path = path
	}

	// S3 configuration
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		c.Storage.S3.Bucket = bucket
	}
	if region := os.Getenv("S3_REGION"); region != "" {
		c.Storage.S3.Region = region
	}
	if endpoint := os.Getenv("S3_ENDPOINT"); endpoint != "" {
		c.Storage.S3.Endpoint = endpoint
	}
	if prefix := os.Getenv("S3_PREFIX"); prefix != "" {
		c.Storage.S3.Prefix = prefix
	}

	// GCS configuration
	if bucket := os.Getenv("GCS_BUCKET"); bucket != "" {
		c.Storage.GCS.Bucket = bucket
	}
	if prefix := os.Getenv("GCS_PREFIX"); prefix != "" {
		c.Storage.GCS.Prefix = prefix
	}
}

// loadArtifactsFromEnv loads artifact configuration from environment variables
func (c *Config) loadArtifactsFromEnv() {
	if overrideStr := os.Getenv("OVERRIDE_EXISTING_BUNDLES"); overrideStr != "" {
		if override, err := strconv.ParseBool(overrideStr); err == nil {
			c.Artifacts.OverrideExistingBundles = override
		}
	}
	if validateStr := os.Getenv("VALIDATE_SIGNATURE_ON_DOWNLOAD"); validateStr != "" {
		if validate, err := strconv.ParseBool(validateStr); err == nil {
			c.Artifacts.ValidateSignatureOnDownload = validate
		}
	}
	if scratchDir := os.Getenv("SCRATCH_DIR"); scratchDir != "" {
		c.Artifacts.ScratchDir = scratchDir
	}
}

// loadToolchainFromEnv loads toolchain configuration from environment variables
func (c *Config) loadToolchainFromEnv() {
	if command := os.Getenv("BUNDLETOOL_COMMAND"); command != "" {
		c.Toolchain.Command = command
	}
	if args := os.Getenv("BUNDLETOOL_ARGS"); args != "" {
		c.Toolchain.Args = strings.Fields(args)
	}
	if timeoutStr := os.Getenv("BUNDLETOOL_TIMEOUT"); timeoutStr != "" {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil {
			c.Toolchain.Timeout = timeout
		}
	}
}

// loadDevicesFromEnv loads device registration configuration from environment variables
func (c *Config) loadDevicesFromEnv() {
	if ttlStr := os.Getenv("DEVICE_REGISTRATION_TTL"); ttlStr != "" {
		if ttl, err := time.ParseDuration(ttlStr); err == nil {
			c.Devices.RegistrationTTL = ttl
		}
	}
}

// loadMetricsFromEnv loads metrics configuration from environment variables
func (c *Config) loadMetricsFromEnv() {
	if enabledStr := os.Getenv("METRICS_ENABLED"); enabledStr != "" {
		if enabled, err := strconv.ParseBool(enabledStr); err == nil {
			c.Metrics.Enabled = enabled
		}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate server configuration
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 0 and 65535")
	}
	if (c.Server.Username == "") != (c.Server.Password == "") {
		return fmt.Errorf("server username and password must be set together")
	}

	// Validate storage configuration
	switch c.Storage.Backend {
	case "local":
		if c.Storage.Local.Path == "" {
			return fmt.Errorf("local storage path is required when using local storage backend")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required when using S3 storage backend")
		}
		if c.Storage.S3.Region == "" {
			return fmt.Errorf("S3 region is required when using S3 storage backend")
		}
	case "gcs":
		if c.Storage.GCS.Bucket == "" {
			return fmt.Errorf("GCS bucket is required when using GCS storage backend")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid storage backend: %s (must be 'local', 's3', 'gcs' or 'memory')", c.Storage.Backend)
	}

	// Validate toolchain configuration
	if c.Toolchain.Command == "" {
		return fmt.Errorf("bundletool command is required")
	}
	if c.Toolchain.Timeout < 0 {
		return fmt.Errorf("bundletool timeout must be non-negative")
	}

	// Validate device configuration
	if c.Devices.RegistrationTTL <= 0 {
		return fmt.Errorf("device registration TTL must be positive")
	}

	if c.Log.Verbosity < 0 {
		return fmt.Errorf("log verbosity must be non-negative")
	}

	return nil
}
