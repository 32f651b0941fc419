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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	"github.com/mholt/archives"

	"github.com/oddkinco/local-split-server/internal/bundletool"
	"github.com/oddkinco/local-split-server/internal/metrics"
	"github.com/oddkinco/local-split-server/internal/storage"
)

// Options configures a Manager
type Options struct {
	// OverrideExisting allows an upload to replace an existing identity
	OverrideExisting bool

	// ScratchDir holds per-request working directories and derived archives
	ScratchDir string
}

// Manager implements the ArtifactManager interface
type Manager struct {
	storage          storage.Backend
	toolchain        bundletool.Toolchain
	metrics          metrics.MetricsRecorder
	log              logr.Logger
	overrideExisting bool
	scratchDir       string
	locks            *keyedMutex
}

// NewManager creates a new artifact manager with the given storage backend and toolchain
func NewManager(backend storage.Backend, toolchain bundletool.Toolchain, recorder metrics.MetricsRecorder, opts Options, log logr.Logger) *Manager {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Manager{
		storage:          backend,
		toolchain:        toolchain,
		metrics:          recorder,
		log:              log.WithName("artifact"),
		overrideExisting: opts.OverrideExisting,
		scratchDir:       opts.ScratchDir,
		locks:            newKeyedMutex(),
	}
}

// Ingest converts an uploaded bundle into an APK set and persists the APK set,
// bundle, signing config and keystore in that order
func (m *Manager) Ingest(ctx context.Context, id Identity, signingConfig []byte, bundle, keystore io.Reader) error {
	start := time.Now()
	err := m.ingest(ctx, id, signingConfig, bundle, keystore)
	m.metrics.RecordArtifactOperation("ingest", resultLabel(err), time.Since(start))
	return err
}

func (m *Manager) ingest(ctx context.Context, id Identity, rawSigning []byte, bundle, keystore io.Reader) error {
	if err := id.Validate(); err != nil {
		return err
	}

	signing, err := ParseSigningConfig(rawSigning)
	if err != nil {
		return err
	}

	unlock := m.locks.Lock(id.String())
	defer unlock()

	log := m.log.WithValues("identity", id.String())

	if !m.overrideExisting {
		exists, err := m.storage.Exists(ctx, id.BlobName(ExtApks))
		if err != nil {
			return fmt.Errorf("failed to check for existing bundle: %w", err)
		}
		if exists {
			return newError(BundleExists, "bundle %s already exists", id)
		}
	}

	workDir, err := os.MkdirTemp(m.scratchDir, "ingest-*")
	if err != nil {
		return fmt.Errorf("failed to create working directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	bundlePath := filepath.Join(workDir, "bundle.aab")
	if err := writeFile(bundlePath, bundle); err != nil {
		return fmt.Errorf("failed to write bundle: %w", err)
	}
	keystorePath := filepath.Join(workDir, "signing.keystore")
	if err := writeFile(keystorePath, keystore); err != nil {
		return fmt.Errorf("failed to write keystore: %w", err)
	}
	apksPath := filepath.Join(workDir, "bundle.apks")

	log.V(1).Info("Building APK set")
	err = m.invoke("build-apks", func() error {
		return m.toolchain.BuildApks(ctx, bundletool.BuildApksRequest{
			BundlePath:       bundlePath,
			OutputPath:       apksPath,
			KeystorePath:     keystorePath,
			KeystorePassword: signing.StorePassword,
			KeyAlias:         signing.KeyAlias,
			KeyPassword:      signing.KeyPassword,
		})
	})
	if err != nil {
		return wrapError(BuildApksFailure, err, "failed to build APKs for %s", id)
	}

	// Writes are not transactional: a failure leaves earlier blobs in place.
	if err := m.storeFile(ctx, apksPath, id.BlobName(ExtApks)); err != nil {
		return err
	}
	if err := m.storeFile(ctx, bundlePath, id.BlobName(ExtBundle)); err != nil {
		return err
	}
	if err := m.storage.Store(ctx, id.BlobName(ExtSigning), "application/json", bytes.NewReader(rawSigning)); err != nil {
		return fmt.Errorf("failed to store signing config: %w", err)
	}
	if err := m.storeFile(ctx, keystorePath, id.BlobName(ExtKeystore)); err != nil {
		return err
	}

	log.Info("Bundle ingested")
	return nil
}

// Derive extracts the requested splits for a device and zips them. The returned
// archive lives in the scratch directory and must be removed by the caller.
func (m *Manager) Derive(ctx context.Context, id Identity, device bundletool.DeviceSpec, selection Selection) (string, error) {
	start := time.Now()
	path, err := m.derive(ctx, id, device, selection)
	m.metrics.RecordArtifactOperation("derive", resultLabel(err), time.Since(start))
	return path, err
}

func (m *Manager) derive(ctx context.Context, id Identity, device bundletool.DeviceSpec, selection Selection) (string, error) {
	if len(selection.Modules) == 0 && len(selection.Languages) == 0 {
		return "", newError(MissingFeaturesAndLanguages, "at least one feature or language must be requested")
	}
	if err := id.Validate(); err != nil {
		return "", err
	}

	unlock := m.locks.Lock(id.String())
	defer unlock()

	apks, err := m.storage.Retrieve(ctx, id.BlobName(ExtApks))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", newError(BundleNotFound, "bundle %s not found", id)
		}
		return "", fmt.Errorf("failed to retrieve APK set: %w", err)
	}
	defer apks.Release()

	workDir, err := os.MkdirTemp(m.scratchDir, "derive-*")
	if err != nil {
		return "", fmt.Errorf("failed to create working directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	var splits []string
	err = m.invoke("extract-apks", func() error {
		var extractErr error
		splits, extractErr = m.toolchain.ExtractApks(ctx, bundletool.ExtractApksRequest{
			ApksPath:  apks.Path,
			OutputDir: filepath.Join(workDir, "splits"),
			Device:    device.WithLocales(selection.Languages),
			Modules:   selection.Modules,
		})
		return extractErr
	})
	if err != nil {
		return "", wrapError(ExtractApksFailure, err, "failed to extract APKs for %s", id)
	}

	keep, discard := selectSplits(splits, selection)
	for _, path := range discard {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			m.log.V(1).Info("Failed to remove discarded split", "path", path, "error", err.Error())
		}
	}

	m.log.V(1).Info("Splits selected", "identity", id.String(), "kept", len(keep), "discarded", len(discard))

	return m.zipSplits(ctx, keep)
}

// ValidateSignature compares fingerprint with the fingerprint of the stored keystore
func (m *Manager) ValidateSignature(ctx context.Context, id Identity, fingerprint string) error {
	start := time.Now()
	err := m.validateSignature(ctx, id, fingerprint)
	m.metrics.RecordArtifactOperation("validate_signature", resultLabel(err), time.Since(start))
	return err
}

func (m *Manager) validateSignature(ctx context.Context, id Identity, fingerprint string) error {
	actual, err := m.Fingerprint(ctx, id)
	if err != nil {
		return err
	}
	if actual != fingerprint {
		return newError(SignatureMismatch, "signature does not match bundle %s", id)
	}
	return nil
}

// Fingerprint computes the signing certificate fingerprint of a stored bundle
func (m *Manager) Fingerprint(ctx context.Context, id Identity) (string, error) {
	if err := id.Validate(); err != nil {
		return "", err
	}

	keystore, err := m.retrieveSigningBlob(ctx, id, ExtKeystore)
	if err != nil {
		return "", err
	}
	defer keystore.Release()

	signingBlob, err := m.retrieveSigningBlob(ctx, id, ExtSigning)
	if err != nil {
		return "", err
	}
	defer signingBlob.Release()

	data, err := os.ReadFile(signingBlob.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read signing config: %w", err)
	}
	signing, err := ParseSigningConfig(data)
	if err != nil {
		return "", err
	}

	chain, err := LoadCertificateChain(keystore.Path, signing.StorePassword, signing.KeyAlias)
	if err != nil {
		return "", wrapError(SignatureNotFound, err, "failed to load keystore for %s", id)
	}
	if len(chain) == 0 {
		return "", newError(SignatureNotFound, "no certificate found for bundle %s", id)
	}

	return ComputeFingerprint(chain), nil
}

func (m *Manager) retrieveSigningBlob(ctx context.Context, id Identity, ext string) (*storage.LocalCopy, error) {
	local, err := m.storage.Retrieve(ctx, id.BlobName(ext))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newError(SignatureNotFound, "signing material for %s not found", id)
		}
		return nil, fmt.Errorf("failed to retrieve %s: %w", id.BlobName(ext), err)
	}
	return local, nil
}

func (m *Manager) storeFile(ctx context.Context, path, name string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	if err := m.storage.Store(ctx, name, "application/octet-stream", file); err != nil {
		return fmt.Errorf("failed to store %s: %w", name, err)
	}
	return nil
}

func (m *Manager) zipSplits(ctx context.Context, paths []string) (string, error) {
	filenames := make(map[string]string, len(paths))
	for _, path := range paths {
		filenames[path] = filepath.Base(path)
	}

	files, err := archives.FilesFromDisk(ctx, nil, filenames)
	if err != nil {
		return "", fmt.Errorf("failed to collect splits: %w", err)
	}

	out, err := os.CreateTemp(m.scratchDir, "splits-*.zip")
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	if err := (archives.Zip{}).Archive(ctx, out, files); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", fmt.Errorf("failed to write archive: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("failed to close archive: %w", err)
	}

	return out.Name(), nil
}

func (m *Manager) invoke(command string, fn func() error) error {
	start := time.Now()
	err := fn()
	m.metrics.RecordToolchainInvocation(command, err == nil, time.Since(start))
	return err
}

func writeFile(path string, r io.Reader) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, r); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	var artifactErr *Error
	if errors.As(err, &artifactErr) {
		return artifactErr.Kind.String()
	}
	return "error"
}
