/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package artifact

import (
	"context"
	"io"

	"github.com/oddkinco/local-split-server/internal/bundletool"
)

// ArtifactManager defines the interface for ingesting bundles and deriving split archives
type ArtifactManager interface {
	// Ingest converts an uploaded bundle into a device-neutral APK set and persists
	// the APK set, bundle, signing config and keystore under the identity
	Ingest(ctx context.Context, id Identity, signingConfig []byte, bundle, keystore io.Reader) error

	// Derive extracts the splits matching the device and selection from a stored
	// APK set and returns the path of a zip archive the caller must remove
	Derive(ctx context.Context, id Identity, device bundletool.DeviceSpec, selection Selection) (string, error)

	// ValidateSignature compares a client supplied fingerprint with the one
	// computed from the stored keystore
	ValidateSignature(ctx context.Context, id Identity, fingerprint string) error
}

// Selection narrows the splits returned by Derive
type Selection struct {
	// Modules are feature module names to include
	Modules []string `json:"modules,omitempty"`

	// Languages are language codes to include, also added to the device locales
	Languages []string `json:"languages,omitempty"`

	// IncludeMissing adds base module resource splits other than the primary base split
	IncludeMissing bool `json:"includeMissing,omitempty"`
}

// SigningConfig is the signing metadata uploaded alongside a bundle
type SigningConfig struct {
	StorePassword string `json:"storePassword"`
	KeyPassword   string `json:"keyPassword"`
	KeyAlias      string `json:"keyAlias"`
	StoreFile     string `json:"storeFile,omitempty"`
}
