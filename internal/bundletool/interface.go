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

// Package bundletool wraps the external toolchain that turns an application
// bundle into split APK sets and extracts device-specific splits from them.
package bundletool

//go:generate mockgen -destination=./mock_toolchain.go -package=bundletool . Toolchain

import (
	"context"
)

// Toolchain defines the two operations the server needs from the bundle toolchain
type Toolchain interface {
	// BuildApks produces a device-agnostic split APK set from a bundle, signed with the given keystore
	BuildApks(ctx context.Context, req BuildApksRequest) error

	// ExtractApks extracts the splits matching a device from an APK set and
	// returns the paths of the extracted files
	ExtractApks(ctx context.Context, req ExtractApksRequest) ([]string, error)
}

// BuildApksRequest holds the inputs of a build-apks invocation
type BuildApksRequest struct {
	BundlePath       string
	OutputPath       string
	KeystorePath     string
	KeystorePassword string
	KeyAlias         string
	KeyPassword      string
}

// ExtractApksRequest holds the inputs of an extract-apks invocation
type ExtractApksRequest struct {
	ApksPath  string
	OutputDir string
	Device    DeviceSpec
	// Modules optionally restricts extraction to the named modules
	Modules []string
}

// DeviceSpec describes the capabilities of a target device
type DeviceSpec struct {
	SupportedAbis    []string `json:"supportedAbis"`
	SupportedLocales []string `json:"supportedLocales"`
	DeviceFeatures   []string `json:"deviceFeatures"`
	GlExtensions     []string `json:"glExtensions"`
	ScreenDensity    int      `json:"screenDensity"`
	SdkVersion       int      `json:"sdkVersion"`
}

// WithLocales returns a copy of the spec whose locale list also contains the
// given languages. Existing entries are not duplicated.
func (d DeviceSpec) WithLocales(languages []string) DeviceSpec {
	locales := make([]string, 0, len(d.SupportedLocales)+len(languages))
	seen := make(map[string]bool, cap(locales))
	for _, l := range append(append([]string{}, d.SupportedLocales...), languages...) {
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		locales = append(locales, l)
	}

	out := d
	out.SupportedLocales = locales
	return out
}
