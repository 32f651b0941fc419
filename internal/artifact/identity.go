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
	"fmt"
	"strings"
)

// Blob extensions stored for every identity
const (
	ExtBundle   = "aab"
	ExtApks     = "apks"
	ExtSigning  = "json"
	ExtKeystore = "keystore"
)

// Identity addresses one uploaded bundle
type Identity struct {
	ApplicationID string
	Variant       string
	Version       int64
}

// String returns the blob name prefix for the identity
func (i Identity) String() string {
	return fmt.Sprintf("%s_%s_%d", i.ApplicationID, i.Variant, i.Version)
}

// BlobName returns the storage name for the given extension
func (i Identity) BlobName(ext string) string {
	return i.String() + "." + ext
}

// Validate rejects identities that cannot be mapped to a blob name
func (i Identity) Validate() error {
	if i.ApplicationID == "" {
		return fmt.Errorf("application id is required")
	}
	if i.Variant == "" {
		return fmt.Errorf("variant is required")
	}
	for _, part := range []string{i.ApplicationID, i.Variant} {
		if strings.ContainsAny(part, `/\`) || strings.Contains(part, "..") {
			return fmt.Errorf("invalid identity component %q", part)
		}
	}
	return nil
}
