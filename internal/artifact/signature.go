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
	"crypto/sha1" //nolint:gosec // fingerprints are SHA-1 by convention
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pavlo-v-chernykh/keystore-go/v4"
	"software.sslmate.com/src/go-pkcs12"
)

var jksMagic = []byte{0xFE, 0xED, 0xFE, 0xED}

// ParseSigningConfig decodes and validates uploaded signing metadata
func ParseSigningConfig(data []byte) (*SigningConfig, error) {
	var config SigningConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse signing config: %w", err)
	}

	if strings.TrimSpace(config.StorePassword) == "" {
		return nil, newError(KeystorePassMissing, "signing config is missing storePassword")
	}
	if strings.TrimSpace(config.KeyPassword) == "" {
		return nil, newError(KeyPassMissing, "signing config is missing keyPassword")
	}
	if strings.TrimSpace(config.KeyAlias) == "" {
		return nil, newError(KeyAliasMissing, "signing config is missing keyAlias")
	}

	return &config, nil
}

// LoadCertificateChain returns the DER encoded certificate chain for alias.
// JKS keystores are detected by their magic number; anything else is read as
// PKCS#12, where the alias is ignored.
func LoadCertificateChain(path, storePassword, alias string) ([][]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}

	if !bytes.HasPrefix(data, jksMagic) {
		_, cert, caCerts, err := pkcs12.DecodeChain(data, storePassword)
		if err != nil {
			return nil, fmt.Errorf("failed to decode PKCS#12 keystore: %w", err)
		}
		chain := [][]byte{cert.Raw}
		for _, ca := range caCerts {
			chain = append(chain, ca.Raw)
		}
		return chain, nil
	}

	ks := keystore.New()
	if err := ks.Load(bytes.NewReader(data), []byte(storePassword)); err != nil {
		return nil, fmt.Errorf("failed to load JKS keystore: %w", err)
	}

	var certs []keystore.Certificate
	switch {
	case ks.IsPrivateKeyEntry(alias):
		certs, err = ks.GetPrivateKeyEntryCertificateChain(alias)
		if err != nil {
			return nil, fmt.Errorf("failed to read certificate chain for %q: %w", alias, err)
		}
	case ks.IsTrustedCertificateEntry(alias):
		entry, err := ks.GetTrustedCertificateEntry(alias)
		if err != nil {
			return nil, fmt.Errorf("failed to read certificate for %q: %w", alias, err)
		}
		certs = []keystore.Certificate{entry.Certificate}
	default:
		return nil, fmt.Errorf("alias %q not found in keystore", alias)
	}

	chain := make([][]byte, 0, len(certs))
	for _, cert := range certs {
		chain = append(chain, cert.Content)
	}
	return chain, nil
}

// ComputeFingerprint returns the SHA-1 fingerprint of the last certificate in
// the chain as colon separated uppercase hex pairs.
func ComputeFingerprint(chain [][]byte) string {
	var fingerprint string
	for _, der := range chain {
		sum := sha1.Sum(der) //nolint:gosec
		pairs := make([]string, len(sum))
		for i, b := range sum {
			pairs[i] = fmt.Sprintf("%02X", b)
		}
		// each certificate replaces the previous value
		fingerprint = strings.Join(pairs, ":")
	}
	return fingerprint
}

// FingerprintFromFile loads a keystore and computes its fingerprint
func FingerprintFromFile(path, storePassword, alias string) (string, error) {
	chain, err := LoadCertificateChain(path, storePassword, alias)
	if err != nil {
		return "", err
	}
	if len(chain) == 0 {
		return "", fmt.Errorf("no certificates found for alias %q", alias)
	}
	return ComputeFingerprint(chain), nil
}
