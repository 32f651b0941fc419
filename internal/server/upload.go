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

package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-logr/logr"

	"github.com/oddkinco/local-split-server/internal/artifact"
)

// Upload form parts, checked in this order
const (
	partBundle        = "bundle"
	partVersion       = "version"
	partApplicationID = "application-id"
	partVariant       = "variant"
	partSigningConfig = "signing-config"
	partKeystore      = "keystore"
)

// maxTextPartSize bounds text parts sent as file uploads
const maxTextPartSize = 1 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) error {
	log := logr.FromContextOrDiscard(r.Context())

	if err := r.ParseMultipartForm(s.opts.MaxUploadMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return badRequest("expected a multipart/form-data body")
		}
		return badRequest("failed to parse multipart body: %v", err)
	}
	form := r.MultipartForm
	defer form.RemoveAll()

	bundle, err := openPart(form, partBundle)
	if err != nil {
		return err
	}
	defer bundle.Close()

	versionText, err := textPart(form, partVersion)
	if err != nil {
		return err
	}
	version, err := strconv.ParseInt(strings.TrimSpace(versionText), 10, 64)
	if err != nil {
		return badRequest("part %q must be an integer", partVersion)
	}

	applicationID, err := textPart(form, partApplicationID)
	if err != nil {
		return err
	}

	variant, err := textPart(form, partVariant)
	if err != nil {
		return err
	}

	signingConfig, err := textPart(form, partSigningConfig)
	if err != nil {
		return err
	}
	if !json.Valid([]byte(signingConfig)) {
		return badRequest("part %q is not valid JSON", partSigningConfig)
	}

	keystore, err := openPart(form, partKeystore)
	if err != nil {
		return err
	}
	defer keystore.Close()

	id := artifact.Identity{
		ApplicationID: strings.TrimSpace(applicationID),
		Variant:       strings.TrimSpace(variant),
		Version:       version,
	}
	if err := id.Validate(); err != nil {
		return badRequest("%v", err)
	}

	log.Info("Ingesting bundle", "identity", id.String())

	if err := s.artifacts.Ingest(r.Context(), id, []byte(signingConfig), bundle, keystore); err != nil {
		return err
	}

	w.WriteHeader(http.StatusOK)
	return nil
}

// openPart returns the named part whether it was sent as a file or a plain field
func openPart(form *multipart.Form, name string) (io.ReadCloser, error) {
	if files := form.File[name]; len(files) > 0 {
		file, err := files[0].Open()
		if err != nil {
			return nil, badRequest("failed to read part %q: %v", name, err)
		}
		return file, nil
	}
	if values := form.Value[name]; len(values) > 0 {
		return io.NopCloser(strings.NewReader(values[0])), nil
	}
	return nil, badRequest("missing required part %q", name)
}

func textPart(form *multipart.Form, name string) (string, error) {
	part, err := openPart(form, name)
	if err != nil {
		return "", err
	}
	defer part.Close()

	data, err := io.ReadAll(io.LimitReader(part, maxTextPartSize))
	if err != nil {
		return "", badRequest("failed to read part %q: %v", name, err)
	}
	return string(data), nil
}
