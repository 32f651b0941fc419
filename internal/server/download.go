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
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/oddkinco/local-split-server/internal/artifact"
	"github.com/oddkinco/local-split-server/internal/bundletool"
)

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) error {
	log := logr.FromContextOrDiscard(r.Context())
	query := r.URL.Query()

	id, err := identityFromQuery(query)
	if err != nil {
		return err
	}

	var signature string
	if s.opts.ValidateSignature {
		if signature, err = requiredParam(query, "signature"); err != nil {
			return err
		}
	}

	selection := artifact.Selection{
		Modules:   listParam(query, "features"),
		Languages: listParam(query, "languages"),
	}

	var throttle time.Duration
	if raw := query.Get("throttle"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ms < 0 {
			return badRequest("query parameter %q must be a non-negative integer", "throttle")
		}
		throttle = time.Duration(ms) * time.Millisecond
	}

	if raw := query.Get("include-missing"); raw != "" {
		includeMissing, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest("query parameter %q must be a boolean", "include-missing")
		}
		selection.IncludeMissing = includeMissing
	}

	device, err := s.deviceSpec(r, query)
	if err != nil {
		return err
	}

	if s.opts.ValidateSignature {
		if err := s.artifacts.ValidateSignature(r.Context(), id, signature); err != nil {
			return err
		}
	}

	zipPath, err := s.artifacts.Derive(r.Context(), id, device, selection)
	if err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(zipPath); err != nil && !os.IsNotExist(err) {
			log.Error(err, "Failed to remove derived archive", "path", zipPath)
		}
	}()

	file, err := os.Open(zipPath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename=splits.zip")
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.WriteHeader(http.StatusOK)

	writer := &throttledWriter{
		w:        w,
		throttle: throttle,
		onChunk: func(written, total int64) {
			log.V(1).Info("Download progress", "identity", id.String(), "percent", progressPercent(written, total))
		},
	}

	written, err := writer.Stream(r.Context(), file, info.Size())
	s.metrics.AddBytesStreamed(written)
	if err != nil {
		return err
	}

	log.Info("Splits delivered", "identity", id.String(), "bytes", written, "throttle", throttle.String())
	return nil
}

// deviceSpec resolves the device from a registered id or the JSON request body
func (s *Server) deviceSpec(r *http.Request, query url.Values) (bundletool.DeviceSpec, error) {
	if deviceID := query.Get("device-id"); deviceID != "" {
		if s.devices == nil {
			return bundletool.DeviceSpec{}, badRequest("device registration is disabled")
		}
		spec, err := s.devices.Lookup(deviceID)
		if err != nil {
			return bundletool.DeviceSpec{}, badRequest("%v", err)
		}
		return spec, nil
	}

	return decodeDeviceSpec(r.Body)
}

func decodeDeviceSpec(body io.Reader) (bundletool.DeviceSpec, error) {
	var spec bundletool.DeviceSpec
	if body == nil {
		return spec, badRequest("missing device spec body")
	}
	if err := json.NewDecoder(body).Decode(&spec); err != nil {
		if errors.Is(err, io.EOF) {
			return spec, badRequest("missing device spec body")
		}
		return spec, badRequest("invalid device spec: %v", err)
	}
	return spec, nil
}

func identityFromQuery(query url.Values) (artifact.Identity, error) {
	applicationID, err := requiredParam(query, "application-id")
	if err != nil {
		return artifact.Identity{}, err
	}

	versionText, err := requiredParam(query, "version")
	if err != nil {
		return artifact.Identity{}, err
	}
	version, err := strconv.ParseInt(versionText, 10, 64)
	if err != nil {
		return artifact.Identity{}, badRequest("query parameter %q must be an integer", "version")
	}

	variant, err := requiredParam(query, "variant")
	if err != nil {
		return artifact.Identity{}, err
	}

	id := artifact.Identity{ApplicationID: applicationID, Variant: variant, Version: version}
	if err := id.Validate(); err != nil {
		return artifact.Identity{}, badRequest("%v", err)
	}
	return id, nil
}

func requiredParam(query url.Values, name string) (string, error) {
	value := strings.TrimSpace(query.Get(name))
	if value == "" {
		return "", badRequest("missing required query parameter %q", name)
	}
	return value, nil
}

// listParam collects a repeatable, comma separated query parameter
func listParam(query url.Values, name string) []string {
	var out []string
	for _, value := range query[name] {
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}
