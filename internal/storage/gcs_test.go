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

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

type fakeGCSObject struct {
	data        []byte
	contentType string
}

// fakeGCS serves the subset of the GCS JSON and XML APIs the backend uses
type fakeGCS struct {
	mu      sync.Mutex
	objects map[string]fakeGCSObject
}

func newFakeGCS() *fakeGCS {
	return &fakeGCS{objects: make(map[string]fakeGCSObject)}
}

func (f *fakeGCS) get(bucket, name string) (fakeGCSObject, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[bucket+"/"+name]
	return obj, ok
}

func (f *fakeGCS) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func (f *fakeGCS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.EscapedPath()
	switch {
	case strings.HasPrefix(path, "/upload/storage/v1/b/"):
		f.upload(w, r, strings.TrimSuffix(strings.TrimPrefix(path, "/upload/storage/v1/b/"), "/o"))
	case strings.HasPrefix(path, "/storage/v1/b/"):
		rest := strings.TrimPrefix(path, "/storage/v1/b/")
		bucket, escaped, ok := strings.Cut(rest, "/o/")
		if !ok {
			http.Error(w, "unsupported path", http.StatusBadRequest)
			return
		}
		name, err := url.PathUnescape(escaped)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.object(w, r, bucket, name)
	default:
		// XML API media reads: /<bucket>/<object>
		bucket, escaped, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
		name, err := url.PathUnescape(escaped)
		if err != nil || r.Method != http.MethodGet {
			http.Error(w, "unsupported request", http.StatusBadRequest)
			return
		}
		obj, found := f.get(bucket, name)
		if !found {
			http.Error(w, "NoSuchKey", http.StatusNotFound)
			return
		}
		writeMedia(w, obj)
	}
}

func (f *fakeGCS) upload(w http.ResponseWriter, r *http.Request, bucket string) {
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		http.Error(w, "only multipart uploads are supported", http.StatusBadRequest)
		return
	}

	mr := multipart.NewReader(r.Body, params["boundary"])
	metaPart, err := mr.NextPart()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var meta struct {
		Name        string `json:"name"`
		ContentType string `json:"contentType"`
	}
	if err := json.NewDecoder(metaPart).Decode(&meta); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	mediaPart, err := mr.NextPart()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, err := io.ReadAll(mediaPart)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if meta.Name == "" {
		meta.Name = r.URL.Query().Get("name")
	}
	if meta.ContentType == "" {
		meta.ContentType = mediaPart.Header.Get("Content-Type")
	}

	obj := fakeGCSObject{data: data, contentType: meta.ContentType}
	f.mu.Lock()
	f.objects[bucket+"/"+meta.Name] = obj
	f.mu.Unlock()

	writeObjectResource(w, bucket, meta.Name, obj)
}

func (f *fakeGCS) object(w http.ResponseWriter, r *http.Request, bucket, name string) {
	obj, found := f.get(bucket, name)
	if !found {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"No such object"}}`))
		return
	}

	switch r.Method {
	case http.MethodGet:
		if r.URL.Query().Get("alt") == "media" {
			writeMedia(w, obj)
			return
		}
		writeObjectResource(w, bucket, name, obj)
	case http.MethodDelete:
		f.mu.Lock()
		delete(f.objects, bucket+"/"+name)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "unsupported method", http.StatusMethodNotAllowed)
	}
}

func writeMedia(w http.ResponseWriter, obj fakeGCSObject) {
	w.Header().Set("Content-Type", obj.contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.data)))
	w.Header().Set("X-Goog-Generation", "1")
	w.Header().Set("X-Goog-Metageneration", "1")
	_, _ = w.Write(obj.data)
}

func writeObjectResource(w http.ResponseWriter, bucket, name string, obj fakeGCSObject) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"kind":           "storage#object",
		"bucket":         bucket,
		"name":           name,
		"contentType":    obj.contentType,
		"size":           strconv.Itoa(len(obj.data)),
		"generation":     "1",
		"metageneration": "1",
	})
}

func newTestGCSBackend(t *testing.T, prefix string) (*GCSBackend, *fakeGCS) {
	t.Helper()
	fake := newFakeGCS()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := storage.NewClient(context.Background(),
		option.WithEndpoint(srv.URL+"/storage/v1/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)

	backend := NewGCSBackendWithClient(client, "release-bundles", prefix)
	t.Cleanup(func() { _ = backend.Close() })
	return backend, fake
}

func TestGCSBackend_RoundTrip(t *testing.T) {
	backend, fake := newTestGCSBackend(t, "splits/")
	ctx := context.Background()
	name := "com.example.app_release_3.apks"

	exists, err := backend.Exists(ctx, name)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, backend.Store(ctx, name, "application/octet-stream", strings.NewReader("apk set v1")))

	obj, ok := fake.get("release-bundles", "splits/"+name)
	require.True(t, ok, "object should be stored under the prefix")
	assert.Equal(t, "apk set v1", string(obj.data))
	assert.Equal(t, "application/octet-stream", obj.contentType)

	exists, err = backend.Exists(ctx, name)
	require.NoError(t, err)
	assert.True(t, exists)

	local, err := backend.Retrieve(ctx, name)
	require.NoError(t, err)
	data, err := os.ReadFile(local.Path)
	require.NoError(t, err)
	assert.Equal(t, "apk set v1", string(data))
	require.NoError(t, local.Release())
	_, err = os.Stat(local.Path)
	assert.True(t, os.IsNotExist(err))

	// Store overwrites
	require.NoError(t, backend.Store(ctx, name, "application/octet-stream", strings.NewReader("apk set v2")))
	local, err = backend.Retrieve(ctx, name)
	require.NoError(t, err)
	data, err = os.ReadFile(local.Path)
	require.NoError(t, err)
	assert.Equal(t, "apk set v2", string(data))
	require.NoError(t, local.Release())
	assert.Equal(t, 1, fake.len())

	require.NoError(t, backend.Delete(ctx, name))
	exists, err = backend.Exists(ctx, name)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGCSBackend_NotFound(t *testing.T) {
	backend, _ := newTestGCSBackend(t, "")
	ctx := context.Background()

	_, err := backend.Retrieve(ctx, "missing.apks")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	exists, err := backend.Exists(ctx, "missing.apks")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.NoError(t, backend.Delete(ctx, "missing.apks"), "deleting a missing object is not an error")
}

func TestGCSBackend_FailedStoreLeavesNothingVisible(t *testing.T) {
	backend, fake := newTestGCSBackend(t, "")
	ctx := context.Background()

	err := backend.Store(ctx, "blob", "", io.MultiReader(strings.NewReader("partial"), failingReader{}))
	require.Error(t, err)

	exists, err := backend.Exists(ctx, "blob")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Zero(t, fake.len())
}
