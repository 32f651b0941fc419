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

// Package device keeps short-lived device registrations so clients can send a
// device spec once and refer to it by id on later downloads.
package device

import (
	"context"
	"errors"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"github.com/oddkinco/local-split-server/internal/bundletool"
)

// DefaultTTL is how long a registration lives without being renewed
const DefaultTTL = 24 * time.Hour

// ErrUnknownDevice is returned for ids that were never registered or have expired
var ErrUnknownDevice = errors.New("unknown device id")

// Registry stores device specs keyed by generated ids
type Registry struct {
	cache *ttlcache.Cache[string, bundletool.DeviceSpec]
	log   logr.Logger
}

// NewRegistry creates a registry and starts its expiry loop. Call Stop to release it.
func NewRegistry(ttl time.Duration, log logr.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	cache := ttlcache.New[string, bundletool.DeviceSpec](
		ttlcache.WithTTL[string, bundletool.DeviceSpec](ttl),
		ttlcache.WithDisableTouchOnHit[string, bundletool.DeviceSpec](),
	)

	registry := &Registry{
		cache: cache,
		log:   log.WithName("device-registry"),
	}

	cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, bundletool.DeviceSpec]) {
		if reason == ttlcache.EvictionReasonExpired {
			registry.log.V(1).Info("Device registration expired", "deviceId", item.Key())
		}
	})

	go cache.Start()

	return registry
}

// Register stores spec and returns its new id
func (r *Registry) Register(spec bundletool.DeviceSpec) string {
	id := uuid.NewString()
	r.cache.Set(id, spec, ttlcache.DefaultTTL)
	r.log.V(1).Info("Device registered", "deviceId", id, "sdkVersion", spec.SdkVersion)
	return id
}

// Lookup returns the spec registered under id
func (r *Registry) Lookup(id string) (bundletool.DeviceSpec, error) {
	if _, err := uuid.Parse(id); err != nil {
		return bundletool.DeviceSpec{}, ErrUnknownDevice
	}

	item := r.cache.Get(id)
	if item == nil || item.IsExpired() {
		return bundletool.DeviceSpec{}, ErrUnknownDevice
	}
	return item.Value(), nil
}

// Len returns the number of live registrations
func (r *Registry) Len() int {
	return r.cache.Len()
}

// Stop halts the expiry loop
func (r *Registry) Stop() {
	r.cache.Stop()
}
