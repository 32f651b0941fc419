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

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements MetricsRecorder using Prometheus metrics
type PrometheusRecorder struct {
	requestTotal                *prometheus.CounterVec
	requestDuration             *prometheus.HistogramVec
	artifactOperationTotal      *prometheus.CounterVec
	artifactOperationDuration   *prometheus.HistogramVec
	toolchainInvocationTotal    *prometheus.CounterVec
	toolchainInvocationDuration *prometheus.HistogramVec
	bytesStreamed               prometheus.Counter
}

// NewPrometheusRecorder creates a new PrometheusRecorder and registers its metrics with reg
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	recorder := &PrometheusRecorder{
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splitserver_http_requests_total",
				Help: "Total number of HTTP requests handled",
			},
			[]string{"route", "code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "splitserver_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"route"},
		),
		artifactOperationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splitserver_artifact_operation_total",
				Help: "Total number of artifact operations performed",
			},
			[]string{"operation", "result"},
		),
		artifactOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "splitserver_artifact_operation_duration_seconds",
				Help:    "Duration of artifact operations in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"operation"},
		),
		toolchainInvocationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splitserver_toolchain_invocation_total",
				Help: "Total number of bundle toolchain invocations",
			},
			[]string{"command", "success"},
		),
		toolchainInvocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "splitserver_toolchain_invocation_duration_seconds",
				Help:    "Duration of bundle toolchain invocations in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"command"},
		),
		bytesStreamed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "splitserver_bytes_streamed_total",
				Help: "Total number of bytes streamed to download clients",
			},
		),
	}

	reg.MustRegister(
		recorder.requestTotal,
		recorder.requestDuration,
		recorder.artifactOperationTotal,
		recorder.artifactOperationDuration,
		recorder.toolchainInvocationTotal,
		recorder.toolchainInvocationDuration,
		recorder.bytesStreamed,
	)

	return recorder
}

// RecordRequest records a handled HTTP request with its final status
func (r *PrometheusRecorder) RecordRequest(route string, status int, duration time.Duration) {
	r.requestTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	r.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordArtifactOperation records an artifact manager operation with its result
func (r *PrometheusRecorder) RecordArtifactOperation(operation, result string, duration time.Duration) {
	r.artifactOperationTotal.WithLabelValues(operation, result).Inc()
	r.artifactOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordToolchainInvocation records a call into the bundle toolchain
func (r *PrometheusRecorder) RecordToolchainInvocation(command string, success bool, duration time.Duration) {
	successLabel := "false"
	if success {
		successLabel = "true"
	}

	r.toolchainInvocationTotal.WithLabelValues(command, successLabel).Inc()
	r.toolchainInvocationDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// AddBytesStreamed counts bytes written to download responses
func (r *PrometheusRecorder) AddBytesStreamed(n int64) {
	r.bytesStreamed.Add(float64(n))
}
