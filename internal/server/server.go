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
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oddkinco/local-split-server/internal/artifact"
	"github.com/oddkinco/local-split-server/internal/device"
	"github.com/oddkinco/local-split-server/internal/metrics"
)

// DefaultMaxUploadMemory is the multipart size kept in memory before spilling to disk
const DefaultMaxUploadMemory = 32 << 20

// Options configures a Server
type Options struct {
	Name    string
	Version string

	// Host is the interface to bind and the host advertised by Address
	Host string
	Port int

	Username      string
	Password      string
	RedirectHTTPS bool

	ValidateSignature bool
	MaxUploadMemory   int64
}

// Server implements the split distribution HTTP server
type Server struct {
	opts      Options
	artifacts artifact.ArtifactManager
	devices   *device.Registry
	metrics   metrics.MetricsRecorder
	gatherer  prometheus.Gatherer
	log       logr.Logger
	router    *Router

	mutex      sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

// NewServer creates a server. devices and gatherer are optional; without them
// the register-device and metrics routes are not installed.
func NewServer(opts Options, artifacts artifact.ArtifactManager, devices *device.Registry, recorder metrics.MetricsRecorder, gatherer prometheus.Gatherer, log logr.Logger) *Server {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if opts.MaxUploadMemory <= 0 {
		opts.MaxUploadMemory = DefaultMaxUploadMemory
	}

	s := &Server{
		opts:      opts,
		artifacts: artifacts,
		devices:   devices,
		metrics:   recorder,
		gatherer:  gatherer,
		log:       log.WithName("server"),
	}

	s.router = NewRouter(RouterOptions{
		Name:          opts.Name,
		Version:       opts.Version,
		Username:      opts.Username,
		Password:      opts.Password,
		RedirectHTTPS: opts.RedirectHTTPS,
	}, recorder, log)

	s.router.Handle(Route{Prefix: "upload", Methods: []string{http.MethodPost, http.MethodPut}, Handler: s.handleUpload})
	s.router.Handle(Route{Prefix: "download", Methods: []string{http.MethodGet, http.MethodPost}, Handler: s.handleDownload})
	s.router.Handle(Route{Prefix: "liveness_check", Public: true, Quiet: true, Handler: handleLiveness})

	if devices != nil {
		s.router.Handle(Route{Prefix: "register-device", Methods: []string{http.MethodPost}, Handler: s.handleRegisterDevice})
	}
	if gatherer != nil {
		s.router.Handle(Route{Prefix: "metrics", Methods: []string{http.MethodGet}, Quiet: true, Handler: s.handleMetrics})
	}

	return s
}

// Handler returns the root handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listening socket and serves in the background
func (s *Server) Start() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.httpServer != nil {
		return errors.New("server already started")
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port)))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.opts.Port, err)
	}

	// No write timeout: throttled downloads are expected to be slow.
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.listener = listener

	s.log.Info("Starting split server", "address", s.address(), "listen", listener.Addr().String())

	go func(httpServer *http.Server) {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error(err, "Split server error")
		}
	}(s.httpServer)

	return nil
}

// Run starts the server and blocks until ctx is cancelled, then shuts down
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}

	<-ctx.Done()

	return s.Shutdown(context.Background())
}

// Addr returns the bound listener address, or an empty string before Start
func (s *Server) Addr() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Address returns the advertised base URL of the server
func (s *Server) Address() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.address()
}

func (s *Server) address() string {
	host := s.opts.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}

	port := s.opts.Port
	if s.listener != nil {
		if tcpAddr, ok := s.listener.Addr().(*net.TCPAddr); ok {
			port = tcpAddr.Port
		}
	}

	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mutex.Lock()
	httpServer := s.httpServer
	s.httpServer = nil
	s.listener = nil
	s.mutex.Unlock()

	if httpServer == nil {
		return nil
	}

	s.log.Info("Shutting down split server")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}

func handleLiveness(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(http.StatusOK)
	return nil
}

// RegisterDeviceResponse is returned by the register-device route
type RegisterDeviceResponse struct {
	DeviceID string `json:"deviceId"`
}

func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) error {
	spec, err := decodeDeviceSpec(r.Body)
	if err != nil {
		return err
	}

	id := s.devices.Register(spec)
	return writeJSON(w, http.StatusOK, RegisterDeviceResponse{DeviceID: id})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) error {
	promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	return nil
}
