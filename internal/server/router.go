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
	"crypto/subtle"
	"encoding/base64"
	"io"
	"net"
	"net/http"
	"runtime/debug"
	"slices"
	"strings"

	"github.com/felixge/httpsnoop"
	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/oddkinco/local-split-server/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

// HandlerFunc handles a routed request. A returned error is rendered as a JSON
// error body unless the response has already started.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Route binds a handler to the first segment of the request path
type Route struct {
	// Prefix is the first non-empty path segment the route answers to
	Prefix string

	// Methods limits the accepted methods; empty accepts any
	Methods []string

	// Public routes skip authentication and HTTPS redirection
	Public bool

	// Quiet routes are only logged at V(1)
	Quiet bool

	Handler HandlerFunc
}

// RouterOptions configures request admission for a Router
type RouterOptions struct {
	Name          string
	Version       string
	Username      string
	Password      string
	RedirectHTTPS bool
}

// Router dispatches requests on their first path segment
type Router struct {
	opts    RouterOptions
	routes  map[string]Route
	metrics metrics.MetricsRecorder
	log     logr.Logger
}

// NewRouter creates an empty router
func NewRouter(opts RouterOptions, recorder metrics.MetricsRecorder, log logr.Logger) *Router {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Router{
		opts:    opts,
		routes:  make(map[string]Route),
		metrics: recorder,
		log:     log.WithName("router"),
	}
}

// Handle registers route, replacing any route with the same prefix
func (rt *Router) Handle(route Route) {
	rt.routes[strings.Trim(route.Prefix, "/")] = route
}

// ServerTag identifies the server in error bodies
func (rt *Router) ServerTag() string {
	return rt.opts.Name + " v" + rt.opts.Version
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(requestIDHeader)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	w.Header().Set(requestIDHeader, requestID)

	prefix := firstSegment(r.URL.Path)
	route, found := rt.routes[prefix]

	log := rt.log.WithValues("requestId", requestID)
	accessLog := log
	if found && route.Quiet {
		accessLog = log.V(1)
	}

	accessLog.Info("Request received",
		"method", r.Method,
		"url", r.URL.String(),
		"clientIP", clientIP(r),
		"headers", loggableHeaders(r.Header))

	r = r.WithContext(logr.NewContext(r.Context(), log))

	m := httpsnoop.CaptureMetricsFn(w, func(w http.ResponseWriter) {
		rt.dispatch(w, r, route, found, log)
	})

	accessLog.Info("Request completed",
		"method", r.Method,
		"url", r.URL.String(),
		"status", m.Code,
		"bytes", m.Written,
		"duration", m.Duration.String())

	routeLabel := prefix
	if !found {
		routeLabel = "unmatched"
	}
	rt.metrics.RecordRequest(routeLabel, m.Code, m.Duration)
}

func (rt *Router) dispatch(w http.ResponseWriter, r *http.Request, route Route, found bool, log logr.Logger) {
	tracker := &responseTracker{}
	w = tracker.wrap(w)

	defer func() {
		if v := recover(); v != nil {
			if v == http.ErrAbortHandler {
				panic(v)
			}
			rt.fail(w, tracker, log, &panicError{value: v, stack: debug.Stack()})
		}
	}()

	if err := rt.serve(w, r, route, found); err != nil {
		rt.fail(w, tracker, log, err)
	}
}

func (rt *Router) serve(w http.ResponseWriter, r *http.Request, route Route, found bool) error {
	if !found {
		return newHTTPError(http.StatusNotFound, "no handler for path %s", r.URL.Path)
	}

	if rt.opts.RedirectHTTPS && !route.Public && !isHTTPS(r) {
		target := "https://" + r.Host + r.URL.RequestURI()
		http.Redirect(w, r, target, http.StatusPermanentRedirect)
		return nil
	}

	if !route.Public && !rt.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="`+rt.opts.Name+`"`)
		return newHTTPError(http.StatusUnauthorized, "invalid or missing credentials")
	}

	if len(route.Methods) > 0 && !slices.Contains(route.Methods, r.Method) {
		w.Header().Set("Allow", strings.Join(route.Methods, ", "))
		return newHTTPError(http.StatusMethodNotAllowed, "method %s not allowed", r.Method)
	}

	return route.Handler(w, r)
}

func (rt *Router) fail(w http.ResponseWriter, tracker *responseTracker, log logr.Logger, err error) {
	detail := describeError(err)

	if tracker.started {
		log.Error(err, "Request failed after response started")
		return
	}

	if detail.Code >= http.StatusInternalServerError {
		log.Error(err, "Request failed")
	} else {
		log.Info("Request rejected", "status", detail.Code, "reason", err.Error())
	}

	if writeErr := writeJSON(w, detail.Code, ErrorResponse{Error: detail, Server: rt.ServerTag()}); writeErr != nil {
		log.V(1).Info("Failed to write error response", "error", writeErr.Error())
	}
}

// authorized compares the Authorization header with the configured
// credentials. Authentication is off unless both username and password are set.
func (rt *Router) authorized(r *http.Request) bool {
	if rt.opts.Username == "" || rt.opts.Password == "" {
		return true
	}
	expected := "Basic " + base64.StdEncoding.EncodeToString([]byte(rt.opts.Username+":"+rt.opts.Password))
	return subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")), []byte(expected)) == 1
}

// responseTracker records whether any part of the response was sent
type responseTracker struct {
	started bool
}

func (t *responseTracker) wrap(w http.ResponseWriter) http.ResponseWriter {
	return httpsnoop.Wrap(w, httpsnoop.Hooks{
		WriteHeader: func(next httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
			return func(code int) {
				t.started = true
				next(code)
			}
		},
		Write: func(next httpsnoop.WriteFunc) httpsnoop.WriteFunc {
			return func(b []byte) (int, error) {
				t.started = true
				return next(b)
			}
		},
		ReadFrom: func(next httpsnoop.ReadFromFunc) httpsnoop.ReadFromFunc {
			return func(src io.Reader) (int64, error) {
				t.started = true
				return next(src)
			}
		},
	})
}

func firstSegment(path string) string {
	for _, segment := range strings.Split(path, "/") {
		if segment != "" {
			return segment
		}
	}
	return ""
}

func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// loggableHeaders flattens headers for logging with credentials masked
func loggableHeaders(header http.Header) map[string]string {
	out := make(map[string]string, len(header))
	for name, values := range header {
		if strings.EqualFold(name, "Authorization") {
			out[name] = "<redacted>"
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}
