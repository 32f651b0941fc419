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
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/oddkinco/local-split-server/internal/artifact"
)

// HTTPError is a request failure that carries its response status
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return e.Message
}

func newHTTPError(status int, format string, args ...any) *HTTPError {
	return &HTTPError{Status: status, Message: fmt.Sprintf(format, args...)}
}

func badRequest(format string, args ...any) *HTTPError {
	return newHTTPError(http.StatusBadRequest, format, args...)
}

// panicError carries a recovered panic and the stack where it happened
type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error  ErrorDetail `json:"error"`
	Server string      `json:"server"`
}

// ErrorDetail describes a failed request
type ErrorDetail struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

// describeError maps err to a response status and body detail. Unclassified
// errors become 500 and include a stack trace.
func describeError(err error) ErrorDetail {
	var httpErr *HTTPError
	var artifactErr *artifact.Error
	var panicErr *panicError

	switch {
	case errors.As(err, &httpErr):
		return ErrorDetail{Code: httpErr.Status, Message: httpErr.Message}
	case errors.As(err, &artifactErr):
		return ErrorDetail{Code: artifactErr.HTTPStatus(), Kind: artifactErr.Kind.String(), Message: artifactErr.Error()}
	case errors.As(err, &panicErr):
		return ErrorDetail{Code: http.StatusInternalServerError, Message: fmt.Sprintf("%s\n\n%s", panicErr.Error(), panicErr.stack)}
	default:
		return ErrorDetail{Code: http.StatusInternalServerError, Message: fmt.Sprintf("%s\n\n%s", err.Error(), debug.Stack())}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}
