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
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies artifact failures that are reported to clients
type ErrorKind int

const (
	BundleNotFound ErrorKind = iota + 1
	BuildApksFailure
	ExtractApksFailure
	BundleExists
	SignatureMismatch
	SignatureNotFound
	MissingFeaturesAndLanguages
	KeystorePassMissing
	KeyPassMissing
	KeyAliasMissing
)

var kindNames = map[ErrorKind]string{
	BundleNotFound:              "BundleNotFound",
	BuildApksFailure:            "BuildApksFailure",
	ExtractApksFailure:          "ExtractApksFailure",
	BundleExists:                "BundleExists",
	SignatureMismatch:           "SignatureMismatch",
	SignatureNotFound:           "SignatureNotFound",
	MissingFeaturesAndLanguages: "MissingFeaturesAndLanguages",
	KeystorePassMissing:         "KeystorePassMissing",
	KeyPassMissing:              "KeyPassMissing",
	KeyAliasMissing:             "KeyAliasMissing",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// HTTPStatus returns the response status for the kind. Every kind is a client error.
func (k ErrorKind) HTTPStatus() int {
	return http.StatusBadRequest
}

// Error is a classified artifact failure
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the response status for the error
func (e *Error) HTTPStatus() int {
	return e.Kind.HTTPStatus()
}

// IsKind reports whether err is an *Error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var artifactErr *Error
	if errors.As(err, &artifactErr) {
		return artifactErr.Kind == kind
	}
	return false
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}
