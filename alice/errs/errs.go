// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errs defines the orchestrator's stable failure taxonomy, the
// same shape as the platform's ProviderError (orchestrator/llm/types.go)
// and ConnectorError (connectors/base): a typed error carrying a stable
// machine-readable class plus the underlying cause.
package errs

import "fmt"

// Class is one of the taxonomy entries from spec.md §7.
type Class string

const (
	ClassAdmissionDenied               Class = "admission_denied"
	ClassTimeout                       Class = "timeout"
	ClassRateLimited                   Class = "429"
	ClassServerError                   Class = "5xx"
	ClassSchema                        Class = "schema"
	ClassCircuitOpen                   Class = "circuit_open"
	ClassException                     Class = "exception"
	ClassValidation                    Class = "validation"
	ClassSecurityRequiresConfirmation  Class = "security_requires_confirmation"
)

// Error wraps a Class with a message and optional cause, matching the
// platform's ProviderError.Error()/Unwrap() contract.
type Error struct {
	Class      Class
	Message    string
	RetryAfter int // seconds, only meaningful for ClassAdmissionDenied
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Class, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an Error of the given class.
func New(class Class, message string) *Error {
	return &Error{Class: class, Message: message}
}

// Wrap creates an Error of the given class around a cause.
func Wrap(class Class, message string, cause error) *Error {
	return &Error{Class: class, Message: message, Cause: cause}
}

// Surfaces reports whether this class is allowed to surface to the HTTP
// caller as a non-200 response (spec.md §7 propagation policy). Every
// other class is absorbed by the fallback matrix and returns 200.
func (c Class) Surfaces() bool {
	return c == ClassValidation || c == ClassAdmissionDenied
}

// HTTPStatus maps a surfacing class to its HTTP status code.
func (c Class) HTTPStatus() int {
	switch c {
	case ClassValidation:
		return 400
	case ClassAdmissionDenied:
		return 503
	case ClassRateLimited:
		return 429
	default:
		return 500
	}
}
