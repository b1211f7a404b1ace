// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package apperr defines the tagged error type shared by every layer of the
// backend. Callers branch on the Kind of an error rather than its message.
//
// Kinds fall into three groups:
//   - Request scoped (Validation, Authorization, NotFound, DuplicateAnalysis,
//     MissingDependency): surfaced verbatim to the HTTP caller.
//   - Unit scoped (LanguageDetection, Synthesis): recorded as data by the media
//     pipeline and never propagated to the batch.
//   - Everything else: rendered as a generic 5xx, detail logged server side.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind int

const (
	Internal Kind = iota
	Validation
	Authorization
	NotFound
	DuplicateAnalysis
	MissingDependency
	MalformedModelOutput
	Configuration
	LanguageDetection
	Synthesis
	Storage
	Timeout
)

var kindNames = map[Kind]string{
	Internal:             "internal",
	Validation:           "validation",
	Authorization:        "authorization",
	NotFound:             "not_found",
	DuplicateAnalysis:    "duplicate_analysis",
	MissingDependency:    "missing_dependency",
	MalformedModelOutput: "malformed_model_output",
	Configuration:        "configuration",
	LanguageDetection:    "language_detection",
	Synthesis:            "synthesis",
	Storage:              "storage",
	Timeout:              "timeout",
}

// String returns the snake_case name of the kind, used as a log attribute.
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// Error is the concrete error carried through commands, services and handlers.
type Error struct {
	Kind    Kind   // Classification used for status mapping and branching.
	Message string // Caller-safe message.
	Err     error  // Optional underlying cause, never shown to HTTP callers.
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

// New creates an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind around a cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of err. Context deadline errors that were never
// classified are reported as Timeout, anything else unclassified as Internal.
func KindOf(err error) Kind {
	if err == nil {
		return Internal
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error onto the status code returned to HTTP callers.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case Validation, DuplicateAnalysis, MissingDependency:
		return http.StatusBadRequest
	case Authorization:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Timeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message that may be shown to a caller. Server
// side failures collapse to a generic message.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && HTTPStatus(err) < http.StatusInternalServerError {
		return e.Message
	}
	if KindOf(err) == Timeout {
		return "The request timed out."
	}
	return "Internal server error."
}
