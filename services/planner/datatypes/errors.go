// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"errors"
	"fmt"
)

// ErrorCode is a stable machine-readable failure class. Codes travel over
// the HTTP API and into analytics; renaming one is a breaking change.
type ErrorCode string

const (
	// CodeValidation: malformed caller input (unknown trip type, empty or
	// unusable destination). Never retried.
	CodeValidation ErrorCode = "VALIDATION_ERROR"

	// CodeGenerationFailed: the text model exhausted its attempts without
	// producing a plan that parses and passes schema validation.
	CodeGenerationFailed ErrorCode = "GENERATION_FAILED"

	// CodeRoutingUnreachable: the routing provider rejected a coordinate
	// as unreachable. The only code with in-pipeline recovery (coordinate
	// repair, one retry); it escapes to the caller only when repair also
	// fails.
	CodeRoutingUnreachable ErrorCode = "ROUTING_UNREACHABLE"

	// CodeRoutingFailed: a routing-provider error unrelated to
	// reachability. Not repaired.
	CodeRoutingFailed ErrorCode = "ROUTING_FAILED"

	// CodeConstraintViolation: the resolved trip cannot satisfy its
	// trip-type invariants even after repair.
	CodeConstraintViolation ErrorCode = "CONSTRAINT_VIOLATION"

	// CodeExternalService: a downstream dependency is unavailable or
	// answered outside its contract, for reasons none of the above cover.
	CodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"

	// CodeAssemblyFailed: the assembled trip failed final structural
	// validation. Indicates a pipeline bug, not caller error.
	CodeAssemblyFailed ErrorCode = "ASSEMBLY_FAILED"
)

// PipelineError is the typed failure every pipeline stage surfaces.
//
// The pipeline is all-or-nothing per request: a PipelineError means no
// Trip, never a partial one. Err preserves the downstream cause for
// errors.Is/As; Message is safe to show the caller.
type PipelineError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError builds a PipelineError with a formatted message.
func NewPipelineError(code ErrorCode, format string, args ...any) *PipelineError {
	return &PipelineError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapPipelineError builds a PipelineError around a downstream cause.
func WrapPipelineError(code ErrorCode, err error, format string, args ...any) *PipelineError {
	return &PipelineError{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the pipeline error code from anywhere in err's chain.
// Returns CodeExternalService for errors that carry no code at all, so
// handler mapping always has something stable to report.
func CodeOf(err error) ErrorCode {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return CodeExternalService
}

// hasCode reports whether err carries the given pipeline code.
func hasCode(err error, code ErrorCode) bool {
	var pe *PipelineError
	return errors.As(err, &pe) && pe.Code == code
}

// IsValidationError reports whether err is a caller-input failure.
func IsValidationError(err error) bool { return hasCode(err, CodeValidation) }

// IsGenerationFailed reports whether err is a text-model exhaustion failure.
func IsGenerationFailed(err error) bool { return hasCode(err, CodeGenerationFailed) }

// IsRoutingUnreachable reports whether err is an unreachable-coordinate
// rejection, the one failure the pipeline repairs in place.
func IsRoutingUnreachable(err error) bool { return hasCode(err, CodeRoutingUnreachable) }

// IsRoutingFailed reports whether err is a non-reachability routing failure.
func IsRoutingFailed(err error) bool { return hasCode(err, CodeRoutingFailed) }

// IsConstraintViolation reports whether err is an unrepairable invariant
// failure.
func IsConstraintViolation(err error) bool { return hasCode(err, CodeConstraintViolation) }

// IsAssemblyFailed reports whether err is a final structural-validation
// failure.
func IsAssemblyFailed(err error) bool { return hasCode(err, CodeAssemblyFailed) }
