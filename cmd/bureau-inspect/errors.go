// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
)

// errorCategory classifies a failure of the command so that scripts
// can tell a bad invocation from an unreachable probe by exit code.
type errorCategory string

const (
	// categoryValidation: bad flags, an invalid configuration, or no
	// terminal to draw on. Fix the invocation and run again.
	categoryValidation errorCategory = "validation"

	// categoryTransient: the probe could not be reached. Retrying once
	// the target application is running may succeed.
	categoryTransient errorCategory = "transient"

	// categoryInternal: I/O failures and anything unexpected.
	categoryInternal errorCategory = "internal"
)

// toolError is a categorized error with an optional hint printed
// below the message.
type toolError struct {
	category errorCategory
	err      error
	hint     string
}

func (e *toolError) Error() string { return e.err.Error() }

func (e *toolError) Unwrap() error { return e.err }

// ExitCode maps the category to the process exit status.
func (e *toolError) ExitCode() int {
	switch e.category {
	case categoryValidation:
		return 2
	case categoryTransient:
		return 3
	default:
		return 1
	}
}

// withHint attaches a suggestion for the operator.
func (e *toolError) withHint(hint string) *toolError {
	e.hint = hint
	return e
}

func validationError(format string, args ...any) *toolError {
	return &toolError{category: categoryValidation, err: fmt.Errorf(format, args...)}
}

func transientError(format string, args ...any) *toolError {
	return &toolError{category: categoryTransient, err: fmt.Errorf(format, args...)}
}

func internalError(format string, args ...any) *toolError {
	return &toolError{category: categoryInternal, err: fmt.Errorf(format, args...)}
}

// describeError renders err for stderr, with the hint of a toolError
// anywhere in its chain on the following line.
func describeError(err error) string {
	message := fmt.Sprintf("error: %v", err)
	var tool *toolError
	if errors.As(err, &tool) && tool.hint != "" {
		message += "\nhint: " + tool.hint
	}
	return message
}
