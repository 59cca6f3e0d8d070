// Copyright (c) 2025 Powerexec
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package rc defines the return-code sentinels shared by every task command.
// The integer values and labels are a stable contract: task commands decide
// between success and failure by comparing against these codes, and scripts
// that drive the CLI read them from the rendered result.
package rc

import (
	"fmt"
	"sort"
)

// Code is an internal return-code sentinel.
type Code int

const (
	// Success means the command or statement completed.
	Success Code = 0
	// Error is the generic failure: the host reported an error with a job log.
	Error Code = 255
	// NoKeyJobLog means the toolkit returned an error without a job log.
	NoKeyJobLog Code = 256
	// NoKeyError means the toolkit result had neither a success nor an error key.
	NoKeyError Code = 257
	// UnexpectedRowCount means a query returned a different number of rows
	// than the caller asserted.
	UnexpectedRowCount Code = 258
	// InvalidExpectedRowCount means the caller's row-count assertion was invalid.
	InvalidExpectedRowCount Code = 259
	// ParamNotValid means a task parameter failed validation.
	ParamNotValid Code = 260
	// NoRowFound means a lookup that requires a row found none.
	NoRowFound Code = 261
	// SubsystemNotActive means the referenced subsystem is not active.
	SubsystemNotActive Code = 262
	// EndAllSubsystemNotAllowed guards against ending every subsystem at once.
	EndAllSubsystemNotAllowed Code = 263

	// DBConnectionError means the session could not be opened.
	DBConnectionError Code = 997
	// PackagesNotFound means a required driver or toolkit is unavailable.
	PackagesNotFound Code = 998
	// Unexpected is the catch-all for failures outside the taxonomy.
	Unexpected Code = 999
)

// Aliases matching the category names used in reports.
const (
	GenericFailure            = Error
	ProtocolFaultNoDiagnostic = NoKeyJobLog
	ProtocolFaultNoErrorKey   = NoKeyError
	InvalidRowCountRequest    = InvalidExpectedRowCount
	ParameterInvalid          = ParamNotValid
	SubsystemEndAllForbidden  = EndAllSubsystemNotAllowed
	DependencyNotFound        = PackagesNotFound
	ConnectionError           = DBConnectionError
)

// UnknownLabel is returned by Lookup for codes outside the table.
const UnknownLabel = "unknown error"

var labels = map[Code]string{
	Success:                   "success",
	Error:                     "command or statement failed",
	NoKeyJobLog:               "toolkit result has no job log",
	NoKeyError:                "toolkit result has no error key",
	UnexpectedRowCount:        "unexpected row count",
	InvalidExpectedRowCount:   "invalid expected row count",
	ParamNotValid:             "parameter not valid",
	NoRowFound:                "no row found",
	SubsystemNotActive:        "subsystem not active",
	EndAllSubsystemNotAllowed: "ending all subsystems is not allowed",
	DBConnectionError:         "database connection error",
	PackagesNotFound:          "required packages not found",
	Unexpected:                "unexpected error",
}

var names = map[Code]string{
	Success:                   "SUCCESS",
	Error:                     "GENERIC_FAILURE",
	NoKeyJobLog:               "PROTOCOL_FAULT_NO_DIAGNOSTIC",
	NoKeyError:                "PROTOCOL_FAULT_NO_ERROR_KEY",
	UnexpectedRowCount:        "UNEXPECTED_ROW_COUNT",
	InvalidExpectedRowCount:   "INVALID_ROW_COUNT_REQUEST",
	ParamNotValid:             "PARAMETER_INVALID",
	NoRowFound:                "NO_ROW_FOUND",
	SubsystemNotActive:        "SUBSYSTEM_NOT_ACTIVE",
	EndAllSubsystemNotAllowed: "SUBSYSTEM_END_ALL_FORBIDDEN",
	DBConnectionError:         "CONNECTION_ERROR",
	PackagesNotFound:          "DEPENDENCY_NOT_FOUND",
	Unexpected:                "UNEXPECTED",
}

// Lookup returns the human-readable label for a code.
// Unknown codes yield UnknownLabel; Lookup never fails.
func Lookup(c Code) string {
	if l, ok := labels[c]; ok {
		return l
	}
	return UnknownLabel
}

// Name returns the category name of a code, e.g. "GENERIC_FAILURE".
func Name(c Code) string {
	if n, ok := names[c]; ok {
		return n
	}
	return "UNKNOWN"
}

// Known reports whether c is part of the taxonomy.
func Known(c Code) bool {
	_, ok := labels[c]
	return ok
}

// Codes returns every known code in ascending order.
func Codes() []Code {
	out := make([]Code, 0, len(labels))
	for c := range labels {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Failed reports whether the code signals a failure.
func (c Code) Failed() bool { return c != Success }

func (c Code) String() string {
	return fmt.Sprintf("%d (%s)", int(c), Lookup(c))
}
