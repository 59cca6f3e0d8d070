// Package envelope decodes toolkit reply envelopes into uniform results.
//
// A toolkit envelope is a mapping whose keys exist only for some outcomes:
// "success" on success, "error" (optionally with a nested "joblog") on
// failure, and "row" for fetched rows. Decode inspects those keys once and
// builds an Outcome; everything downstream works from the Outcome or the
// Result derived from it.
package envelope

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"powerexec/cli/internal/rc"
)

// Kind is the request kind an envelope answers.
type Kind int

const (
	// Command is a CL command step.
	Command Kind = iota
	// Query is a fetch step; rows come from the "row" key.
	Query
	// Callable is an SQL statement that returns no result set.
	Callable
	// Retrieve is a retrieve command whose return variables come back as rows.
	Retrieve
)

func (k Kind) String() string {
	switch k {
	case Command:
		return "command"
	case Query:
		return "query"
	case Callable:
		return "callable"
	case Retrieve:
		return "retrieve"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// RowNotFound is the hint XMLSERVICE gives when a fetch matches nothing.
const RowNotFound = "Row not found"

// Row is one result row keyed by column name.
type Row = map[string]any

// Outcome is the decoded variant of an envelope. It is one of Success,
// BusinessError or ProtocolFault.
type Outcome interface {
	isOutcome()
}

// Success is a completed request. Note carries a non-fatal hint, such as the
// row-not-found marker of an empty fetch.
type Success struct {
	Stdout string
	Rows   []Row
	Note   string
}

// BusinessError is a request the host rejected with a job log.
type BusinessError struct {
	JobLog string
}

// ProtocolFault is an envelope missing the keys its outcome requires.
type ProtocolFault struct {
	Code rc.Code
	Raw  map[string]any
}

func (Success) isOutcome()       {}
func (BusinessError) isOutcome() {}
func (ProtocolFault) isOutcome() {}

// Message renders the fault the way it is reported in stderr.
func (f ProtocolFault) Message() string {
	key := "error"
	if f.Code == rc.NoKeyJobLog {
		key = "joblog"
	}
	return fmt.Sprintf("toolkit result does not have key '%s', the output is %s", key, Serialize(f.Raw))
}

// Result is the uniform outcome of one request.
type Result struct {
	RC     rc.Code
	Stdout string
	Rows   []Row
	Stderr string
}

// Classify builds the Outcome for an envelope.
func Classify(raw map[string]any, kind Kind) Outcome {
	if raw == nil {
		raw = map[string]any{}
	}
	if s, ok := raw["success"]; ok {
		return Success{Stdout: stringify(s), Rows: rowsOf(raw, kind)}
	}
	if e, ok := raw["error"]; ok {
		if m, ok := e.(map[string]any); ok {
			if jl, ok := m["joblog"]; ok {
				return BusinessError{JobLog: stringify(jl)}
			}
		}
		fault := ProtocolFault{Code: rc.NoKeyJobLog, Raw: raw}
		if hasRowNotFound(e, fault.Message()) {
			return Success{Rows: []Row{}, Note: fault.Message()}
		}
		return fault
	}
	if kind == Query {
		// A fetch carries no success key; rows without an error are success.
		if _, ok := raw["row"]; ok {
			return Success{Rows: rowsOf(raw, kind)}
		}
	}
	return ProtocolFault{Code: rc.NoKeyError, Raw: raw}
}

func hasRowNotFound(errVal any, serialized string) bool {
	if m, ok := errVal.(map[string]any); ok {
		if hint, ok := m["xmlhint"].(string); ok && strings.Contains(hint, RowNotFound) {
			return true
		}
	}
	return strings.Contains(serialized, RowNotFound)
}

// ResultOf derives the Result for an Outcome.
func ResultOf(o Outcome) Result {
	switch v := o.(type) {
	case Success:
		rows := v.Rows
		if rows == nil {
			rows = []Row{}
		}
		return Result{RC: rc.Success, Stdout: v.Stdout, Rows: rows, Stderr: v.Note}
	case BusinessError:
		return Result{RC: rc.Error, Rows: []Row{}, Stderr: v.JobLog}
	case ProtocolFault:
		return Result{RC: v.Code, Rows: []Row{}, Stderr: v.Message()}
	}
	return Result{RC: rc.Unexpected, Rows: []Row{}, Stderr: fmt.Sprintf("unknown outcome %T", o)}
}

// Decode classifies the envelope and returns its Result.
func Decode(raw map[string]any, kind Kind) Result {
	return ResultOf(Classify(raw, kind))
}

// CheckRowCount applies an optional exact row-count expectation. A nil
// expectation leaves the result unchanged. Rows are kept on mismatch so the
// caller can inspect them. Results that already failed are returned as is.
func CheckRowCount(r Result, expected *int) Result {
	if expected == nil {
		return r
	}
	if *expected < 0 {
		r.RC = rc.InvalidExpectedRowCount
		r.Stderr = fmt.Sprintf("expected row count must not be negative, got %d", *expected)
		return r
	}
	if r.RC != rc.Success {
		return r
	}
	if len(r.Rows) != *expected {
		r.RC = rc.UnexpectedRowCount
		r.Stderr = fmt.Sprintf("expected %d row(s), got %d", *expected, len(r.Rows))
	}
	return r
}

// NormalizeRows turns a "row" value into a slice: a single mapping becomes a
// one-element slice, a list keeps its mappings in order.
func NormalizeRows(v any) []Row {
	switch t := v.(type) {
	case nil:
		return []Row{}
	case map[string]any:
		return []Row{t}
	case []map[string]any:
		out := make([]Row, len(t))
		copy(out, t)
		return out
	case []any:
		out := make([]Row, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return []Row{}
}

func rowsOf(raw map[string]any, kind Kind) []Row {
	switch kind {
	case Query:
		return NormalizeRows(raw["row"])
	case Retrieve:
		// Each retrieved variable comes back in its own row.
		merged := Row{}
		for _, r := range NormalizeRows(raw["row"]) {
			for k, v := range r {
				merged[k] = v
			}
		}
		if len(merged) == 0 {
			return []Row{}
		}
		return []Row{merged}
	}
	return []Row{}
}

// Serialize renders an envelope as JSON with sorted keys; values that cannot
// be marshalled fall back to Go syntax.
func Serialize(raw map[string]any) string {
	if raw == nil {
		return "{}"
	}
	b, err := json.Marshal(raw)
	if err != nil {
		keys := make([]string, 0, len(raw))
		for k := range raw {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%q: %v", k, raw[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return string(b)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	}
	return fmt.Sprint(v)
}
