package execution

import (
	"fmt"
	"strings"
	"time"

	"powerexec/cli/internal/classify"
	"powerexec/cli/internal/envelope"
	"powerexec/cli/internal/joblog"
	"powerexec/cli/internal/rc"
)

// Kind is the shape of a request.
type Kind int

const (
	// KindProcedural is a CL command for the toolkit.
	KindProcedural Kind = iota
	// KindScreen is a CL command for the line-mode shell.
	KindScreen
	// KindSQL is an SQL statement.
	KindSQL
)

func (k Kind) String() string {
	switch k {
	case KindScreen:
		return "screen"
	case KindSQL:
		return "sql"
	}
	return "procedural"
}

// Request is one command or statement. Build it with NewCommand or NewSQL.
type Request struct {
	Text     string
	Kind     Kind
	Database string
	Args     []any
}

// NewCommand builds a command request and picks its protocol.
func NewCommand(command, database string) Request {
	kind := KindProcedural
	if classify.IsScreen(command) {
		kind = KindScreen
	}
	return Request{Text: strings.TrimSpace(command), Kind: kind, Database: database}
}

// NewSQL builds an SQL request.
func NewSQL(statement, database string, args ...any) Request {
	return Request{Text: strings.TrimSpace(statement), Kind: KindSQL, Database: database, Args: args}
}

// Result is the outcome of one request.
type Result struct {
	RC     rc.Code        `json:"rc" yaml:"rc"`
	Stdout string         `json:"stdout" yaml:"stdout"`
	Rows   []envelope.Row `json:"rows" yaml:"rows"`
	Stderr string         `json:"stderr" yaml:"stderr"`
	Start  time.Time      `json:"start" yaml:"start"`
	End    time.Time      `json:"end" yaml:"end"`
	Delta  time.Duration  `json:"delta" yaml:"delta"`
	JobLog []joblog.Entry `json:"job_log" yaml:"job_log"`
	Notes  []string       `json:"notes,omitempty" yaml:"notes,omitempty"`
	Job    string         `json:"job,omitempty" yaml:"job,omitempty"`
	ID     string         `json:"invocation_id" yaml:"invocation_id"`
}

// Message is the rc label.
func (r Result) Message() string { return rc.Lookup(r.RC) }

// Failed reports a non-zero rc.
func (r Result) Failed() bool { return r.RC.Failed() }

// FailureMessage is the one-line summary printed for a failed result.
func (r Result) FailureMessage() string {
	return fmt.Sprintf("non-zero return code:%d", int(r.RC))
}

func fromEnvelope(e envelope.Result) Result {
	rows := e.Rows
	if rows == nil {
		rows = []envelope.Row{}
	}
	return Result{RC: e.RC, Stdout: e.Stdout, Rows: rows, Stderr: e.Stderr, JobLog: []joblog.Entry{}}
}

func failure(code rc.Code, err error) Result {
	return Result{RC: code, Rows: []envelope.Row{}, Stderr: err.Error(), JobLog: []joblog.Entry{}}
}

func (r *Result) stamp(start time.Time) {
	r.Start = start
	r.End = time.Now()
	r.Delta = r.End.Sub(start)
	if r.Rows == nil {
		r.Rows = []envelope.Row{}
	}
	if r.JobLog == nil {
		r.JobLog = []joblog.Entry{}
	}
}
