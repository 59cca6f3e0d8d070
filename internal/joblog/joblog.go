// Copyright (c) 2025 Powerexec
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package joblog reads the diagnostic messages a host job logged since a
// point in time. Entries are returned newest first by ordinal position, which
// is the order the host assigned them, not their timestamp order.
package joblog

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	perrors "powerexec/cli/internal/errors"

	"go.uber.org/zap"
)

// TimestampLayout is the Db2 for i timestamp literal format.
const TimestampLayout = "2006-01-02-15.04.05.000000"

// CurrentJob addresses the job of the connection running the query.
const CurrentJob = "*"

// Entry is one job-log message.
type Entry struct {
	OrdinalPosition        int64     `json:"ORDINAL_POSITION" yaml:"ordinal_position"`
	MessageID              string    `json:"MESSAGE_ID" yaml:"message_id"`
	MessageType            string    `json:"MESSAGE_TYPE" yaml:"message_type"`
	MessageSubtype         string    `json:"MESSAGE_SUBTYPE" yaml:"message_subtype"`
	Severity               int64     `json:"SEVERITY" yaml:"severity"`
	MessageTimestamp       time.Time `json:"MESSAGE_TIMESTAMP" yaml:"message_timestamp"`
	FromLibrary            string    `json:"FROM_LIBRARY" yaml:"from_library"`
	FromProgram            string    `json:"FROM_PROGRAM" yaml:"from_program"`
	FromModule             string    `json:"FROM_MODULE" yaml:"from_module"`
	FromProcedure          string    `json:"FROM_PROCEDURE" yaml:"from_procedure"`
	FromInstruction        string    `json:"FROM_INSTRUCTION" yaml:"from_instruction"`
	ToLibrary              string    `json:"TO_LIBRARY" yaml:"to_library"`
	ToProgram              string    `json:"TO_PROGRAM" yaml:"to_program"`
	ToModule               string    `json:"TO_MODULE" yaml:"to_module"`
	ToProcedure            string    `json:"TO_PROCEDURE" yaml:"to_procedure"`
	ToInstruction          string    `json:"TO_INSTRUCTION" yaml:"to_instruction"`
	FromUser               string    `json:"FROM_USER" yaml:"from_user"`
	MessageFile            string    `json:"MESSAGE_FILE" yaml:"message_file"`
	MessageLibrary         string    `json:"MESSAGE_LIBRARY" yaml:"message_library"`
	MessageText            string    `json:"MESSAGE_TEXT" yaml:"message_text"`
	MessageSecondLevelText string    `json:"MESSAGE_SECOND_LEVEL_TEXT" yaml:"message_second_level_text"`
}

// Querier runs a query. *sql.Conn and *sql.DB satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const columns = "ORDINAL_POSITION, MESSAGE_ID, MESSAGE_TYPE, MESSAGE_SUBTYPE, SEVERITY, MESSAGE_TIMESTAMP, " +
	"FROM_LIBRARY, FROM_PROGRAM, FROM_MODULE, FROM_PROCEDURE, FROM_INSTRUCTION, " +
	"TO_LIBRARY, TO_PROGRAM, TO_MODULE, TO_PROCEDURE, TO_INSTRUCTION, " +
	"FROM_USER, MESSAGE_FILE, MESSAGE_LIBRARY, MESSAGE_TEXT, MESSAGE_SECOND_LEVEL_TEXT"

var jobPattern = regexp.MustCompile(`^[0-9]{6}/[A-Z0-9$#@_.]{1,10}/[A-Z0-9$#@_.]{1,10}$`)

// ValidateJob checks a job identifier: CurrentJob or NNNNNN/USER/NAME.
func ValidateJob(job string) error {
	if job == CurrentJob || jobPattern.MatchString(strings.ToUpper(job)) {
		return nil
	}
	return perrors.New(perrors.InvalidRequest, fmt.Sprintf("invalid job identifier %q, expected * or NNNNNN/USER/NAME", job))
}

// FormatJob joins a job number, user and name into NNNNNN/USER/NAME.
func FormatJob(number, user, name string) string {
	return strings.TrimSpace(number) + "/" + strings.ToUpper(strings.TrimSpace(user)) + "/" + strings.ToUpper(strings.TrimSpace(name))
}

// FormatTimestamp renders t as a Db2 timestamp literal.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// Correlator reads job logs.
type Correlator struct {
	// Source returns the FROM clause for a job. It defaults to the
	// QSYS2.JOBLOG_INFO table function.
	Source func(job string) string
	Logger *zap.Logger
}

// NewCorrelator returns a Correlator reading QSYS2.JOBLOG_INFO.
func NewCorrelator(logger *zap.Logger) *Correlator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Correlator{Source: jobLogInfo, Logger: logger}
}

func jobLogInfo(job string) string {
	return "TABLE(QSYS2.JOBLOG_INFO('" + escape(job) + "')) A"
}

func escape(s string) string { return strings.ReplaceAll(s, "'", "''") }

// Statement returns the job-log query for job and since.
func (c *Correlator) Statement(job string, since time.Time) string {
	src := c.Source
	if src == nil {
		src = jobLogInfo
	}
	return "SELECT " + columns + " FROM " + src(job) +
		" WHERE MESSAGE_TIMESTAMP >= '" + FormatTimestamp(since) + "'" +
		" ORDER BY ORDINAL_POSITION DESC"
}

// Correlate returns the entries job logged at or after since, ordinal
// descending. No matching entries is an empty slice and a nil error.
func (c *Correlator) Correlate(ctx context.Context, q Querier, job string, since time.Time) ([]Entry, error) {
	if err := ValidateJob(job); err != nil {
		return []Entry{}, err
	}
	stmt := c.Statement(job, since)
	c.logger().Debug("reading job log", zap.String("job", job), zap.String("since", FormatTimestamp(since)))

	rows, err := q.QueryContext(ctx, stmt)
	if err != nil {
		return []Entry{}, fmt.Errorf("query job log of %s: %w", job, err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return []Entry{}, fmt.Errorf("read job log of %s: %w", job, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return []Entry{}, fmt.Errorf("read job log of %s: %w", job, err)
	}
	Sort(entries)
	return entries, nil
}

// Collect is Correlate for callers that must not fail because of the job
// log: any error becomes an empty slice and a note.
func (c *Correlator) Collect(ctx context.Context, q Querier, job string, since time.Time) ([]Entry, string) {
	entries, err := c.Correlate(ctx, q, job, since)
	if err != nil {
		c.logger().Warn("job log unavailable", zap.String("job", job), zap.Error(err))
		return []Entry{}, "job log unavailable: " + err.Error()
	}
	return entries, ""
}

func (c *Correlator) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Sort orders entries by ordinal position, newest first. The sort is stable
// so entries sharing an ordinal keep their relative order.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].OrdinalPosition > entries[j].OrdinalPosition
	})
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		ordinal, severity sql.NullInt64
		ts                any
		text              [18]sql.NullString
	)
	dest := []any{&ordinal, &text[0], &text[1], &text[2], &severity, &ts}
	for i := 3; i < len(text); i++ {
		dest = append(dest, &text[i])
	}
	if err := rows.Scan(dest...); err != nil {
		return Entry{}, err
	}
	stamp, err := ParseTimestamp(ts)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		OrdinalPosition:        ordinal.Int64,
		MessageID:              text[0].String,
		MessageType:            text[1].String,
		MessageSubtype:         text[2].String,
		Severity:               severity.Int64,
		MessageTimestamp:       stamp,
		FromLibrary:            text[3].String,
		FromProgram:            text[4].String,
		FromModule:             text[5].String,
		FromProcedure:          text[6].String,
		FromInstruction:        text[7].String,
		ToLibrary:              text[8].String,
		ToProgram:              text[9].String,
		ToModule:               text[10].String,
		ToProcedure:            text[11].String,
		ToInstruction:          text[12].String,
		FromUser:               text[13].String,
		MessageFile:            text[14].String,
		MessageLibrary:         text[15].String,
		MessageText:            text[16].String,
		MessageSecondLevelText: text[17].String,
	}, nil
}

// ParseTimestamp reads a timestamp as drivers return it: a time.Time, or Db2
// or ISO text in the local zone. nil is the zero time.
func ParseTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return t, nil
	case []byte:
		return ParseTimestamp(string(t))
	case string:
		for _, layout := range []string{TimestampLayout, "2006-01-02 15:04:05.999999", "2006-01-02-15.04.05", time.RFC3339Nano} {
			if ts, err := time.ParseInLocation(layout, t, time.Local); err == nil {
				return ts, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognised message timestamp %q", t)
	}
	return time.Time{}, fmt.Errorf("unsupported message timestamp type %T", v)
}
