// Package render prints execution results for the terminal or as JSON/YAML.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"powerexec/cli/internal/envelope"
	"powerexec/cli/internal/execution"
	"powerexec/cli/internal/joblog"
	"powerexec/cli/internal/rc"

	"github.com/pterm/pterm"
	"gopkg.in/yaml.v3"
)

// Format is an output format.
type Format string

const (
	Text Format = "text"
	JSON Format = "json"
	YAML Format = "yaml"
)

// ParseFormat validates an --output value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", Text:
		return Text, nil
	case JSON, YAML:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
}

// document is the machine-readable shape of a result.
type document struct {
	RC      int            `json:"rc" yaml:"rc"`
	Message string         `json:"msg" yaml:"msg"`
	Stdout  string         `json:"stdout" yaml:"stdout"`
	Stderr  string         `json:"stderr" yaml:"stderr"`
	Rows    []envelope.Row `json:"rows" yaml:"rows"`
	Start   string         `json:"start" yaml:"start"`
	End     string         `json:"end" yaml:"end"`
	Delta   string         `json:"delta" yaml:"delta"`
	Job     string         `json:"job,omitempty" yaml:"job,omitempty"`
	JobLog  []joblog.Entry `json:"job_log" yaml:"job_log"`
	Notes   []string       `json:"notes,omitempty" yaml:"notes,omitempty"`
	ID      string         `json:"invocation_id" yaml:"invocation_id"`
}

const stampLayout = "2006-01-02 15:04:05.000000"

func toDocument(res execution.Result, withJobLog bool) document {
	d := document{
		RC:      int(res.RC),
		Message: res.Message(),
		Stdout:  res.Stdout,
		Stderr:  res.Stderr,
		Rows:    res.Rows,
		Start:   res.Start.Format(stampLayout),
		End:     res.End.Format(stampLayout),
		Delta:   res.Delta.String(),
		Job:     res.Job,
		JobLog:  []joblog.Entry{},
		Notes:   res.Notes,
		ID:      res.ID,
	}
	if d.Rows == nil {
		d.Rows = []envelope.Row{}
	}
	if withJobLog && res.JobLog != nil {
		d.JobLog = res.JobLog
	}
	return d
}

// Result writes res in format. The job log is included when withJobLog is
// set or the result failed.
func Result(w io.Writer, res execution.Result, format Format, withJobLog bool) error {
	withJobLog = withJobLog || res.Failed()
	switch format {
	case JSON:
		return writeJSON(w, toDocument(res, withJobLog))
	case YAML:
		return writeYAML(w, toDocument(res, withJobLog))
	}
	return resultText(w, res, withJobLog)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func resultText(w io.Writer, res execution.Result, withJobLog bool) error {
	status := pterm.NewStyle(pterm.FgGreen, pterm.Bold)
	if res.Failed() {
		status = pterm.NewStyle(pterm.FgRed, pterm.Bold)
	}
	fmt.Fprintf(w, "%s %s\n", status.Sprintf("rc=%d", int(res.RC)), res.Message())
	if res.Job != "" {
		fmt.Fprintf(w, "job: %s  elapsed: %s\n", res.Job, res.Delta.Round(1e6))
	}
	if s := strings.TrimSpace(res.Stdout); s != "" {
		fmt.Fprintln(w, s)
	}
	if len(res.Rows) > 0 {
		table, err := RowsTable(res.Rows)
		if err != nil {
			return err
		}
		fmt.Fprint(w, table)
	}
	if s := strings.TrimSpace(res.Stderr); s != "" {
		fmt.Fprintln(w, pterm.NewStyle(pterm.FgYellow).Sprint(s))
	}
	for _, n := range res.Notes {
		fmt.Fprintln(w, pterm.NewStyle(pterm.FgGray).Sprint("note: "+n))
	}
	if withJobLog && len(res.JobLog) > 0 {
		table, err := JobLogTable(res.JobLog)
		if err != nil {
			return err
		}
		fmt.Fprintln(w)
		fmt.Fprint(w, table)
	}
	return nil
}

// Columns returns the union of row keys, sorted.
func Columns(rows []envelope.Row) []string {
	seen := map[string]bool{}
	var cols []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

// RowsTable renders rows as a table with one column per key.
func RowsTable(rows []envelope.Row) (string, error) {
	cols := Columns(rows)
	data := pterm.TableData{cols}
	for _, r := range rows {
		line := make([]string, len(cols))
		for i, c := range cols {
			if v, ok := r[c]; ok && v != nil {
				line[i] = fmt.Sprint(v)
			}
		}
		data = append(data, line)
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
}

// JobLogTable renders job-log entries, newest first as given.
func JobLogTable(entries []joblog.Entry) (string, error) {
	data := pterm.TableData{{"ORDINAL", "MSGID", "TYPE", "SEV", "TIMESTAMP", "FROM", "TEXT"}}
	for _, e := range entries {
		from := strings.Trim(e.FromLibrary+"/"+e.FromProgram, "/")
		data = append(data, []string{
			fmt.Sprint(e.OrdinalPosition),
			e.MessageID,
			e.MessageType,
			fmt.Sprint(e.Severity),
			e.MessageTimestamp.Format(joblog.TimestampLayout),
			from,
			e.MessageText,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
}

// codeDoc is one taxonomy entry.
type codeDoc struct {
	RC    int    `json:"rc" yaml:"rc"`
	Name  string `json:"name" yaml:"name"`
	Label string `json:"label" yaml:"label"`
}

// Codes writes the return-code taxonomy.
func Codes(w io.Writer, format Format) error {
	var docs []codeDoc
	for _, c := range rc.Codes() {
		docs = append(docs, codeDoc{RC: int(c), Name: rc.Name(c), Label: rc.Lookup(c)})
	}
	switch format {
	case JSON:
		return writeJSON(w, docs)
	case YAML:
		return writeYAML(w, docs)
	}
	data := pterm.TableData{{"RC", "NAME", "MEANING"}}
	for _, d := range docs {
		data = append(data, []string{fmt.Sprint(d.RC), d.Name, d.Label})
	}
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, out)
	return err
}
